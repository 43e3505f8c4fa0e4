package oracle

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/pluvia-labs/rainfall-oracle/internal/domain"
)

// Fixed-point coordinate bounds: ±90 and ±180 degrees at 1e6 scale.
const (
	maxLatMicro = 90 * domain.CoordScale
	maxLonMicro = 180 * domain.CoordScale
)

// Binder manages write-once location bindings. Every other oracle operation
// gates on a location being bound; an unbound location fails closed.
type Binder struct {
	store  BindingStore
	clock  clockwork.Clock
	logger *slog.Logger

	// Serializes check-then-put so two concurrent binds for the same
	// location cannot both succeed.
	mu sync.Mutex
}

// NewBinder creates a Binder over the given store.
func NewBinder(store BindingStore, clock clockwork.Clock, logger *slog.Logger) *Binder {
	return &Binder{store: store, clock: clock, logger: logger}
}

// Bind records the provider location key and anchor coordinates for a
// location. Binding an already-bound location fails with ErrAlreadyBound;
// bindings are never updated or deleted.
func (b *Binder) Bind(locationID, providerKey string, anchorLat, anchorLon int64) error {
	if locationID == "" {
		return fmt.Errorf("bind: location id is empty")
	}
	if providerKey == "" {
		return fmt.Errorf("bind %q: %w", locationID, domain.ErrEmptyProviderKey)
	}
	if anchorLat < -maxLatMicro || anchorLat > maxLatMicro ||
		anchorLon < -maxLonMicro || anchorLon > maxLonMicro {
		return fmt.Errorf("bind %q: lat=%d lon=%d: %w", locationID, anchorLat, anchorLon, domain.ErrInvalidCoordinates)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_, exists, err := b.store.GetBinding(locationID)
	if err != nil {
		return fmt.Errorf("bind %q: %w", locationID, err)
	}
	if exists {
		return fmt.Errorf("bind %q: %w", locationID, domain.ErrAlreadyBound)
	}

	binding := domain.LocationBinding{
		LocationID:  locationID,
		ProviderKey: providerKey,
		AnchorLat:   anchorLat,
		AnchorLon:   anchorLon,
		BoundAt:     b.clock.Now().UTC(),
	}
	if err := b.store.PutBinding(binding); err != nil {
		return fmt.Errorf("bind %q: %w", locationID, err)
	}

	b.logger.Info("location bound",
		"location_id", locationID,
		"provider_key", providerKey,
		"anchor_lat", anchorLat,
		"anchor_lon", anchorLon,
	)
	return nil
}

// IsBound reports whether a location has a binding.
func (b *Binder) IsBound(locationID string) (bool, error) {
	_, ok, err := b.store.GetBinding(locationID)
	if err != nil {
		return false, fmt.Errorf("check binding %q: %w", locationID, err)
	}
	return ok, nil
}

// Get returns the binding for a location, if any.
func (b *Binder) Get(locationID string) (domain.LocationBinding, bool, error) {
	binding, ok, err := b.store.GetBinding(locationID)
	if err != nil {
		return domain.LocationBinding{}, false, fmt.Errorf("get binding %q: %w", locationID, err)
	}
	return binding, ok, nil
}
