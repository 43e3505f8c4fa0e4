package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pluvia-labs/rainfall-oracle/internal/domain"
	"github.com/pluvia-labs/rainfall-oracle/internal/observability"
)

// Default validation bounds for incoming readings.
const (
	DefaultMaxPastDrift   = 7 * 24 * time.Hour
	DefaultMaxFutureDrift = 2 * time.Hour
	DefaultMaxRainfallMM  = 1000
)

// Rejection reasons, used as metric labels.
const (
	reasonUnbound    = "unbound"
	reasonStale      = "stale_timestamp"
	reasonFuture     = "future_timestamp"
	reasonOutOfRange = "out_of_range"
)

// GatewayConfig holds the validation bounds for SubmitReading. Zero values
// fall back to the defaults above.
type GatewayConfig struct {
	MaxPastDrift   time.Duration
	MaxFutureDrift time.Duration
	MaxRainfallMM  int64
}

// Gateway validates incoming readings and drives the aggregator. Validation
// is fail-fast and all-or-nothing: a rejected reading causes no mutation and
// no event.
type Gateway struct {
	binder  *Binder
	agg     *Aggregator
	sink    EventSink
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	maxPastDrift   time.Duration
	maxFutureDrift time.Duration
	maxRainfallMM  int64
}

// NewGateway creates a Gateway. Pass a nil sink to disable ingestion events.
func NewGateway(binder *Binder, agg *Aggregator, sink EventSink, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, cfg GatewayConfig) *Gateway {
	if cfg.MaxPastDrift <= 0 {
		cfg.MaxPastDrift = DefaultMaxPastDrift
	}
	if cfg.MaxFutureDrift <= 0 {
		cfg.MaxFutureDrift = DefaultMaxFutureDrift
	}
	if cfg.MaxRainfallMM <= 0 {
		cfg.MaxRainfallMM = DefaultMaxRainfallMM
	}
	return &Gateway{
		binder:         binder,
		agg:            agg,
		sink:           sink,
		clock:          clock,
		logger:         logger,
		metrics:        metrics,
		maxPastDrift:   cfg.MaxPastDrift,
		maxFutureDrift: cfg.MaxFutureDrift,
		maxRainfallMM:  cfg.MaxRainfallMM,
	}
}

// SubmitReading validates and ingests one hourly precipitation sample.
// Validation order: binding, past drift, future drift, rainfall bounds.
func (g *Gateway) SubmitReading(ctx context.Context, locationID string, timestamp, rainfallMM int64) error {
	bound, err := g.binder.IsBound(locationID)
	if err != nil {
		return fmt.Errorf("submit reading: %w", err)
	}
	if !bound {
		return g.reject(reasonUnbound, fmt.Errorf("submit reading for %q: %w", locationID, domain.ErrUnbound))
	}

	now := g.clock.Now().Unix()
	if timestamp < now-int64(g.maxPastDrift.Seconds()) {
		return g.reject(reasonStale, fmt.Errorf("reading at %d for %q: %w", timestamp, locationID, domain.ErrStaleTimestamp))
	}
	if timestamp > now+int64(g.maxFutureDrift.Seconds()) {
		return g.reject(reasonFuture, fmt.Errorf("reading at %d for %q: %w", timestamp, locationID, domain.ErrFutureTimestamp))
	}
	if rainfallMM < 0 || rainfallMM > g.maxRainfallMM {
		return g.reject(reasonOutOfRange, fmt.Errorf("%d mm for %q: %w", rainfallMM, locationID, domain.ErrRainfallOutOfRange))
	}

	result, err := g.agg.ApplyReading(locationID, timestamp, rainfallMM)
	if err != nil {
		return fmt.Errorf("submit reading for %q: %w", locationID, err)
	}
	g.metrics.ReadingsIngested.Inc()
	if result.Ignored {
		// Valid reading for an hour already pruned from the window; nothing
		// was mutated, so there is no event to emit.
		return nil
	}

	g.publishEvent(ctx, domain.IngestionEvent{
		LocationID:  locationID,
		BucketIndex: result.BucketIndex,
		BucketStart: domain.BucketStart(result.BucketIndex),
		RainfallMM:  rainfallMM,
		PreviousMM:  result.PreviousMM,
		Correction:  result.Correction,
		IngestedAt:  g.clock.Now().UTC(),
	})
	return nil
}

// publishEvent emits the ingestion event. The reading is already committed
// at this point, so a publish failure is logged and counted, not returned.
func (g *Gateway) publishEvent(ctx context.Context, event domain.IngestionEvent) {
	if g.sink == nil {
		return
	}
	if err := g.sink.Publish(ctx, event); err != nil {
		g.logger.Warn("publish ingestion event failed",
			"location_id", event.LocationID,
			"bucket_index", event.BucketIndex,
			"error", err,
		)
		g.metrics.EventPublishErrors.Inc()
		return
	}
	g.metrics.EventsPublished.Inc()
}

func (g *Gateway) reject(reason string, err error) error {
	g.metrics.ReadingsRejected.WithLabelValues(reason).Inc()
	return err
}
