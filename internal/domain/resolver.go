package domain

import "context"

// ResolvedLocation is the provider-side identity of a coordinate pair.
type ResolvedLocation struct {
	ProviderKey string
	PlaceName   string
	Confidence  float64 // 0.0–1.0 provider confidence score
}

// Resolver maps anchor coordinates to a weather-provider location key. It is
// an external collaborator: the oracle core never calls it, only the bind
// path does, once per location.
type Resolver interface {
	// Resolve converts fixed-point (1e6-scaled) coordinates to the provider
	// location key readings will be fetched under.
	Resolve(ctx context.Context, latMicro, lonMicro int64) (ResolvedLocation, error)
}
