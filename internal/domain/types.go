package domain

import (
	"context"
	"time"
)

// LocationBinding ties an abstract location (a market id) to the
// weather-provider location key it settles against. Bindings are write-once:
// once a location is bound the provider key and anchor coordinates are
// immutable for the life of the system.
type LocationBinding struct {
	LocationID  string    `json:"location_id"`
	ProviderKey string    `json:"provider_key"`
	AnchorLat   int64     `json:"anchor_lat"` // degrees * 1e6
	AnchorLon   int64     `json:"anchor_lon"` // degrees * 1e6
	BoundAt     time.Time `json:"bound_at"`
}

// Reading is one validated hourly precipitation sample as published by the
// weather-fetch collaborator.
type Reading struct {
	LocationID string `json:"location_id"`
	Timestamp  int64  `json:"timestamp"`   // unix seconds
	RainfallMM int64  `json:"rainfall_mm"` // whole millimeters for the hour
}

// RawReading is an unprocessed message from the readings topic. Commit, when
// set, acknowledges the message at the source after it has been handled.
type RawReading struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// WindowState is the per-location rolling-window bookkeeping.
//
// Invariant: after every mutation RollingSumMM equals a direct re-sum of the
// stored buckets over the trailing window ending at the latest observed
// bucket. OldestBucketIndex is the pruning frontier: every bucket below it
// has been removed from the ledger.
type WindowState struct {
	LastBucketIndex   int64 `json:"last_bucket_index"`
	OldestBucketIndex int64 `json:"oldest_bucket_index"`
	RollingSumMM      int64 `json:"rolling_sum_mm"`
}

// IngestionEvent is emitted after a reading has been committed, for
// downstream observability. It is the only externally visible effect of
// ingestion besides the state mutation itself.
type IngestionEvent struct {
	LocationID  string    `json:"location_id"`
	BucketIndex int64     `json:"bucket_index"`
	BucketStart int64     `json:"bucket_start"`
	RainfallMM  int64     `json:"rainfall_mm"`
	PreviousMM  int64     `json:"previous_mm"`
	Correction  bool      `json:"correction"`
	IngestedAt  time.Time `json:"ingested_at"`
}
