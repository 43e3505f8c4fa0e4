// Package oracle implements the rainfall rolling-window oracle: write-once
// location bindings, the hourly bucket ledger, the incrementally maintained
// trailing-24h sum, validated ingestion, and the settlement threshold query.
package oracle

import (
	"context"

	"github.com/pluvia-labs/rainfall-oracle/internal/domain"
)

// BindingStore persists location bindings. Write-once semantics are enforced
// by the Binder, not here.
type BindingStore interface {
	GetBinding(locationID string) (domain.LocationBinding, bool, error)
	PutBinding(binding domain.LocationBinding) error
}

// BucketStore is the durable per-location ledger of one-hour rain buckets,
// keyed by (location, bucket index). Effects are confined to the single cell
// addressed; cross-bucket invariants belong to the Aggregator.
type BucketStore interface {
	// GetBucket returns the stored millimeters for a bucket, if present.
	GetBucket(locationID string, bucketIndex int64) (int64, bool, error)

	// PutBucket overwrites a bucket and reports the prior value (0 when the
	// bucket did not exist) so callers can compute a correction delta.
	PutBucket(locationID string, bucketIndex, rainfallMM int64) (prev int64, existed bool, err error)

	// RemoveBucket deletes a bucket. Used only by window pruning.
	RemoveBucket(locationID string, bucketIndex int64) error
}

// StateStore persists per-location rolling-window state.
type StateStore interface {
	GetState(locationID string) (domain.WindowState, bool, error)
	PutState(locationID string, state domain.WindowState) error
}

// Store is the full persistence surface the oracle needs. Both the in-memory
// and the SQLite store satisfy it.
type Store interface {
	BindingStore
	BucketStore
	StateStore
}

// EventSink receives ingestion events after a reading has been committed.
type EventSink interface {
	Publish(ctx context.Context, event domain.IngestionEvent) error
}
