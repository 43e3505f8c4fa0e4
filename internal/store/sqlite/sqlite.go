// Package sqlite provides the durable SQLite-backed implementation of the
// oracle's persistence surface. The driver is pure Go (modernc.org/sqlite),
// so the binary stays cgo-free.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pluvia-labs/rainfall-oracle/internal/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS bindings (
	location_id  TEXT PRIMARY KEY,
	provider_key TEXT NOT NULL,
	anchor_lat   INTEGER NOT NULL,
	anchor_lon   INTEGER NOT NULL,
	bound_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS buckets (
	location_id  TEXT NOT NULL,
	bucket_index INTEGER NOT NULL,
	rainfall_mm  INTEGER NOT NULL,
	PRIMARY KEY (location_id, bucket_index)
);

CREATE TABLE IF NOT EXISTS window_state (
	location_id         TEXT PRIMARY KEY,
	last_bucket_index   INTEGER NOT NULL,
	oldest_bucket_index INTEGER NOT NULL,
	rolling_sum_mm      INTEGER NOT NULL
);
`

const (
	queryGetBinding = `
		SELECT provider_key, anchor_lat, anchor_lon, bound_at
		FROM bindings WHERE location_id = ?`

	queryPutBinding = `
		INSERT INTO bindings (location_id, provider_key, anchor_lat, anchor_lon, bound_at)
		VALUES (?, ?, ?, ?, ?)`

	queryGetBucket = `
		SELECT rainfall_mm FROM buckets
		WHERE location_id = ? AND bucket_index = ?`

	queryUpsertBucket = `
		INSERT INTO buckets (location_id, bucket_index, rainfall_mm)
		VALUES (?, ?, ?)
		ON CONFLICT (location_id, bucket_index)
		DO UPDATE SET rainfall_mm = excluded.rainfall_mm`

	queryRemoveBucket = `
		DELETE FROM buckets WHERE location_id = ? AND bucket_index = ?`

	queryGetState = `
		SELECT last_bucket_index, oldest_bucket_index, rolling_sum_mm
		FROM window_state WHERE location_id = ?`

	queryUpsertState = `
		INSERT INTO window_state (location_id, last_bucket_index, oldest_bucket_index, rolling_sum_mm)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (location_id)
		DO UPDATE SET
			last_bucket_index   = excluded.last_bucket_index,
			oldest_bucket_index = excluded.oldest_bucket_index,
			rolling_sum_mm      = excluded.rolling_sum_mm`
)

// Store persists bindings, buckets, and window state in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// The aggregator serializes writers per location; a single connection
	// sidesteps SQLITE_BUSY between the remaining concurrent callers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetBinding returns the binding for a location, if present.
func (s *Store) GetBinding(locationID string) (domain.LocationBinding, bool, error) {
	var (
		b       domain.LocationBinding
		boundAt int64
	)
	err := s.db.QueryRow(queryGetBinding, locationID).
		Scan(&b.ProviderKey, &b.AnchorLat, &b.AnchorLon, &boundAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LocationBinding{}, false, nil
	}
	if err != nil {
		return domain.LocationBinding{}, false, fmt.Errorf("get binding: %w", err)
	}
	b.LocationID = locationID
	b.BoundAt = time.Unix(boundAt, 0).UTC()
	return b, true, nil
}

// PutBinding inserts a binding. The primary key makes a double insert fail,
// backing the Binder's write-once guarantee at the storage layer too.
func (s *Store) PutBinding(binding domain.LocationBinding) error {
	_, err := s.db.Exec(queryPutBinding,
		binding.LocationID,
		binding.ProviderKey,
		binding.AnchorLat,
		binding.AnchorLon,
		binding.BoundAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("put binding: %w", err)
	}
	return nil
}

// GetBucket returns the millimeters stored for a bucket, if present.
func (s *Store) GetBucket(locationID string, bucketIndex int64) (int64, bool, error) {
	var mm int64
	err := s.db.QueryRow(queryGetBucket, locationID, bucketIndex).Scan(&mm)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get bucket: %w", err)
	}
	return mm, true, nil
}

// PutBucket overwrites a bucket and returns the previous value, 0 when the
// bucket did not exist. Read and upsert run in one transaction so the
// returned prior value matches what was actually replaced.
func (s *Store) PutBucket(locationID string, bucketIndex, rainfallMM int64) (int64, bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, false, fmt.Errorf("put bucket: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var prev int64
	existed := true
	err = tx.QueryRow(queryGetBucket, locationID, bucketIndex).Scan(&prev)
	if errors.Is(err, sql.ErrNoRows) {
		prev, existed = 0, false
	} else if err != nil {
		return 0, false, fmt.Errorf("put bucket: read prior: %w", err)
	}

	if _, err := tx.Exec(queryUpsertBucket, locationID, bucketIndex, rainfallMM); err != nil {
		return 0, false, fmt.Errorf("put bucket: upsert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("put bucket: commit: %w", err)
	}
	return prev, existed, nil
}

// RemoveBucket deletes a bucket. Removing an absent bucket is a no-op.
func (s *Store) RemoveBucket(locationID string, bucketIndex int64) error {
	if _, err := s.db.Exec(queryRemoveBucket, locationID, bucketIndex); err != nil {
		return fmt.Errorf("remove bucket: %w", err)
	}
	return nil
}

// GetState returns the rolling-window state for a location, if present.
func (s *Store) GetState(locationID string) (domain.WindowState, bool, error) {
	var st domain.WindowState
	err := s.db.QueryRow(queryGetState, locationID).
		Scan(&st.LastBucketIndex, &st.OldestBucketIndex, &st.RollingSumMM)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WindowState{}, false, nil
	}
	if err != nil {
		return domain.WindowState{}, false, fmt.Errorf("get state: %w", err)
	}
	return st, true, nil
}

// PutState upserts the rolling-window state for a location.
func (s *Store) PutState(locationID string, state domain.WindowState) error {
	_, err := s.db.Exec(queryUpsertState,
		locationID,
		state.LastBucketIndex,
		state.OldestBucketIndex,
		state.RollingSumMM,
	)
	if err != nil {
		return fmt.Errorf("put state: %w", err)
	}
	return nil
}
