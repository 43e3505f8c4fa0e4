package oracle

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/pluvia-labs/rainfall-oracle/internal/domain"
	"github.com/pluvia-labs/rainfall-oracle/internal/observability"
)

// Aggregator keeps each location's rolling sum exactly equal to the sum of
// stored buckets inside the trailing 24-hour window, under both new
// observations and corrections of past hours.
//
// Mutations for one location are serialized through a per-location lock;
// different locations share nothing and proceed in parallel.
type Aggregator struct {
	buckets BucketStore
	states  StateStore
	logger  *slog.Logger
	metrics *observability.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAggregator creates an Aggregator over the given bucket and state stores.
func NewAggregator(buckets BucketStore, states StateStore, logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{
		buckets: buckets,
		states:  states,
		logger:  logger,
		metrics: metrics,
		locks:   make(map[string]*sync.Mutex),
	}
}

// ApplyResult describes what a reading did to the ledger.
type ApplyResult struct {
	BucketIndex int64
	PreviousMM  int64
	Correction  bool
	Pruned      int

	// Ignored is set when the reading's bucket lies below the pruning
	// frontier: the hour already fell out of the window (or never counted)
	// and the reading caused no mutation at all.
	Ignored bool
}

// lockFor returns the mutation lock for a location, creating it on first use.
func (a *Aggregator) lockFor(locationID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lk, ok := a.locks[locationID]
	if !ok {
		lk = &sync.Mutex{}
		a.locks[locationID] = lk
	}
	return lk
}

// ApplyReading writes the reading's bucket and folds the signed delta into
// the rolling sum. The update is O(1) per reading: a correction adjusts the
// sum by (new - old) instead of re-summing the window. When the reading
// advances the latest-observation frontier, buckets that fell behind the
// window are pruned.
//
// Readings may arrive in any order. The final rolling sum depends only on
// the final committed value per bucket, never on arrival order: every bucket
// at or above the pruning frontier takes the delta, and a reading below the
// frontier is a complete no-op — the hour was already pruned (or predates
// every window ever maintained) regardless of when it shows up.
func (a *Aggregator) ApplyReading(locationID string, timestamp, rainfallMM int64) (ApplyResult, error) {
	lk := a.lockFor(locationID)
	lk.Lock()
	defer lk.Unlock()

	idx := domain.BucketIndexFor(timestamp)

	state, ok, err := a.states.GetState(locationID)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("get window state %s: %w", locationID, err)
	}
	if !ok {
		// First reading for this location. The frontier starts a full window
		// below the first bucket so that an out-of-order backfill of the
		// preceding 24 hours still counts.
		state = domain.WindowState{
			LastBucketIndex:   idx,
			OldestBucketIndex: idx - domain.BucketsPerWindow + 1,
		}
	}

	if idx < state.OldestBucketIndex {
		a.logger.Debug("reading below pruned frontier ignored",
			"location_id", locationID,
			"bucket_index", idx,
			"oldest_bucket_index", state.OldestBucketIndex,
		)
		return ApplyResult{BucketIndex: idx, Ignored: true}, nil
	}

	prev, existed, err := a.buckets.PutBucket(locationID, idx, rainfallMM)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("put bucket %s/%d: %w", locationID, idx, err)
	}

	state.RollingSumMM = clampAdd(state.RollingSumMM, rainfallMM-prev)

	pruned := 0
	if idx > state.LastBucketIndex {
		state.LastBucketIndex = idx
		// The newest observation covers its whole hour, so the window is
		// anchored at that bucket's end: exactly the trailing 24 buckets
		// survive, and the bucket starting precisely 24h before the end
		// stays in (half-open window).
		windowStart := domain.BucketStart(idx) + domain.BucketSeconds - domain.WindowSeconds
		pruned, err = a.prune(locationID, &state, windowStart)
		if err != nil {
			return ApplyResult{}, fmt.Errorf("prune %s: %w", locationID, err)
		}
	}

	if err := a.states.PutState(locationID, state); err != nil {
		return ApplyResult{}, fmt.Errorf("put window state %s: %w", locationID, err)
	}

	if existed {
		a.metrics.Corrections.Inc()
	}
	if pruned > 0 {
		a.metrics.BucketsPruned.Add(float64(pruned))
	}
	a.metrics.RollingSum.WithLabelValues(locationID).Set(float64(state.RollingSumMM))

	return ApplyResult{
		BucketIndex: idx,
		PreviousMM:  prev,
		Correction:  existed,
		Pruned:      pruned,
	}, nil
}

// prune walks the oldest-bucket frontier forward, subtracting and deleting
// every bucket that starts strictly before windowStart. A bucket starting
// exactly at windowStart stays: the window is half-open, [windowStart, now).
func (a *Aggregator) prune(locationID string, state *domain.WindowState, windowStart int64) (int, error) {
	pruned := 0
	cand := state.OldestBucketIndex
	for domain.BucketStart(cand) < windowStart && cand <= state.LastBucketIndex {
		mm, ok, err := a.buckets.GetBucket(locationID, cand)
		if err != nil {
			return pruned, err
		}
		if ok {
			state.RollingSumMM = clampSub(state.RollingSumMM, mm)
			if err := a.buckets.RemoveBucket(locationID, cand); err != nil {
				return pruned, err
			}
			pruned++
		}
		cand++
	}
	state.OldestBucketIndex = cand
	return pruned, nil
}

// SumAsOf recomputes the rolling sum as of an arbitrary timestamp by summing
// the buckets whose start lies in [asOf-86400, asOf). At most 24 bucket
// lookups. Buckets already pruned from the ledger no longer contribute.
func (a *Aggregator) SumAsOf(locationID string, asOf int64) (int64, error) {
	lk := a.lockFor(locationID)
	lk.Lock()
	defer lk.Unlock()

	first, last := domain.WindowBounds(asOf)
	var sum int64
	for idx := first; idx <= last; idx++ {
		mm, ok, err := a.buckets.GetBucket(locationID, idx)
		if err != nil {
			return 0, fmt.Errorf("get bucket %s/%d: %w", locationID, idx, err)
		}
		if ok {
			sum = clampAdd(sum, mm)
		}
	}
	return sum, nil
}

// State returns the maintained window state for a location, if any.
func (a *Aggregator) State(locationID string) (domain.WindowState, bool, error) {
	lk := a.lockFor(locationID)
	lk.Lock()
	defer lk.Unlock()
	return a.states.GetState(locationID)
}

// clampAdd adds a signed delta, saturating at zero below and MaxInt64 above.
// An out-of-order correction can drive the raw sum negative; the clamp keeps
// the stored value well-formed.
func clampAdd(cur, delta int64) int64 {
	sum := cur + delta
	if delta > 0 && sum < cur {
		return math.MaxInt64
	}
	if sum < 0 {
		return 0
	}
	return sum
}

// clampSub subtracts a non-negative value, saturating at zero.
func clampSub(cur, v int64) int64 {
	if v >= cur {
		return 0
	}
	return cur - v
}
