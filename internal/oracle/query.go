package oracle

import (
	"fmt"

	"github.com/pluvia-labs/rainfall-oracle/internal/domain"
	"github.com/pluvia-labs/rainfall-oracle/internal/observability"
)

// ThresholdQuery answers the settlement question: did the rolling sum ever
// reach the strike threshold during a coverage window? It reads only through
// the aggregator's query surface, never the bucket store directly.
type ThresholdQuery struct {
	binder  *Binder
	agg     *Aggregator
	metrics *observability.Metrics
}

// NewThresholdQuery creates a ThresholdQuery over the binder and aggregator.
func NewThresholdQuery(binder *Binder, agg *Aggregator, metrics *observability.Metrics) *ThresholdQuery {
	return &ThresholdQuery{binder: binder, agg: agg, metrics: metrics}
}

// RollingSumAt returns the rolling sum as of the given timestamp, recomputed
// from the buckets still in the ledger. Fails with ErrUnbound for an unbound
// location.
func (q *ThresholdQuery) RollingSumAt(locationID string, asOf int64) (int64, error) {
	bound, err := q.binder.IsBound(locationID)
	if err != nil {
		return 0, err
	}
	if !bound {
		return 0, fmt.Errorf("rolling sum for %q: %w", locationID, domain.ErrUnbound)
	}
	return q.agg.SumAsOf(locationID, asOf)
}

// ExceededInWindow reports whether the rolling sum reached or exceeded
// strikeMM (>=, not >) at any point in [windowStart, windowEnd]. The window
// is sampled at hourly steps plus the end itself; the rolling sum only
// changes at bucket boundaries, so no finer sampling can find a crossing
// hourly sampling misses. Cost is bounded by the window length, about 169
// samples for a 7-day coverage window.
func (q *ThresholdQuery) ExceededInWindow(locationID string, strikeMM, windowStart, windowEnd int64) (bool, error) {
	if windowStart >= windowEnd {
		return false, fmt.Errorf("window [%d, %d]: %w", windowStart, windowEnd, domain.ErrInvalidWindow)
	}
	bound, err := q.binder.IsBound(locationID)
	if err != nil {
		return false, err
	}
	if !bound {
		return false, fmt.Errorf("threshold query for %q: %w", locationID, domain.ErrUnbound)
	}

	t := windowStart
	for {
		sum, err := q.agg.SumAsOf(locationID, t)
		if err != nil {
			return false, err
		}
		if sum >= strikeMM {
			q.metrics.ThresholdQueries.WithLabelValues("struck").Inc()
			return true, nil
		}
		if t == windowEnd {
			break
		}
		t += domain.BucketSeconds
		if t > windowEnd {
			t = windowEnd
		}
	}
	q.metrics.ThresholdQueries.WithLabelValues("not_struck").Inc()
	return false, nil
}
