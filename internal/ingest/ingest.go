// Package ingest runs the Kafka consume loop: extract a batch of raw reading
// messages, decode and submit each one, and acknowledge what was handled.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pluvia-labs/rainfall-oracle/internal/domain"
	"github.com/pluvia-labs/rainfall-oracle/internal/observability"
)

// BatchExtractor reads up to batchSize raw readings from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawReading, error)
}

// Submitter validates and applies one reading.
type Submitter interface {
	SubmitReading(ctx context.Context, locationID string, timestamp, rainfallMM int64) error
}

// Loop orchestrates the extract-decode-submit cycle.
type Loop struct {
	extractor BatchExtractor
	submitter Submitter
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int
}

// New creates a Loop with the given stages and observability.
func New(e BatchExtractor, s Submitter, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Loop {
	return &Loop{
		extractor: e,
		submitter: s,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil if the loop has handled at least one reading,
// or an error describing why the service is not yet ready.
func (l *Loop) CheckReadiness(_ context.Context) error {
	if !l.ready.Load() {
		return errors.New("ingest loop has not handled any readings yet")
	}
	return nil
}

// Run executes the consume loop until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("ingest loop started", "batch_size", l.batchSize)
	l.metrics.IngestRunning.Set(1)
	defer l.metrics.IngestRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	// Keeps retry storms short while avoiding tight loops during outages.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("ingest loop stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !l.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-decode-submit cycle. Returns false if the
// loop should stop.
func (l *Loop) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	batch, err := l.extractor.ExtractBatch(ctx, l.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		l.logger.Error("extract batch failed", "error", err)
		return l.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(batch) == 0 {
		return ctx.Err() == nil
	}

	l.metrics.BatchSize.Observe(float64(len(batch)))
	*backoff = 200 * time.Millisecond

	handled := 0
	for _, raw := range batch {
		outcome, err := l.handleReading(ctx, raw)
		if err != nil {
			// Infrastructure failure: the reading stays uncommitted and will
			// be redelivered. Back off before touching the rest of the batch.
			l.logger.Error("submit reading failed", "error", err,
				"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
			return l.backoffOrStop(ctx, backoff, maxBackoff)
		}
		if outcome {
			handled++
		}
	}

	if handled > 0 {
		l.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		l.ready.Store(true)
	}
	return true
}

// handleReading decodes and submits one raw message. Returns true when the
// message was handled to completion (applied, rejected, or undecodable) and
// its offset committed. An error means a transient failure the caller
// should retry after redelivery.
func (l *Loop) handleReading(ctx context.Context, raw domain.RawReading) (bool, error) {
	reading, err := decodeReading(raw)
	if err != nil {
		l.logger.Warn("undecodable reading skipped",
			"error", err,
			"topic", raw.Topic,
			"partition", raw.Partition,
			"offset", raw.Offset,
		)
		l.metrics.DecodeErrors.Inc()
		l.commitOffset(ctx, raw)
		return true, nil
	}

	err = l.submitter.SubmitReading(ctx, reading.LocationID, reading.Timestamp, reading.RainfallMM)
	switch {
	case err == nil:
		l.commitOffset(ctx, raw)
		return true, nil
	case isRejection(err):
		// Validation rejections are terminal: redelivering the same reading
		// would only be rejected again, so acknowledge and move on.
		l.logger.Warn("reading rejected",
			"error", err,
			"location_id", reading.LocationID,
			"timestamp", reading.Timestamp,
		)
		l.commitOffset(ctx, raw)
		return true, nil
	default:
		return false, err
	}
}

// commitOffset commits the message offset if a commit function is available.
func (l *Loop) commitOffset(ctx context.Context, raw domain.RawReading) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		l.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the loop should stop.
func (l *Loop) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// decodeReading unmarshals a reading message and checks the required fields.
func decodeReading(raw domain.RawReading) (domain.Reading, error) {
	var reading domain.Reading
	if err := json.Unmarshal(raw.Value, &reading); err != nil {
		return domain.Reading{}, fmt.Errorf("decode reading: %w", err)
	}
	if reading.LocationID == "" {
		return domain.Reading{}, errors.New("decode reading: missing location_id")
	}
	if reading.Timestamp == 0 {
		return domain.Reading{}, errors.New("decode reading: missing timestamp")
	}
	return reading, nil
}

// isRejection reports whether the error is a validation rejection rather
// than an infrastructure failure.
func isRejection(err error) bool {
	return errors.Is(err, domain.ErrUnbound) ||
		errors.Is(err, domain.ErrStaleTimestamp) ||
		errors.Is(err, domain.ErrFutureTimestamp) ||
		errors.Is(err, domain.ErrRainfallOutOfRange)
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
