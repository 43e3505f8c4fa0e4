package oracle_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pluvia-labs/rainfall-oracle/internal/domain"
	"github.com/pluvia-labs/rainfall-oracle/internal/observability"
	"github.com/pluvia-labs/rainfall-oracle/internal/oracle"
	"github.com/pluvia-labs/rainfall-oracle/internal/store"
)

// t0 is 2026-01-01 00:00:00 UTC, aligned to a bucket boundary.
const t0 = int64(1_767_225_600)

const (
	testLocation = "mkt-atx-rain"
	testKey      = "provider-key-1"
	testLatMicro = int64(30_266_200)  // 30.2662°
	testLonMicro = int64(-97_743_100) // -97.7431°
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// captureSink records published ingestion events.
type captureSink struct {
	events []domain.IngestionEvent
	err    error
}

func (s *captureSink) Publish(_ context.Context, event domain.IngestionEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

// fixture wires the full oracle over the in-memory store with a fake clock.
type fixture struct {
	store  *store.Memory
	clock  *clockwork.FakeClock
	sink   *captureSink
	binder *oracle.Binder
	agg    *oracle.Aggregator
	gw     *oracle.Gateway
	query  *oracle.ThresholdQuery
}

// newFixture builds a fixture with the clock frozen at now (unix seconds).
func newFixture(now int64) *fixture {
	mem := store.NewMemory()
	clock := clockwork.NewFakeClockAt(time.Unix(now, 0).UTC())
	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()
	sink := &captureSink{}

	binder := oracle.NewBinder(mem, clock, logger)
	agg := oracle.NewAggregator(mem, mem, logger, metrics)
	gw := oracle.NewGateway(binder, agg, sink, clock, logger, metrics, oracle.GatewayConfig{})
	query := oracle.NewThresholdQuery(binder, agg, metrics)

	return &fixture{
		store:  mem,
		clock:  clock,
		sink:   sink,
		binder: binder,
		agg:    agg,
		gw:     gw,
		query:  query,
	}
}

// bind binds the default test location.
func (f *fixture) bind() error {
	return f.binder.Bind(testLocation, testKey, testLatMicro, testLonMicro)
}

// resum computes the rolling sum directly from the bucket store over
// [asOf-86400, asOf), bypassing the aggregator's maintained state.
func (f *fixture) resum(locationID string, asOf int64) int64 {
	first, last := domain.WindowBounds(asOf)
	var sum int64
	for idx := first; idx <= last; idx++ {
		mm, ok, _ := f.store.GetBucket(locationID, idx)
		if ok {
			sum += mm
		}
	}
	return sum
}
