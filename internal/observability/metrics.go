package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// rainfall oracle.
type Metrics struct {
	// Ingestion metrics.
	ReadingsIngested prometheus.Counter
	ReadingsRejected *prometheus.CounterVec // labels: reason={unbound,stale_timestamp,future_timestamp,out_of_range}
	Corrections      prometheus.Counter
	BucketsPruned    prometheus.Counter
	DecodeErrors     prometheus.Counter
	RollingSum       *prometheus.GaugeVec // labels: location

	// Ingestion event publishing.
	EventsPublished    prometheus.Counter
	EventPublishErrors prometheus.Counter

	// Settlement queries.
	ThresholdQueries *prometheus.CounterVec // labels: outcome={struck,not_struck}

	// Consume loop metrics.
	IngestRunning           prometheus.Gauge
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Provider-key resolution metrics.
	ResolveRequests *prometheus.CounterVec // labels: outcome={success,error,empty}
	ResolveCache    *prometheus.CounterVec // labels: result={hit,miss}
	ResolveDuration prometheus.Histogram
}

// NewMetrics creates and registers all oracle metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ReadingsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rain_oracle",
			Name:      "readings_ingested_total",
			Help:      "Total readings accepted and applied to the ledger.",
		}),
		ReadingsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rain_oracle",
			Name:      "readings_rejected_total",
			Help:      "Readings rejected by validation, by reason.",
		}, []string{"reason"}),
		Corrections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rain_oracle",
			Name:      "corrections_total",
			Help:      "Readings that overwrote an existing bucket.",
		}),
		BucketsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rain_oracle",
			Name:      "buckets_pruned_total",
			Help:      "Buckets removed after falling behind the rolling window.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rain_oracle",
			Name:      "decode_errors_total",
			Help:      "Reading messages that failed to decode.",
		}),
		RollingSum: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rain_oracle",
			Name:      "rolling_sum_mm",
			Help:      "Current trailing-24h rainfall sum per location.",
		}, []string{"location"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rain_oracle",
			Name:      "ingestion_events_published_total",
			Help:      "Ingestion events written to the sink topic.",
		}),
		EventPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rain_oracle",
			Name:      "ingestion_event_publish_errors_total",
			Help:      "Ingestion events that failed to publish.",
		}),
		ThresholdQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rain_oracle",
			Name:      "threshold_queries_total",
			Help:      "Settlement threshold queries by outcome.",
		}, []string{"outcome"}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rain_oracle",
			Name:      "ingest_running",
			Help:      "1 when the consume loop is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rain_oracle",
			Name:      "batch_size",
			Help:      "Number of readings per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rain_oracle",
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete extract-validate-apply cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		ResolveRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rain_oracle",
			Name:      "resolve_requests_total",
			Help:      "Provider-key resolution requests by outcome.",
		}, []string{"outcome"}),
		ResolveCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rain_oracle",
			Name:      "resolve_cache_total",
			Help:      "Resolution cache lookups by result.",
		}, []string{"result"}),
		ResolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rain_oracle",
			Name:      "resolve_duration_seconds",
			Help:      "Geocoding API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}

	prometheus.MustRegister(
		m.ReadingsIngested,
		m.ReadingsRejected,
		m.Corrections,
		m.BucketsPruned,
		m.DecodeErrors,
		m.RollingSum,
		m.EventsPublished,
		m.EventPublishErrors,
		m.ThresholdQueries,
		m.IngestRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.ResolveRequests,
		m.ResolveCache,
		m.ResolveDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ReadingsIngested:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "rain_oracle", Name: "readings_ingested_total"}),
		ReadingsRejected:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "rain_oracle", Name: "readings_rejected_total"}, []string{"reason"}),
		Corrections:             prometheus.NewCounter(prometheus.CounterOpts{Namespace: "rain_oracle", Name: "corrections_total"}),
		BucketsPruned:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: "rain_oracle", Name: "buckets_pruned_total"}),
		DecodeErrors:            prometheus.NewCounter(prometheus.CounterOpts{Namespace: "rain_oracle", Name: "decode_errors_total"}),
		RollingSum:              prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "rain_oracle", Name: "rolling_sum_mm"}, []string{"location"}),
		EventsPublished:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "rain_oracle", Name: "ingestion_events_published_total"}),
		EventPublishErrors:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "rain_oracle", Name: "ingestion_event_publish_errors_total"}),
		ThresholdQueries:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "rain_oracle", Name: "threshold_queries_total"}, []string{"outcome"}),
		IngestRunning:           prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "rain_oracle", Name: "ingest_running"}),
		BatchSize:               prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "rain_oracle", Name: "batch_size"}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "rain_oracle", Name: "batch_processing_duration_seconds"}),
		ResolveRequests:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "rain_oracle", Name: "resolve_requests_total"}, []string{"outcome"}),
		ResolveCache:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "rain_oracle", Name: "resolve_cache_total"}, []string{"result"}),
		ResolveDuration:         prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "rain_oracle", Name: "resolve_duration_seconds"}),
	}
}
