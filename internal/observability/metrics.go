package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kn15_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the telegram pipeline.
type Metrics struct {
	TelegramsConsumed prometheus.Counter
	TelegramsDecoded  prometheus.Counter
	TelegramsRejected *prometheus.CounterVec // labels: kind={invalid_token,missing_section,...}
	RecordsProduced   prometheus.Counter
	TransformErrors   prometheus.Counter
	PipelineRunning   prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Station directory metrics.
	StationCache          *prometheus.CounterVec   // labels: kind={hydro,meteo,manual}, result={hit,miss}
	StationLookupDuration *prometheus.HistogramVec // labels: kind={hydro,meteo,manual}
}

func newMetrics() *Metrics {
	return &Metrics{
		TelegramsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegrams_consumed_total",
			Help:      "Total telegrams read from the source topic.",
		}),
		TelegramsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegrams_decoded_total",
			Help:      "Total telegrams decoded without error.",
		}),
		TelegramsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegrams_rejected_total",
			Help:      "Telegrams that failed to decode, by error kind.",
		}, []string{"kind"}),
		RecordsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_produced_total",
			Help:      "Total telegram log records written to the sink.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Transform attempts that failed because a collaborator was unavailable.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of telegrams per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-decode-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		StationCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_cache_total",
			Help:      "Station directory cache lookups by kind and result.",
		}, []string{"kind", "result"}),
		StationLookupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "station_lookup_duration_seconds",
			Help:      "Station directory query duration on cache miss.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"kind"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.TelegramsConsumed,
		m.TelegramsDecoded,
		m.TelegramsRejected,
		m.RecordsProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.StationCache,
		m.StationLookupDuration,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
