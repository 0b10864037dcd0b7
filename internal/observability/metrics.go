package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "censoc_variation"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline and the variation reporter.
type Metrics struct {
	MessagesConsumed  prometheus.Counter
	RecordsAggregated prometheus.Counter
	TransformErrors   *prometheus.CounterVec // labels: reason={parse,invalid,out_of_window}
	PipelineRunning   prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Reporter metrics.
	ReportsGenerated  prometheus.Counter
	ReportDuration    prometheus.Histogram
	ReportSinkErrors  *prometheus.CounterVec // labels: sink
	Categories        prometheus.Gauge
	UndefinedPeriods  prometheus.Gauge
	ZeroFilledPeriods prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total messages read from the source topic.",
		}),
		RecordsAggregated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_aggregated_total",
			Help:      "Total death records added to period counts.",
		}),
		TransformErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Records skipped during transformation, by reason.",
		}, []string{"reason"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		ReportsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_generated_total",
			Help:      "Total variation reports computed.",
		}),
		ReportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_duration_seconds",
			Help:      "Time to build series, estimate and publish one report.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		ReportSinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_sink_errors_total",
			Help:      "Report publish failures by sink.",
		}, []string{"sink"}),
		Categories: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "categories",
			Help:      "Categories in the latest report.",
		}),
		UndefinedPeriods: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "undefined_periods",
			Help:      "Periods without a variation value in the latest report.",
		}),
		ZeroFilledPeriods: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "zero_filled_periods",
			Help:      "Months without records inside a category span in the latest report.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesConsumed,
		m.RecordsAggregated,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.ReportsGenerated,
		m.ReportDuration,
		m.ReportSinkErrors,
		m.Categories,
		m.UndefinedPeriods,
		m.ZeroFilledPeriods,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
