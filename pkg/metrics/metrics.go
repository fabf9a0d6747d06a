package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Run status label values
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Collector holds all Prometheus metrics of the feature pipeline
type Collector struct {
	// Run metrics
	RunsTotal        *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	LastRunTimestamp *prometheus.GaugeVec
	FraudRatio       prometheus.Gauge

	// Stage metrics
	StageLatency *prometheus.HistogramVec

	// Data metrics
	TransactionsGenerated *prometheus.CounterVec
	FraudTransactions     *prometheus.CounterVec
	RowsWritten           *prometheus.CounterVec
	StoreWriteLatency     *prometheus.HistogramVec

	// Error handling metrics
	ErrorMetrics *ErrorMetrics

	registry *prometheus.Registry
	logger   *zap.Logger
}

// NewCollector creates a collector on its own registry. Go runtime and
// process metrics are registered alongside the pipeline metrics.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		logger:   logger,
	}

	c.initMetrics(namespace)
	c.registerMetrics()

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
	)

	c.ErrorMetrics = NewErrorMetrics(namespace, registry)

	return c
}

// initMetrics initializes all Prometheus metrics
func (c *Collector) initMetrics(namespace string) {
	c.RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Total number of feature pipeline runs",
		},
		[]string{"mode", "status"},
	)

	c.RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Feature pipeline run duration in seconds",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"mode"},
	)

	c.LastRunTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_last_run_timestamp_seconds",
			Help:      "Unix time of the last finished run",
		},
		[]string{"status"},
	)

	c.FraudRatio = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_fraud_ratio",
			Help:      "Share of fraudulent transactions in the last run",
		},
	)

	c.StageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_latency_seconds",
			Help:      "Latency of each pipeline stage in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	c.TransactionsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_loaded_total",
			Help:      "Total number of transactions loaded from the source",
		},
		[]string{"mode"},
	)

	c.FraudTransactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fraud_transactions_total",
			Help:      "Total number of loaded transactions labelled as fraud",
		},
		[]string{"mode"},
	)

	c.RowsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feature_rows_written_total",
			Help:      "Total number of rows handed to the feature store",
		},
		[]string{"feature_group"},
	)

	c.StoreWriteLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_write_latency_seconds",
			Help:      "Feature store write latency in seconds, retries included",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"feature_group"},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (c *Collector) registerMetrics() {
	// Run metrics
	c.registry.MustRegister(c.RunsTotal)
	c.registry.MustRegister(c.RunDuration)
	c.registry.MustRegister(c.LastRunTimestamp)
	c.registry.MustRegister(c.FraudRatio)

	// Stage metrics
	c.registry.MustRegister(c.StageLatency)

	// Data metrics
	c.registry.MustRegister(c.TransactionsGenerated)
	c.registry.MustRegister(c.FraudTransactions)
	c.registry.MustRegister(c.RowsWritten)
	c.registry.MustRegister(c.StoreWriteLatency)
}

// ObserveStage records the latency of one stage
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	c.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveRun records a finished run
func (c *Collector) ObserveRun(mode string, err error, d time.Duration, finished time.Time) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	c.RunsTotal.WithLabelValues(mode, status).Inc()
	c.RunDuration.WithLabelValues(mode).Observe(d.Seconds())
	c.LastRunTimestamp.WithLabelValues(status).Set(float64(finished.Unix()))
}

// Registry returns the registry backing the collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler for the /metrics endpoint
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
