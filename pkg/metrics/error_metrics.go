package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	ferrors "github.com/therealutkarshpriyadarshi/ccfraud/pkg/errors"
)

// ErrorMetrics holds error handling specific metrics
type ErrorMetrics struct {
	// Retry metrics
	RetryAttempts    *prometheus.CounterVec
	RetrySuccesses   *prometheus.CounterVec
	RetryFailures    *prometheus.CounterVec
	RetryBackoffTime *prometheus.HistogramVec

	// Error categorization metrics
	ErrorsByCategory *prometheus.CounterVec
}

// NewErrorMetrics creates a new error metrics collector
func NewErrorMetrics(namespace string, registry *prometheus.Registry) *ErrorMetrics {
	em := &ErrorMetrics{}
	em.initMetrics(namespace)
	em.registerMetrics(registry)
	return em
}

// initMetrics initializes all error-related metrics
func (em *ErrorMetrics) initMetrics(namespace string) {
	em.RetryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_retry_attempts_total",
			Help:      "Total number of feature store write retries",
		},
		[]string{"feature_group", "error_category"},
	)

	em.RetrySuccesses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_retry_successes_total",
			Help:      "Total number of writes that succeeded after at least one retry",
		},
		[]string{"feature_group"},
	)

	em.RetryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_retry_failures_total",
			Help:      "Total number of writes that failed after all attempts",
		},
		[]string{"feature_group", "error_category"},
	)

	em.RetryBackoffTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_retry_backoff_seconds",
			Help:      "Total backoff time spent in retries of one write",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"feature_group"},
	)

	em.ErrorsByCategory = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_by_category_total",
			Help:      "Total number of errors by pipeline stage and category",
		},
		[]string{"stage", "category"},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (em *ErrorMetrics) registerMetrics(registry *prometheus.Registry) {
	registry.MustRegister(em.RetryAttempts)
	registry.MustRegister(em.RetrySuccesses)
	registry.MustRegister(em.RetryFailures)
	registry.MustRegister(em.RetryBackoffTime)
	registry.MustRegister(em.ErrorsByCategory)
}

// RecordError counts an error under its classified category
func (em *ErrorMetrics) RecordError(stage string, err error) {
	em.ErrorsByCategory.WithLabelValues(stage, ferrors.ClassifyError(err).String()).Inc()
}

// RecordRetry counts one failed attempt that will be retried
func (em *ErrorMetrics) RecordRetry(group string, err error) {
	em.RetryAttempts.WithLabelValues(group, ferrors.ClassifyError(err).String()).Inc()
}

// RecordResult records the outcome of a retried write
func (em *ErrorMetrics) RecordResult(group string, result *ferrors.RetryResult) {
	em.RetryBackoffTime.WithLabelValues(group).Observe(result.TotalBackoff.Seconds())
	switch {
	case result.Success && result.Attempts > 1:
		em.RetrySuccesses.WithLabelValues(group).Inc()
	case !result.Success:
		em.RetryFailures.WithLabelValues(group, ferrors.ClassifyError(result.LastError).String()).Inc()
	}
}
