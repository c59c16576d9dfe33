// Package metrics declares the Prometheus collectors shared by the server and
// the worker. Collectors register on the default registry at init, and both
// binaries expose it at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Upload metrics
var (
	// UploadsTotal counts media files seen by the upload receiver.
	// kind is "image" or "video"; result is "accepted" or "rejected".
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_uploads_total",
			Help: "Total number of media files received",
		},
		[]string{"kind", "result"},
	)

	EnqueueFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_enqueue_failures_total",
			Help: "Derivative jobs that could not be enqueued",
		},
	)
)

// Derivative pipeline metrics
var (
	// DerivativeJobsTotal counts job outcomes: completed, retry, dead.
	DerivativeJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_derivative_jobs_total",
			Help: "Derivative job deliveries by outcome",
		},
		[]string{"outcome"},
	)

	DerivativeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_derivative_duration_seconds",
			Help:    "Time spent generating and persisting derivatives for one job",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	CleanupErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cleanup_errors_total",
			Help: "File removals that failed during media or product cleanup",
		},
	)
)

// Job outcome label values.
const (
	OutcomeCompleted = "completed"
	OutcomeRetry     = "retry"
	OutcomeDead      = "dead"
)
