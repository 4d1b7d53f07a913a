package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gmail API call latency (milliseconds)
	GmailCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gmail_call_latency_ms",
			Help:    "Gmail API call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"operation", "status"},
	)

	// Model call latency (milliseconds)
	ModelCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_call_latency_ms",
			Help:    "Generative model call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"model", "status"},
	)

	// Database query latency (seconds)
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// HTTP request latency (seconds)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// Analyzed email count
	EmailAnalyzedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_analyzed_count",
			Help: "Total number of emails run through the analyzer",
		},
		[]string{"status"}, // status: actionable, no_action, dropped
	)

	// Task operation count
	TaskOpCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_op_count",
			Help: "Total number of task store operations",
		},
		[]string{"op"}, // op: list, insert, done
	)
)

// RecordGmailCallLatency records one Gmail API call.
func RecordGmailCallLatency(operation, status string, duration time.Duration) {
	GmailCallLatency.WithLabelValues(operation, status).Observe(float64(duration.Milliseconds()))
}

// RecordModelCallLatency records one generative model call.
func RecordModelCallLatency(model, status string, duration time.Duration) {
	ModelCallLatency.WithLabelValues(model, status).Observe(float64(duration.Milliseconds()))
}

// RecordDBQueryDuration records one database operation.
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordHTTPRequestDuration records one served HTTP request.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementEmailAnalyzed bumps the analyzer outcome counter.
func IncrementEmailAnalyzed(status string) {
	EmailAnalyzedCount.WithLabelValues(status).Inc()
}

// IncrementTaskOp bumps the task store operation counter.
func IncrementTaskOp(op string) {
	TaskOpCount.WithLabelValues(op).Inc()
}
