// Package observability provides Prometheus metrics for the lingyun
// client runtime.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference
// latencies, ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts executed API calls by operation and outcome.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lingyun_requests_total",
			Help: "Total API requests",
		},
		[]string{"operation", "model", "status"},
	)

	// RequestDuration records end-to-end call duration in seconds,
	// including rate-limiter waits and retries.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lingyun_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"operation", "model"},
	)

	// RetriesTotal counts retried attempts by the platform error code
	// that triggered them.
	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lingyun_retries_total",
			Help: "Retried attempts",
		},
		[]string{"error_code"},
	)

	// RateLimitWait records how long acquires blocked on the limiter.
	RateLimitWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lingyun_ratelimit_wait_seconds",
			Help:    "Rate limiter wait time",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 60},
		},
	)

	// TokenRefreshesTotal counts identity-endpoint token fetches.
	TokenRefreshesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lingyun_token_refreshes_total",
			Help: "Access token fetches",
		},
	)

	// StreamsActive tracks open streaming responses.
	StreamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lingyun_streams_active",
			Help: "Active streaming responses",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		RetriesTotal,
		RateLimitWait,
		TokenRefreshesTotal,
		StreamsActive,
	)
}
