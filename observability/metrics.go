package observability

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// pendingTokensSource reports the live pending entry count. Evaluated at
// scrape time so entries removed by the TTL sweep never linger in the
// metric.
var pendingTokensSource atomic.Value // func() int

// SetPendingTokensSource installs the live-count source behind the
// PendingTokens gauge. The pass generator wires this once at startup.
func SetPendingTokensSource(fn func() int) {
	pendingTokensSource.Store(fn)
}

var (
	// PassesGeneratedTotal counts completed pass generations by outcome.
	PassesGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkpass_passes_generated_total",
			Help: "Total number of pass generations by outcome",
		},
		[]string{"status"}, // success, validation_error, failure
	)

	// PassGenerateDuration tracks end-to-end generation time in seconds.
	PassGenerateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inkpass_pass_generate_duration_seconds",
			Help:    "Pass generation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to 10s
		},
	)

	// DrawingOverlaysTotal counts how user drawings were handled.
	DrawingOverlaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkpass_drawing_overlays_total",
			Help: "Total drawing overlay outcomes",
		},
		[]string{"outcome"}, // composited, absent, undecodable
	)

	// PendingTokens tracks live entries in the pending pass store.
	PendingTokens = promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "inkpass_pending_tokens",
			Help: "Current number of unconsumed pending pass tokens",
		},
		func() float64 {
			fn, _ := pendingTokensSource.Load().(func() int)
			if fn == nil {
				return 0
			}
			return float64(fn())
		},
	)

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkpass_http_requests_total",
			Help: "Total number of HTTP requests by method, route, and status",
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestDuration tracks HTTP request duration in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inkpass_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to 16s
		},
		[]string{"method", "route"},
	)
)
