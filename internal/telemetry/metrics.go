package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// APIRequests counts outbound NetGuard API calls by outcome
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netguard",
			Name:      "api_requests_total",
			Help:      "Total number of requests sent to the NetGuard API",
		},
		[]string{"resource", "outcome"},
	)

	// APIRequestDuration observes round-trip latency of API calls
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "netguard",
			Name:      "api_request_duration_seconds",
			Help:      "Latency of requests sent to the NetGuard API",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"resource"},
	)

	// PollCycles counts polling cycles per view, mode and outcome
	PollCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netguard",
			Name:      "poll_cycles_total",
			Help:      "Total number of polling cycles",
		},
		[]string{"view", "mode", "outcome"},
	)

	// WebSocketClients tracks connected dashboard clients
	WebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "netguard",
			Name:      "websocket_clients",
			Help:      "Number of connected WebSocket clients",
		},
	)

	once sync.Once
)

// Outcome labels
const (
	OutcomeOK        = "ok"
	OutcomeAuth      = "auth_error"
	OutcomeTransport = "transport_error"
)

// InitMetrics registers all metrics with the global Prometheus registry.
// Safe to call more than once; a name clash with another collector panics.
func InitMetrics() {
	once.Do(func() {
		prometheus.MustRegister(APIRequests, APIRequestDuration, PollCycles, WebSocketClients)
	})
}

// ObserveAPICall records the outcome and latency of one API call
func ObserveAPICall(resource, outcome string, took time.Duration) {
	APIRequests.WithLabelValues(resource, outcome).Inc()
	APIRequestDuration.WithLabelValues(resource).Observe(took.Seconds())
}
