// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// MessagesTotal tracks messages appended to sessions, by session mode
	// and sender.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total chat messages appended",
		},
		[]string{"mode", "sender"},
	)

	// ReplyDelaySeconds tracks the simulated reply delays handed out by the
	// timing engine.
	ReplyDelaySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_reply_delay_seconds",
			Help:    "Simulated character reply delay",
			Buckets: []float64{5, 10, 15, 20, 30, 45, 60},
		},
	)

	// LLMFailuresTotal tracks AI collaborator failures by provider and
	// failure class.
	LLMFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_failures_total",
			Help: "Total AI completion failures",
		},
		[]string{"provider", "class"},
	)

	// NotificationsTotal tracks transient notifications dispatched.
	NotificationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_notifications_total",
			Help: "Total transient notifications dispatched",
		},
	)

	// QuotaRejectionsTotal tracks sends rejected by the demo paywall.
	QuotaRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_quota_rejections_total",
			Help: "Total sends rejected by the demo message quota",
		},
	)

	// OpenSessions tracks currently open conversation sessions.
	OpenSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_open_sessions",
			Help: "Number of open conversation sessions",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}
