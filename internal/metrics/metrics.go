package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RateFetchesTotal counts source fetches by provider and outcome.
	RateFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxwatch_rate_fetches_total",
			Help: "Number of rate lookups issued against a source",
		},
		[]string{"provider", "outcome"},
	)

	// RateCacheHitsTotal counts lookups served from the runtime cache.
	RateCacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxwatch_rate_cache_hits_total",
			Help: "Number of rate lookups answered without source I/O",
		},
		[]string{"provider"},
	)

	// RateFetchDuration observes source fetch latency including retries.
	RateFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fxwatch_rate_fetch_duration_seconds",
			Help:    "End-to-end latency of uncached rate lookups",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// AlertPassesTotal counts completed evaluation passes.
	AlertPassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fxwatch_alert_passes_total",
			Help: "Number of completed alert evaluation passes",
		},
	)

	// AlertsTriggeredTotal counts alerts that crossed their threshold.
	AlertsTriggeredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fxwatch_alerts_triggered_total",
			Help: "Number of alerts transitioned to notified",
		},
	)

	// NotificationAttemptsTotal counts channel deliveries by outcome.
	NotificationAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxwatch_notification_attempts_total",
			Help: "Number of notification channel attempts",
		},
		[]string{"channel", "outcome"},
	)
)

// Handler exposes the default registry for the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
