// Package metrics exposes Prometheus collectors for the price tracker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	detectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_detections_total",
			Help: "Price detections by resolving tier (static, rendered, none).",
		},
		[]string{"tier"},
	)

	renderedFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewatch_rendered_fallbacks_total",
			Help: "Detections that escalated to the headless browser tier.",
		},
	)

	checksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_checks_total",
			Help: "Per-product check outcomes within tracking cycles.",
		},
		[]string{"result"},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_notifications_total",
			Help: "Notification events emitted, by type.",
		},
		[]string{"type"},
	)

	cycleDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricewatch_cycle_duration_seconds",
			Help:    "Wall-clock duration of full check cycles.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)
)

// RecordDetection counts one detection outcome for the given tier.
func RecordDetection(tier string) {
	detectionsTotal.WithLabelValues(tier).Inc()
}

// RecordRenderedFallback counts an escalation to the rendered tier.
func RecordRenderedFallback() {
	renderedFallbacksTotal.Inc()
}

// RecordCheck counts one per-product check outcome ("ok" or "skipped").
func RecordCheck(result string) {
	checksTotal.WithLabelValues(result).Inc()
}

// RecordNotification counts one emitted notification event.
func RecordNotification(eventType string) {
	notificationsTotal.WithLabelValues(eventType).Inc()
}

// ObserveCycleDuration records the duration of one completed cycle.
func ObserveCycleDuration(seconds float64) {
	cycleDurationSeconds.Observe(seconds)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
