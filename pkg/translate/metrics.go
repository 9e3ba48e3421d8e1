package translate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const outcomeSuccess = "success"

var (
	// Translation request metrics
	translationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tolk_translation_requests_total",
			Help: "Total number of forwarded translation requests",
		},
		[]string{"provider", "outcome"},
	)

	upstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tolk_upstream_request_duration_seconds",
			Help:    "Duration of upstream translation calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
		[]string{"provider", "outcome"},
	)

	translationRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tolk_translation_request_size_bytes",
			Help:    "Size of translation request text in bytes",
			Buckets: []float64{10, 100, 500, 1000, 5000, 10000, 50000, 100000},
		},
		[]string{"provider"},
	)

	// Request validation metrics
	validationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tolk_validation_failures_total",
			Help: "Total number of rejected client requests",
		},
	)

	// Provider selection metrics
	googleFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tolk_google_fallbacks_total",
			Help: "Requests that asked for Google but were served by LibreTranslate because no credential is configured",
		},
	)
)

// RecordValidationFailure counts a request rejected before dispatch.
func RecordValidationFailure() {
	validationFailuresTotal.Inc()
}

func recordFallback() {
	googleFallbacksTotal.Inc()
}

func recordDispatch(p Provider, outcome string, duration time.Duration, requestSize int) {
	provider := string(p)
	translationRequestsTotal.WithLabelValues(provider, outcome).Inc()
	upstreamRequestDuration.WithLabelValues(provider, outcome).Observe(duration.Seconds())
	translationRequestSize.WithLabelValues(provider).Observe(float64(requestSize))
}
