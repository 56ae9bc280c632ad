// Package metrics holds the prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultBuckets are latency buckets in seconds.
var DefaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10} //nolint: gochecknoglobals

// Registry is the registry served on /metrics. A dedicated registry keeps
// tests free of duplicate registration panics.
var Registry = prometheus.NewRegistry()

var (
	// Renders counts finished renders by outcome.
	Renders = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reportcard",
		Name:      "renders_total",
		Help:      "Report card renders by outcome.",
	}, []string{"outcome"})

	// RenderDuration observes how long a render took.
	RenderDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "reportcard",
		Name:      "render_duration_seconds",
		Help:      "Time spent rendering one report card.",
		Buckets:   DefaultBuckets,
	})

	// TranslationFallbacks counts renders that used the untranslated name.
	TranslationFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reportcard",
		Name:      "translation_fallbacks_total",
		Help:      "Translations that failed and fell back to the original text.",
	})

	// Requests counts HTTP requests by route and status code.
	Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reportcard",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})
)

func init() {
	Registry.MustRegister(Renders, RenderDuration, TranslationFallbacks, Requests)
}

// ObserveRender records one render with the given outcome label.
func ObserveRender(d time.Duration, outcome string) {
	RenderDuration.Observe(d.Seconds())
	Renders.WithLabelValues(outcome).Inc()
}
