// Package metrics exposes the Prometheus instrumentation for the
// classification engine: request latency and outcome counters, scraped at
// the Gateway's /metrics route. It stays a thin wrapper around
// client_golang rather than hand-rolled counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles the metrics the Gateway and the serve command's initial
// pattern load record against,
// plus the prometheus.Registerer they live on so callers can mount
// /metrics against exactly this set rather than the global default.
type Registry struct {
	Registerer     prometheus.Registerer
	Gatherer       prometheus.Gatherer
	ProcessingTime *prometheus.HistogramVec
	Requests       *prometheus.CounterVec
	ReloadTotal    *prometheus.CounterVec
}

// NewRegistry builds a fresh prometheus.Registry and registers the
// classification engine's metrics on it. Using a dedicated registry
// rather than the global default keeps repeated construction (as in
// tests, or multiple engine instances in one process) from panicking on
// duplicate registration.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		Registerer: reg,
		Gatherer:   reg,
		ProcessingTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "weaveclassify",
			Name:      "processing_time_ms",
			Help:      "Classification request processing time in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"status"}),
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weaveclassify",
			Name:      "requests_total",
			Help:      "Total classification requests by outcome status.",
		}, []string{"status"}),
		ReloadTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weaveclassify",
			Name:      "reload_total",
			Help:      "Total pattern-catalogue reload attempts by outcome.",
		}, []string{"outcome"}),
	}
}

// ObserveClassification records one classification's outcome and latency.
func (r *Registry) ObserveClassification(status string, processingTimeMs float64) {
	r.Requests.WithLabelValues(status).Inc()
	r.ProcessingTime.WithLabelValues(status).Observe(processingTimeMs)
}

// ObserveReload records one reload attempt's outcome ("success" or
// "failure").
func (r *Registry) ObserveReload(outcome string) {
	r.ReloadTotal.WithLabelValues(outcome).Inc()
}
