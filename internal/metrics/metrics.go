// Package metrics exposes Prometheus collectors for the browse engine and HTTP surface.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "biblio"

// Metrics owns a private registry so tests and multiple servers never collide on the default one.
type Metrics struct {
	registry *prometheus.Registry

	activations   *prometheus.CounterVec
	recompute     prometheus.Histogram
	filtered      prometheus.Gauge
	materialized  prometheus.Counter
	persistErrors *prometheus.CounterVec
	fetchErrors   prometheus.Counter
	sessions      prometheus.Gauge
	rescans       prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "library_activations_total",
			Help:      "Library activations committed, by reconciliation decision.",
		}, []string{"decision"}),
		recompute: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "filter_recompute_seconds",
			Help:      "Time spent filtering and sorting the active catalog.",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		filtered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "filtered_records",
			Help:      "Records matching the filters after the most recent recompute.",
		}),
		materialized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_materialized_total",
			Help:      "Records appended to visible pages.",
		}),
		persistErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_persist_failures_total",
			Help:      "View state writes that failed, by scope.",
		}, []string{"scope"}),
		fetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetch_failures_total",
			Help:      "Catalog fetches that failed.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "browse_sessions",
			Help:      "Browse sessions currently held in memory.",
		}),
		rescans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "library_rescans_total",
			Help:      "Library directory rescans.",
		}),
	}

	m.registry.MustRegister(
		m.activations,
		m.recompute,
		m.filtered,
		m.materialized,
		m.persistErrors,
		m.fetchErrors,
		m.sessions,
		m.rescans,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Activation counts a committed activation.
func (m *Metrics) Activation(decision string) {
	m.activations.WithLabelValues(decision).Inc()
}

// Recompute records one pass of the filter and sort pipeline.
func (m *Metrics) Recompute(filtered int, elapsed time.Duration) {
	m.recompute.Observe(elapsed.Seconds())
	m.filtered.Set(float64(filtered))
}

// PageMaterialized counts records added to the visible sequence.
func (m *Metrics) PageMaterialized(records int) {
	m.materialized.Add(float64(records))
}

// PersistFailure counts a failed state write.
func (m *Metrics) PersistFailure(scope string) {
	m.persistErrors.WithLabelValues(scope).Inc()
}

// FetchFailure counts a failed catalog fetch.
func (m *Metrics) FetchFailure() {
	m.fetchErrors.Inc()
}

// SetSessions reports the number of live browse sessions.
func (m *Metrics) SetSessions(n int) {
	m.sessions.Set(float64(n))
}

// Rescan counts a library rescan.
func (m *Metrics) Rescan() {
	m.rescans.Inc()
}

// Registry returns the registry backing the handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
