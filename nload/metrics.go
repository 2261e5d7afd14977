package nload

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/muir/ncompose"
)

// Metrics counts what runs do.  Each Metrics has its own registry so
// that several runners do not collide.  A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Runs             *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	SetupsProcessed  prometheus.Counter
	GraphsResolved   prometheus.Counter
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	Diagnostics      *prometheus.CounterVec
	VariantsExplored prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of passes over the loaded packages",
		}, []string{"result"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a pass in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		SetupsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "setups_processed_total",
			Help:      "Total number of setups extracted from configuration",
		}),
		GraphsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graphs_resolved_total",
			Help:      "Total number of dependency graphs resolved",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "setup_cache_hits_total",
			Help:      "Configuration files whose setups came from the cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "setup_cache_misses_total",
			Help:      "Configuration files that had to be processed",
		}),
		Diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Diagnostics reported by id and severity",
		}, []string{"id", "severity"}),
		VariantsExplored: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "variants_explored",
			Help:      "Variants tried before a graph resolved",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
	m.registry.MustRegister(
		m.Runs,
		m.RunDuration,
		m.SetupsProcessed,
		m.GraphsResolved,
		m.CacheHits,
		m.CacheMisses,
		m.Diagnostics,
		m.VariantsExplored,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) diagnostic(d ncompose.Diagnostic) {
	if m == nil {
		return
	}
	m.Diagnostics.WithLabelValues(string(d.ID), d.Severity.String()).Inc()
}

func (m *Metrics) run(start time.Time, failed bool) {
	if m == nil {
		return
	}
	result := "ok"
	if failed {
		result = "failed"
	}
	m.Runs.WithLabelValues(result).Inc()
	m.RunDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) setups(n int) {
	if m == nil {
		return
	}
	m.SetupsProcessed.Add(float64(n))
}

func (m *Metrics) cache(hits, misses int64) {
	if m == nil {
		return
	}
	m.CacheHits.Add(float64(hits))
	m.CacheMisses.Add(float64(misses))
}

func (m *Metrics) graph(g *ncompose.DependencyGraph) {
	if m == nil {
		return
	}
	m.GraphsResolved.Inc()
	m.VariantsExplored.Observe(float64(g.Iterations))
}
