// Package metrics exposes loyalty engine activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daap14/loyalty/internal/loyalty"
	"github.com/daap14/loyalty/internal/tier"
)

// Loyalty implements loyalty.Recorder.
type Loyalty struct {
	registry    *prometheus.Registry
	operations  *prometheus.CounterVec
	points      *prometheus.CounterVec
	tierChanges *prometheus.CounterVec
	repairs     prometheus.Counter
}

// New registers the loyalty collectors, plus Go runtime and process
// collectors, on a fresh registry.
func New(version string) *Loyalty {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"version": version}

	m := &Loyalty{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "loyalty_operations_total",
			Help:        "Loyalty engine operations by outcome.",
			ConstLabels: constLabels,
		}, []string{"operation", "outcome"}),
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "loyalty_points_total",
			Help:        "Points credited or debited by successful operations.",
			ConstLabels: constLabels,
		}, []string{"operation"}),
		tierChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "loyalty_tier_changes_total",
			Help:        "Tier transitions caused by balance changes.",
			ConstLabels: constLabels,
		}, []string{"from", "to"}),
		repairs: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "loyalty_tier_repairs_total",
			Help:        "Records whose stored tier was rewritten by the reconciler.",
			ConstLabels: constLabels,
		}),
	}

	reg.MustRegister(
		m.operations, m.points, m.tierChanges, m.repairs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Loyalty) ObserveOperation(op loyalty.Operation, outcome string) {
	m.operations.WithLabelValues(string(op), outcome).Inc()
}

func (m *Loyalty) ObservePoints(op loyalty.Operation, points int64) {
	m.points.WithLabelValues(string(op)).Add(float64(points))
}

func (m *Loyalty) ObserveTierChange(from, to tier.Level) {
	m.tierChanges.WithLabelValues(from.String(), to.String()).Inc()
}

// ObserveRepair counts one reconciler tier repair.
func (m *Loyalty) ObserveRepair() {
	m.repairs.Inc()
}

// Registry returns the underlying registry, mostly for tests.
func (m *Loyalty) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Loyalty) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
