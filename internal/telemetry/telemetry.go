// Package telemetry exposes the sampler's own health counters over an optional
// HTTP endpoint. It observes the sampler, it never feeds the row output.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts sampling loop activity.
// Params: none.
// Returns: registered self-telemetry counters.
type Metrics struct {
	registry *prometheus.Registry

	cycles       *prometheus.CounterVec
	events       prometheus.Counter
	cycleSeconds prometheus.Histogram
}

// NewMetrics builds and registers the sampler's self-telemetry metrics on a
// private registry, so repeated construction never double-registers.
// Params: none.
// Returns: metrics handle.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	cycles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nodestat_cycles_total",
		Help: "Sampling cycles by outcome.",
	}, []string{"outcome"})
	events := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nodestat_log_events_total",
		Help: "Structured events classified from the node log.",
	})
	cycleSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nodestat_cycle_seconds",
		Help:    "Wall-clock duration of one sampling cycle.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	registry.MustRegister(cycles, events, cycleSeconds)

	return &Metrics{
		registry:     registry,
		cycles:       cycles,
		events:       events,
		cycleSeconds: cycleSeconds,
	}
}

// Registry exposes the private registry for the HTTP handler.
// Params: none.
// Returns: prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCycle records one finished cycle.
// Params: elapsed cycle duration; responsive outcome flag.
// Returns: none.
func (m *Metrics) ObserveCycle(elapsed time.Duration, responsive bool) {
	outcome := "responsive"
	if !responsive {
		outcome = "unresponsive"
	}
	m.cycles.WithLabelValues(outcome).Inc()
	m.cycleSeconds.Observe(elapsed.Seconds())
}

// AddEvents records classified log events.
// Params: count events classified this cycle.
// Returns: none.
func (m *Metrics) AddEvents(count int) {
	if count > 0 {
		m.events.Add(float64(count))
	}
}
