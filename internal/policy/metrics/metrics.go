// Package metrics exposes Prometheus instruments for the policy module.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution outcome label values.
const (
	ResolveHit      = "hit"
	ResolveFallback = "fallback"
	ResolveMiss     = "miss"
)

// Metrics holds the policy module's Prometheus instruments.
type Metrics struct {
	Resolves *prometheus.CounterVec
	Writes   *prometheus.CounterVec
}

// New registers policy metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Resolves: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siva_policy_resolves_total",
				Help: "Active policy lookups by outcome (hit, fallback, miss).",
			},
			[]string{"outcome", "vertical"},
		),
		Writes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siva_policy_writes_total",
				Help: "Policy write operations by action.",
			},
			[]string{"action"},
		),
	}
}

// IncrementResolve records one resolution outcome. Safe on nil receivers
// so callers without metrics wired skip instrumentation.
func (m *Metrics) IncrementResolve(outcome, vertical string) {
	if m != nil {
		m.Resolves.WithLabelValues(outcome, vertical).Inc()
	}
}

// IncrementWrite records one write operation (create, update, activate,
// archive, seed).
func (m *Metrics) IncrementWrite(action string) {
	if m != nil {
		m.Writes.WithLabelValues(action).Inc()
	}
}
