// Package metrics exposes Prometheus instruments for the rate limiter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"siva/internal/ratelimit/models"
)

// Outcome label values.
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
)

// Metrics holds the rate limiter's Prometheus instruments. StoreErrors is the
// one to alert on: every increment there means a request passed unmetered
// because the counting store was unreachable.
type Metrics struct {
	Checks      *prometheus.CounterVec
	StoreErrors prometheus.Counter
}

// New registers rate limit metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Checks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siva_ratelimit_checks_total",
				Help: "Rate limit checks by endpoint class, key kind, and outcome.",
			},
			[]string{"class", "kind", "outcome"},
		),
		StoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "siva_ratelimit_store_errors_total",
			Help: "Counter store failures; affected requests pass unmetered.",
		}),
	}
}

// ObserveCheck records the outcome of one budget check. Safe on nil receivers
// so callers without metrics wired skip instrumentation.
func (m *Metrics) ObserveCheck(class models.EndpointClass, kind models.KeyKind, allowed bool) {
	if m == nil {
		return
	}
	outcome := OutcomeAllowed
	if !allowed {
		outcome = OutcomeDenied
	}
	m.Checks.WithLabelValues(string(class), string(kind), outcome).Inc()
}

// IncrementStoreError records a counter store failure.
func (m *Metrics) IncrementStoreError() {
	if m != nil {
		m.StoreErrors.Inc()
	}
}
