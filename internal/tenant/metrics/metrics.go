// Package metrics exposes Prometheus instruments for the tenant module.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution outcome label values.
const (
	ResolveOK           = "ok"
	ResolveUnauthorized = "unauthorized"
	ResolveForbidden    = "forbidden"
	ResolveError        = "error"
)

// Metrics holds the tenant module's Prometheus instruments. ResolveKeyDuration
// covers the authentication hot path: every scoring request pays one bcrypt
// comparison here, so this histogram is the first place auth latency shows up.
type Metrics struct {
	TenantsCreated     prometheus.Counter
	KeysIssued         prometheus.Counter
	KeyResolves        *prometheus.CounterVec
	ResolveKeyDuration prometheus.Histogram
}

// New registers tenant metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		TenantsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "siva_tenants_created_total",
			Help: "Total number of tenants created.",
		}),
		KeysIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "siva_api_keys_issued_total",
			Help: "Total number of API keys issued.",
		}),
		KeyResolves: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siva_api_key_resolves_total",
				Help: "API key resolution attempts by outcome.",
			},
			[]string{"outcome"},
		),
		ResolveKeyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "siva_resolve_api_key_duration_seconds",
			Help:    "Duration of ResolveAPIKey operations (request auth critical path).",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementTenantCreated records a successful tenant creation. Safe on nil
// receivers so callers without metrics wired skip instrumentation.
func (m *Metrics) IncrementTenantCreated() {
	if m != nil {
		m.TenantsCreated.Inc()
	}
}

// IncrementKeyIssued records a successful API key issuance.
func (m *Metrics) IncrementKeyIssued() {
	if m != nil {
		m.KeysIssued.Inc()
	}
}

// ObserveResolveKey records the outcome and duration of one ResolveAPIKey
// call. Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveResolveKey(outcome string, start time.Time) {
	if m != nil {
		m.KeyResolves.WithLabelValues(outcome).Inc()
		m.ResolveKeyDuration.Observe(time.Since(start).Seconds())
	}
}
