package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the evaluation module.
type Metrics struct {
	// Evaluation outcomes by decision and vertical
	EvaluationOutcome *prometheus.CounterVec

	// Edge case triggers by identifier
	EdgeCaseTriggered *prometheus.CounterVec

	// Policy resolution latency
	PolicyResolveLatency prometheus.Histogram

	// Overall evaluation latency
	EvaluateLatency prometheus.Histogram
}

// New creates a new Metrics instance with all evaluation module metrics registered.
func New() *Metrics {
	return &Metrics{
		EvaluationOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "siva_evaluation_outcomes_total",
			Help: "Total evaluation outcomes by decision and vertical",
		}, []string{"decision", "vertical"}),

		EdgeCaseTriggered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "siva_evaluation_edge_cases_total",
			Help: "Total edge case triggers by identifier",
		}, []string{"edge_case"}),

		PolicyResolveLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "siva_evaluation_policy_resolve_duration_seconds",
			Help:    "Duration of active policy resolution",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		EvaluateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "siva_evaluation_evaluate_duration_seconds",
			Help:    "Duration of full deal evaluation including policy resolution",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
	}
}

// IncrementOutcome records an evaluation outcome.
func (m *Metrics) IncrementOutcome(decision, vertical string) {
	if m != nil {
		m.EvaluationOutcome.WithLabelValues(decision, vertical).Inc()
	}
}

// IncrementEdgeCase records a triggered edge case.
func (m *Metrics) IncrementEdgeCase(edgeCase string) {
	if m != nil {
		m.EdgeCaseTriggered.WithLabelValues(edgeCase).Inc()
	}
}

// ObservePolicyResolveLatency records the duration of a policy lookup.
func (m *Metrics) ObservePolicyResolveLatency(d time.Duration) {
	if m != nil {
		m.PolicyResolveLatency.Observe(d.Seconds())
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}
