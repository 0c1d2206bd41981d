package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DecisionMetrics tracks moderation outcomes.
//
// Metrics:
//   - guardrails_decisions_total: Decisions by action and cultural profile
//   - guardrails_decision_severity: Fused severity histogram
//   - guardrails_decision_categories_total: Flagged categories
//   - guardrails_validation_failures_total: Rejected requests
type DecisionMetrics struct {
	decisionsTotal     *prometheus.CounterVec
	severity           *prometheus.HistogramVec
	categoriesTotal    *prometheus.CounterVec
	validationFailures prometheus.Counter
}

// NewDecisionMetrics creates and registers decision metrics.
func NewDecisionMetrics(namespace string, registry *prometheus.Registry) *DecisionMetrics {
	dm := &DecisionMetrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Total number of moderation decisions",
			},
			[]string{"action", "profile"},
		),

		severity: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "decision_severity",
				Help:      "Fused severity of moderation decisions",
				Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
			[]string{"action"},
		),

		categoriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decision_categories_total",
				Help:      "Total number of flagged categories across decisions",
			},
			[]string{"category"},
		),

		validationFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_failures_total",
				Help:      "Total number of requests rejected by validation",
			},
		),
	}

	registry.MustRegister(
		dm.decisionsTotal,
		dm.severity,
		dm.categoriesTotal,
		dm.validationFailures,
	)

	return dm
}

// RecordDecision records one decision.
func (dm *DecisionMetrics) RecordDecision(action, profile string, severity float64, categories []string) {
	dm.decisionsTotal.WithLabelValues(action, profile).Inc()
	dm.severity.WithLabelValues(action).Observe(severity)
	for _, c := range categories {
		dm.categoriesTotal.WithLabelValues(c).Inc()
	}
}

// RecordValidationFailure records a rejected request.
func (dm *DecisionMetrics) RecordValidationFailure() {
	dm.validationFailures.Inc()
}
