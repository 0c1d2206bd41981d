package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"openserver-hq/guardrails/pkg/moderation/types"
)

// MitigationMetrics tracks mitigation plans.
//
// Metrics:
//   - guardrails_mitigations_total: Plans by whether the text changed
//   - guardrails_mitigation_redactions_total: Replacements by kind
type MitigationMetrics struct {
	plansTotal      *prometheus.CounterVec
	redactionsTotal *prometheus.CounterVec
}

// NewMitigationMetrics creates and registers mitigation metrics.
func NewMitigationMetrics(namespace string, registry *prometheus.Registry) *MitigationMetrics {
	mm := &MitigationMetrics{
		plansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mitigations_total",
				Help:      "Total number of mitigation plans produced",
			},
			[]string{"mitigated"},
		),

		redactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mitigation_redactions_total",
				Help:      "Total number of replacements applied by mitigation",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(mm.plansTotal, mm.redactionsTotal)

	return mm
}

// RecordPlan records one plan and its per-kind replacement counts.
func (mm *MitigationMetrics) RecordPlan(plan *types.MitigationPlan) {
	if plan == nil {
		return
	}
	mitigated := "false"
	if plan.Mitigated {
		mitigated = "true"
	}
	mm.plansTotal.WithLabelValues(mitigated).Inc()
	for _, r := range plan.Redactions {
		mm.redactionsTotal.WithLabelValues(r.Kind).Add(float64(r.Count))
	}
}
