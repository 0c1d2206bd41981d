package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics tracks per-engine evaluation results.
//
// Metrics:
//   - guardrails_engine_evaluations_total: Verdicts by engine and outcome
//     (success, error, fallback)
//   - guardrails_engine_failures_total: Failed evaluations by reason
//   - guardrails_engine_latency_seconds: Verdict latency histogram
type EngineMetrics struct {
	evaluationsTotal *prometheus.CounterVec
	failuresTotal    *prometheus.CounterVec
	latency          *prometheus.HistogramVec
}

// NewEngineMetrics creates and registers engine metrics.
func NewEngineMetrics(namespace string, registry *prometheus.Registry) *EngineMetrics {
	em := &EngineMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_evaluations_total",
				Help:      "Total number of engine evaluations",
			},
			[]string{"engine", "outcome"},
		),

		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_failures_total",
				Help:      "Total number of failed engine evaluations by reason",
			},
			[]string{"engine", "reason"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "engine_latency_seconds",
				Help:      "Engine evaluation latency in seconds",
				// In-process heuristics take microseconds, remote calls up to
				// their timeout.
				Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"engine"},
		),
	}

	registry.MustRegister(
		em.evaluationsTotal,
		em.failuresTotal,
		em.latency,
	)

	return em
}

// RecordVerdict records one evaluation. reason is empty for successes.
func (em *EngineMetrics) RecordVerdict(engine, outcome, reason string, latency time.Duration) {
	em.evaluationsTotal.WithLabelValues(engine, outcome).Inc()
	em.latency.WithLabelValues(engine).Observe(latency.Seconds())
	if reason != "" {
		em.failuresTotal.WithLabelValues(engine, reason).Inc()
	}
}
