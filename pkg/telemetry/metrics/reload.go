package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReloadMetrics tracks policy hot reloads.
//
// Metrics:
//   - guardrails_policy_reloads_total: Reload attempts by trigger and outcome
//   - guardrails_policy_last_reload_success_timestamp_seconds: Time of the last successful reload
type ReloadMetrics struct {
	reloadsTotal *prometheus.CounterVec
	lastSuccess  prometheus.Gauge
}

// NewReloadMetrics creates and registers reload metrics.
func NewReloadMetrics(namespace string, registry *prometheus.Registry) *ReloadMetrics {
	rm := &ReloadMetrics{
		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_reloads_total",
				Help:      "Total number of policy reload attempts",
			},
			[]string{"trigger", "outcome"},
		),
		lastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "policy_last_reload_success_timestamp_seconds",
				Help:      "Unix time of the last successful policy reload",
			},
		),
	}

	registry.MustRegister(rm.reloadsTotal, rm.lastSuccess)
	return rm
}

// RecordReload records one reload attempt.
func (rm *ReloadMetrics) RecordReload(trigger string, err error, at time.Time) {
	if err != nil {
		rm.reloadsTotal.WithLabelValues(trigger, "error").Inc()
		return
	}
	rm.reloadsTotal.WithLabelValues(trigger, "success").Inc()
	rm.lastSuccess.Set(float64(at.Unix()))
}
