package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"openserver-hq/guardrails/pkg/moderation/breaker"
)

// BreakerMetrics tracks circuit breaker state.
//
// Metrics:
//   - guardrails_breaker_state: 0=closed, 1=half-open, 2=open
//   - guardrails_breaker_transitions_total: Transitions by target state
type BreakerMetrics struct {
	state            *prometheus.GaugeVec
	transitionsTotal *prometheus.CounterVec

	mu      sync.Mutex
	lastSeq map[string]uint64
}

// NewBreakerMetrics creates and registers breaker metrics.
func NewBreakerMetrics(namespace string, registry *prometheus.Registry) *BreakerMetrics {
	bm := &BreakerMetrics{
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"engine"},
		),

		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breaker_transitions_total",
				Help:      "Total number of circuit breaker state transitions",
			},
			[]string{"engine", "to"},
		),
		lastSeq: make(map[string]uint64),
	}

	registry.MustRegister(bm.state, bm.transitionsTotal)

	return bm
}

// RecordTransition records a transition into to. The gauge only moves for a
// sequence number newer than the last one applied for the engine, so a late
// delivery cannot leave it showing a superseded state.
func (bm *BreakerMetrics) RecordTransition(engine string, seq uint64, to breaker.State) {
	bm.transitionsTotal.WithLabelValues(engine, to.String()).Inc()

	bm.mu.Lock()
	defer bm.mu.Unlock()
	if seq <= bm.lastSeq[engine] {
		return
	}
	bm.lastSeq[engine] = seq
	bm.state.WithLabelValues(engine).Set(stateValue(to.String()))
}

// SetState sets the gauge from a state name as reported by breaker.Status.
func (bm *BreakerMetrics) SetState(engine, state string) {
	bm.state.WithLabelValues(engine).Set(stateValue(state))
}

func stateValue(state string) float64 {
	switch state {
	case breaker.StateHalfOpen.String():
		return 1
	case breaker.StateOpen.String():
		return 2
	default:
		return 0
	}
}
