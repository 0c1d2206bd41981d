package moderation

import (
	"openserver-hq/guardrails/pkg/moderation/breaker"
	"openserver-hq/guardrails/pkg/moderation/types"
)

// Translation outcomes reported to Observer.TranslationCompleted.
const (
	TranslationTranslated = "translated"
	TranslationFailed     = "failed"
)

// Observer receives moderation events. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	breaker.Observer

	// EngineEvaluated is called once per verdict in a decision.
	EngineEvaluated(v types.EngineVerdict)

	// DecisionMade is called for every completed decision.
	DecisionMade(d *types.Decision)

	// TranslationCompleted is called when a translation was attempted.
	TranslationCompleted(outcome string)

	// MitigationPlanned is called for every mitigation plan produced.
	MitigationPlanned(plan *types.MitigationPlan)

	// ValidationFailed is called when a request is rejected.
	ValidationFailed(err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) BreakerTransition(breaker.Transition) {}
func (NopObserver) EngineEvaluated(types.EngineVerdict) {}
func (NopObserver) DecisionMade(*types.Decision) {}
func (NopObserver) TranslationCompleted(string) {}
func (NopObserver) MitigationPlanned(*types.MitigationPlan) {}
func (NopObserver) ValidationFailed(error) {}
