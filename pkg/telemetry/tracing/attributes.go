package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"openserver-hq/guardrails/pkg/moderation/types"
)

// Span attribute keys. Request text is never recorded.
const (
	AttrRequestID     = attribute.Key("guardrails.request_id")
	AttrLanguage      = attribute.Key("guardrails.language")
	AttrTranslated    = attribute.Key("guardrails.translated")
	AttrAction        = attribute.Key("guardrails.action")
	AttrSeverity      = attribute.Key("guardrails.severity")
	AttrProfile       = attribute.Key("guardrails.profile")
	AttrCategories    = attribute.Key("guardrails.categories")
	AttrEngine        = attribute.Key("guardrails.engine")
	AttrEngineKind    = attribute.Key("guardrails.engine.kind")
	AttrErrored       = attribute.Key("guardrails.engine.errored")
	AttrFallback      = attribute.Key("guardrails.engine.fallback")
	AttrFailureReason = attribute.Key("guardrails.engine.failure_reason")
	AttrLatencyMs     = attribute.Key("guardrails.engine.latency_ms")
	AttrRedactions    = attribute.Key("guardrails.mitigation.redactions")
	AttrMitigated     = attribute.Key("guardrails.mitigation.applied")
	AttrStage         = attribute.Key("guardrails.stage")
)

// Event names.
const (
	EventStage   = "moderation.stage"
	EventVerdict = "engine.verdict"
)

// SetDecisionAttributes records the outcome of a decision on span.
func SetDecisionAttributes(span trace.Span, d *types.Decision) {
	categories := make([]string, len(d.Categories))
	for i, c := range d.Categories {
		categories[i] = string(c)
	}
	span.SetAttributes(
		AttrLanguage.String(d.Language),
		AttrTranslated.Bool(d.Translated),
		AttrAction.String(d.Action.String()),
		AttrSeverity.Float64(d.Severity),
		AttrProfile.String(d.ProfileApplied),
		AttrCategories.StringSlice(categories),
	)
	if d.Mitigation != nil {
		SetMitigationAttributes(span, d.Mitigation)
	}
}

// SetMitigationAttributes records a mitigation plan summary on span.
func SetMitigationAttributes(span trace.Span, plan *types.MitigationPlan) {
	span.SetAttributes(
		AttrMitigated.Bool(plan.Mitigated),
		AttrRedactions.Int(plan.RedactionCount()),
	)
}

// AddVerdictEvent records one engine verdict as a span event.
func AddVerdictEvent(span trace.Span, v types.EngineVerdict) {
	attrs := []attribute.KeyValue{
		AttrEngine.String(v.Engine),
		AttrEngineKind.String(string(v.Kind)),
		AttrErrored.Bool(v.Errored),
		AttrLatencyMs.Float64(float64(v.Latency.Microseconds()) / 1000),
	}
	if v.Fallback {
		attrs = append(attrs, AttrFallback.Bool(true))
	}
	if v.FailureReason != types.FailureNone {
		attrs = append(attrs, AttrFailureReason.String(string(v.FailureReason)))
	}
	span.AddEvent(EventVerdict, trace.WithAttributes(attrs...))
}

// AddStageEvent marks the start of a processing stage.
func AddStageEvent(span trace.Span, stage string) {
	span.AddEvent(EventStage, trace.WithAttributes(AttrStage.String(stage)))
}
