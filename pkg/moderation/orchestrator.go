// Package moderation wires language resolution, the engine chain, verdict
// aggregation and mitigation planning into a single decision pipeline.
//
// A request moves through ResolvingLanguage, Chaining, Aggregating and
// MitigatingIfNeeded to Done. The only error a caller ever sees is a
// *types.ValidationError for a structurally invalid request; every other
// failure degrades into an errored or fallback engine verdict.
package moderation

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"openserver-hq/guardrails/pkg/moderation/aggregate"
	"openserver-hq/guardrails/pkg/moderation/chain"
	"openserver-hq/guardrails/pkg/moderation/culture"
	"openserver-hq/guardrails/pkg/moderation/engine"
	"openserver-hq/guardrails/pkg/moderation/language"
	"openserver-hq/guardrails/pkg/moderation/mitigation"
	"openserver-hq/guardrails/pkg/moderation/types"
	"openserver-hq/guardrails/pkg/telemetry/logging"
	"openserver-hq/guardrails/pkg/telemetry/tracing"

	"go.opentelemetry.io/otel/trace"
)

// Stage names a step of request processing.
type Stage string

const (
	StageResolvingLanguage  Stage = "resolving_language"
	StageChaining           Stage = "chaining"
	StageAggregating        Stage = "aggregating"
	StageMitigatingIfNeeded Stage = "mitigating_if_needed"
	StageDone               Stage = "done"
	StageErrored            Stage = "errored"
)

// Policy is the reloadable part of the pipeline. It is replaced as a whole.
type Policy struct {
	Profiles   *culture.Store
	Thresholds aggregate.Thresholds
}

// NewPolicy validates thresholds and builds the profile store.
func NewPolicy(profiles map[string]culture.ProfileConfig, th aggregate.Thresholds) (*Policy, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	store, err := culture.NewStore(profiles)
	if err != nil {
		return nil, err
	}
	return &Policy{Profiles: store, Thresholds: th}, nil
}

// Options configures an Orchestrator.
type Options struct {
	// RequestTimeout is the deadline shared by every stage. Zero means the
	// caller's context is the only bound.
	RequestTimeout time.Duration

	// MaxTextRunes rejects longer texts. Zero disables the check.
	MaxTextRunes int

	// MitigationMinAction is the least strict action that triggers
	// mitigation.
	MitigationMinAction types.Action

	Logger   *slog.Logger
	Observer Observer

	// Tracer records a span per request. Nil disables tracing.
	Tracer *tracing.Tracer
}

// Classification is the raw engine output for a request.
type Classification struct {
	RequestID   string                `json:"request_id"`
	Language    string                `json:"language"`
	Translated  bool                  `json:"translated"`
	EngineVotes []types.EngineVerdict `json:"engine_votes"`
}

// Orchestrator runs the decision pipeline. It is safe for concurrent use;
// Reload may be called while requests are in flight.
type Orchestrator struct {
	resolver *language.Resolver
	chain    *chain.Chain
	planner  *mitigation.Planner
	policy   atomic.Pointer[Policy]

	opts     Options
	logger   *slog.Logger
	observer Observer
	tracer   *tracing.Tracer
}

// New creates an orchestrator.
func New(resolver *language.Resolver, ch *chain.Chain, planner *mitigation.Planner, policy *Policy, opts Options) (*Orchestrator, error) {
	if resolver == nil || ch == nil || planner == nil || policy == nil {
		return nil, errors.New("moderation: resolver, chain, planner and policy are required")
	}
	if policy.Profiles == nil {
		return nil, errors.New("moderation: policy has no profile store")
	}
	if err := policy.Thresholds.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		resolver: resolver,
		chain:    ch,
		planner:  planner,
		opts:     opts,
		logger:   opts.Logger,
		observer: opts.Observer,
		tracer:   opts.Tracer,
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.observer == nil {
		o.observer = NopObserver{}
	}
	if o.tracer == nil {
		o.tracer = tracing.Noop()
	}
	o.policy.Store(policy)
	return o, nil
}

// Policy returns the active policy.
func (o *Orchestrator) Policy() *Policy {
	return o.policy.Load()
}

// Reload replaces the active policy. Requests already past aggregation keep
// the policy they started with.
func (o *Orchestrator) Reload(p *Policy) error {
	if p == nil || p.Profiles == nil {
		return errors.New("moderation: reload with empty policy")
	}
	if err := p.Thresholds.Validate(); err != nil {
		return err
	}
	o.policy.Store(p)
	o.logger.Info("moderation policy reloaded",
		"profiles", len(p.Profiles.Languages()),
		"warn_threshold", p.Thresholds.Warn,
		"block_threshold", p.Thresholds.Block,
	)
	return nil
}

// Process moderates one request and returns its decision.
func (o *Orchestrator) Process(ctx context.Context, req types.Request) (*types.Decision, error) {
	ctx, span := o.startSpan(ctx, "moderation.process", req)
	defer span.End()
	logger := logging.FromContext(ctx, o.logger)
	start := time.Now()

	if err := o.validate(ctx, req); err != nil {
		return nil, err
	}

	ctx, cancel := o.withDeadline(ctx)
	defer cancel()

	res, verdicts := o.score(ctx, req)

	o.stage(ctx, StageAggregating)
	policy := o.policy.Load()
	profile := policy.Profiles.Lookup(res.Language)
	result := aggregate.Aggregate(verdicts, profile, policy.Thresholds)

	decision := &types.Decision{
		RequestID:        req.RequestID(),
		Language:         res.Language,
		ProfileApplied:   profile.Name,
		Translated:       res.Translated,
		Severity:         result.Severity,
		Action:           result.Action,
		Categories:       result.Categories,
		CategorySeverity: result.CategorySeverity,
		EngineVotes:      verdicts,
	}

	o.stage(ctx, StageMitigatingIfNeeded)
	if decision.Action.Dominates(o.opts.MitigationMinAction) {
		plan := o.planner.Plan(req.Text())
		decision.Mitigation = &plan
		o.observer.MitigationPlanned(&plan)
	}

	o.stage(ctx, StageDone)
	tracing.SetDecisionAttributes(span, decision)
	o.observer.DecisionMade(decision)
	logger.Info("moderation decision",
		"action", decision.Action.String(),
		"severity", decision.Severity,
		"categories", decision.Categories,
		"language", decision.Language,
		"profile", decision.ProfileApplied,
		"cultural_block", result.CulturalBlock,
		"duration", time.Since(start),
	)
	return decision, nil
}

// Classify returns the raw engine verdicts for a request without
// aggregating them.
func (o *Orchestrator) Classify(ctx context.Context, req types.Request) (*Classification, error) {
	ctx, span := o.startSpan(ctx, "moderation.classify", req)
	defer span.End()
	if err := o.validate(ctx, req); err != nil {
		return nil, err
	}

	ctx, cancel := o.withDeadline(ctx)
	defer cancel()

	res, verdicts := o.score(ctx, req)
	o.stage(ctx, StageDone)
	return &Classification{
		RequestID:   req.RequestID(),
		Language:    res.Language,
		Translated:  res.Translated,
		EngineVotes: verdicts,
	}, nil
}

// Mitigate plans mitigation for text regardless of any decision, typically
// model output on its way back to the caller.
func (o *Orchestrator) Mitigate(ctx context.Context, req types.Request) (*types.MitigationPlan, error) {
	ctx, span := o.startSpan(ctx, "moderation.mitigate", req)
	defer span.End()
	if err := o.validate(ctx, req); err != nil {
		return nil, err
	}
	plan := o.planner.Plan(req.Text())
	tracing.SetMitigationAttributes(span, &plan)
	o.observer.MitigationPlanned(&plan)
	return &plan, nil
}

// Engines returns the configured engine names in chain order.
func (o *Orchestrator) Engines() []string {
	return o.chain.Names()
}

func (o *Orchestrator) validate(ctx context.Context, req types.Request) error {
	if err := req.Validate(o.opts.MaxTextRunes); err != nil {
		o.stage(ctx, StageErrored)
		tracing.SetError(trace.SpanFromContext(ctx), err)
		o.observer.ValidationFailed(err)
		logging.FromContext(ctx, o.logger).Info("rejected moderation request", "error", err)
		return err
	}
	return nil
}

func (o *Orchestrator) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.opts.RequestTimeout > 0 {
		return context.WithTimeout(ctx, o.opts.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

// score resolves the language and runs the chain.
func (o *Orchestrator) score(ctx context.Context, req types.Request) (language.Resolution, []types.EngineVerdict) {
	o.stage(ctx, StageResolvingLanguage)
	res := o.resolver.Resolve(ctx, req.Text(), req.DeclaredLanguage())
	if res.TranslationAttempted {
		outcome := TranslationTranslated
		if res.TranslationErr != nil {
			outcome = TranslationFailed
		}
		o.observer.TranslationCompleted(outcome)
	}

	o.stage(ctx, StageChaining)
	chainCtx, span := o.tracer.Start(ctx, "moderation.chain")
	verdicts := o.chain.Run(chainCtx, res.NormalizedText, engine.Metadata{
		RequestID: req.RequestID(),
		Language:  res.Language,
	})
	for _, v := range verdicts {
		tracing.AddVerdictEvent(span, v)
		o.observer.EngineEvaluated(v)
	}
	span.End()
	return res, verdicts
}

// startSpan tags ctx with the request id and opens the request span.
func (o *Orchestrator) startSpan(ctx context.Context, name string, req types.Request) (context.Context, trace.Span) {
	ctx = logging.WithRequestID(ctx, req.RequestID())
	return o.tracer.Start(ctx, name, trace.WithAttributes(tracing.AttrRequestID.String(req.RequestID())))
}

func (o *Orchestrator) stage(ctx context.Context, s Stage) {
	tracing.AddStageEvent(trace.SpanFromContext(ctx), string(s))
	logging.FromContext(ctx, o.logger).Debug("moderation stage", "stage", string(s))
}
