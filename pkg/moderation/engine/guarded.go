package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"openserver-hq/guardrails/pkg/moderation/breaker"
	"openserver-hq/guardrails/pkg/moderation/types"
	"openserver-hq/guardrails/pkg/telemetry/logging"
)

// Guarded wraps a remote Caller with its circuit breaker, per-call timeout
// and heuristic fallback. It is the Engine the chain sees for every remote
// slot.
type Guarded struct {
	remote   Caller
	breaker  *breaker.Breaker
	fallback *Heuristic
	timeout  time.Duration
	logger   *slog.Logger
}

// NewGuarded wraps remote. timeout <= 0 leaves only the request deadline.
func NewGuarded(remote Caller, b *breaker.Breaker, fallback *Heuristic, timeout time.Duration, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{
		remote:   remote,
		breaker:  b,
		fallback: fallback,
		timeout:  timeout,
		logger:   logger,
	}
}

// Name returns the wrapped engine's name.
func (g *Guarded) Name() string {
	return g.remote.Name()
}

// Kind returns the wrapped engine's kind.
func (g *Guarded) Kind() types.EngineKind {
	return g.remote.Kind()
}

// Breaker returns the breaker guarding the engine.
func (g *Guarded) Breaker() *breaker.Breaker {
	return g.breaker
}

// Evaluate calls the remote engine unless its breaker is open. Any failure
// yields the heuristic fallback verdict under this engine's name.
func (g *Guarded) Evaluate(ctx context.Context, text string, md Metadata) types.EngineVerdict {
	start := time.Now()

	ticket, ok := g.breaker.Allow()
	if !ok {
		logging.FromContext(ctx, g.logger).Debug("circuit open, using fallback",
			"engine", g.Name(),
		)
		return g.Fallback(text, md, types.FailureBreakerOpen, time.Since(start))
	}

	// When the request deadline is at least as tight as the engine's own
	// timeout, that deadline is the engine's budget and overrunning it counts
	// against the engine.
	requestBound := g.timeout <= 0
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= g.timeout {
		requestBound = true
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	out := g.call(callCtx, text, md)
	latency := time.Since(start)

	if out.Failure == nil {
		ticket.Success()
		return types.NewVerdict(g.Name(), g.Kind(), out.Scores, out.Flagged, latency)
	}

	// The caller gave up before the engine's own timeout: the engine is not
	// at fault, so the outcome is not counted.
	if err := ctx.Err(); err != nil {
		reason := types.FailureCancelled
		if errors.Is(err, context.DeadlineExceeded) {
			reason = types.FailureDeadline
		}
		if reason == types.FailureDeadline && requestBound {
			ticket.Failure()
			logging.FromContext(ctx, g.logger).Warn("engine used the whole request deadline, using fallback",
				"engine", g.Name(),
				"kind", string(g.Kind()),
				"latency", latency,
			)
		} else {
			ticket.Release()
		}
		return g.Fallback(text, md, reason, latency)
	}

	ticket.Failure()
	logging.FromContext(ctx, g.logger).Warn("engine call failed, using fallback",
		"engine", g.Name(),
		"kind", string(g.Kind()),
		"reason", string(out.Failure.Reason),
		"status", out.Failure.StatusCode,
		"error", out.Failure.Cause,
		"latency", latency,
	)
	return g.Fallback(text, md, out.Failure.Reason, latency)
}

// Fallback returns the heuristic verdict labelled with this engine's slot.
func (g *Guarded) Fallback(text string, md Metadata, reason types.FailureReason, latency time.Duration) types.EngineVerdict {
	if g.fallback == nil {
		return types.ErroredVerdict(g.Name(), g.Kind(), reason, latency)
	}
	scores, flagged := g.fallback.Score(text, md.Language)
	return types.NewVerdict(g.Name(), g.Kind(), scores, flagged, 0).
		AsFallback(g.Name(), g.Kind(), reason, latency)
}

// call invokes the remote engine, converting a panic into a failure.
func (g *Guarded) call(ctx context.Context, text string, md Metadata) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Failed(&Failure{Engine: g.Name(), Reason: types.FailurePanic, Cause: fmt.Errorf("panic: %v", r)})
		}
	}()
	return g.remote.Call(ctx, text, md)
}
