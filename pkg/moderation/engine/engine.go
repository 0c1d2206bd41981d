// Package engine defines the moderation engine contract and its three
// variants: the in-process Heuristic scorer, the External policy service and
// the NativeModeration classifier.
//
// Remote engines never talk to the chain directly. They implement Caller,
// which returns an explicit Outcome, and are wrapped in a Guarded engine that
// applies the circuit breaker, the per-call timeout and the heuristic
// fallback. Every Engine's Evaluate therefore always yields a verdict.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"openserver-hq/guardrails/pkg/moderation/types"
	"openserver-hq/guardrails/pkg/remote"
)

// Metadata carries request attributes an engine may forward.
type Metadata struct {
	RequestID string
	Language  string
}

// Engine scores text. Evaluate must honour the deadline carried by ctx and
// always return a verdict; failures are reported inside the verdict.
type Engine interface {
	Name() string
	Kind() types.EngineKind
	Evaluate(ctx context.Context, text string, md Metadata) types.EngineVerdict
}

// Fallbacker is implemented by engines that can produce an in-process
// verdict without network access. The chain uses it to fill slots whose
// evaluation did not finish before the request deadline.
type Fallbacker interface {
	Fallback(text string, md Metadata, reason types.FailureReason, latency time.Duration) types.EngineVerdict
}

// Caller is a remote engine. Call returns scores or a typed failure; it does
// not apply breakers or fallbacks.
type Caller interface {
	Name() string
	Kind() types.EngineKind
	Call(ctx context.Context, text string, md Metadata) Outcome
}

// Outcome is the explicit result of one remote call.
type Outcome struct {
	Scores  map[types.Category]float64
	Flagged []types.Category
	Failure *Failure
}

// Failed builds an outcome carrying a failure.
func Failed(f *Failure) Outcome {
	return Outcome{Failure: f}
}

// Failure describes why a remote call produced no scores.
type Failure struct {
	// Engine is the configured engine name
	Engine string

	// Reason classifies the failure
	Reason types.FailureReason

	// StatusCode is the HTTP status for status failures
	StatusCode int

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.StatusCode > 0 {
		return fmt.Sprintf("engine %q failed (%s, status %d): %v", f.Engine, f.Reason, f.StatusCode, f.Cause)
	}
	return fmt.Sprintf("engine %q failed (%s): %v", f.Engine, f.Reason, f.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (f *Failure) Unwrap() error {
	return f.Cause
}

// classify maps a transport error onto a failure.
func classify(engine string, err error) *Failure {
	f := &Failure{Engine: engine, Reason: types.FailureTransport, Cause: err}

	var (
		se *remote.StatusError
		pe *remote.ParseError
	)
	switch {
	case errors.Is(err, context.Canceled):
		f.Reason = types.FailureCancelled
	case remote.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		f.Reason = types.FailureTimeout
	case errors.As(err, &se):
		f.Reason = types.FailureStatus
		f.StatusCode = se.StatusCode
	case errors.As(err, &pe):
		f.Reason = types.FailureMalformed
	}
	return f
}

// ConfigError reports an invalid engine descriptor.
type ConfigError struct {
	// Engine is the descriptor name (or index when unnamed)
	Engine string

	// Field is the invalid field
	Field string

	// Message describes the problem
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("engine %q configuration error for field %q: %s", e.Engine, e.Field, e.Message)
}
