// Package chain runs the configured moderation engines against one text and
// collects their verdicts in configuration order.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"openserver-hq/guardrails/pkg/moderation/engine"
	"openserver-hq/guardrails/pkg/moderation/types"
	"openserver-hq/guardrails/pkg/telemetry/logging"
)

// Chain is an immutable ordered list of engines. It is safe for concurrent use.
type Chain struct {
	engines     []engine.Engine
	concurrency int
	logger      *slog.Logger
}

// New creates a chain. concurrency bounds how many engines run at once;
// values below 1 mean all of them, 1 means strictly sequential.
func New(engines []engine.Engine, concurrency int, logger *slog.Logger) *Chain {
	if concurrency < 1 || concurrency > len(engines) {
		concurrency = len(engines)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		engines:     append([]engine.Engine(nil), engines...),
		concurrency: max(concurrency, 1),
		logger:      logger,
	}
}

// Len returns the number of engines.
func (c *Chain) Len() int {
	return len(c.engines)
}

// Names returns the engine names in configuration order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.engines))
	for i, e := range c.engines {
		names[i] = e.Name()
	}
	return names
}

// Run evaluates text with every engine and returns one verdict per engine in
// configuration order. If ctx ends first, slots still running are filled
// with errored verdicts (the engine's in-process fallback when it has one)
// and Run returns without waiting for them.
func (c *Chain) Run(ctx context.Context, text string, md engine.Metadata) []types.EngineVerdict {
	start := time.Now()
	n := len(c.engines)

	var (
		mu       sync.Mutex
		sealed   bool
		results  = make([]types.EngineVerdict, n)
		resolved = make([]bool, n)
	)

	finished := make(chan struct{})
	go func() {
		defer close(finished)

		var g errgroup.Group
		g.SetLimit(c.concurrency)
		for i, e := range c.engines {
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				v := c.evaluate(ctx, e, text, md)
				// An empty errored verdict produced because ctx ended is left
				// for the deadline fill, which applies the engine's fallback.
				if ctx.Err() != nil && v.Errored && len(v.Scores) == 0 {
					return nil
				}

				mu.Lock()
				defer mu.Unlock()
				if !sealed {
					results[i] = v
					resolved[i] = true
				}
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-finished:
	case <-ctx.Done():
	}

	mu.Lock()
	sealed = true
	out := make([]types.EngineVerdict, n)
	copy(out, results)
	done := append([]bool(nil), resolved...)
	mu.Unlock()

	reason := types.FailureDeadline
	if errors.Is(ctx.Err(), context.Canceled) {
		reason = types.FailureCancelled
	}
	for i, ok := range done {
		if ok {
			continue
		}
		e := c.engines[i]
		elapsed := time.Since(start)
		if fb, isFallbacker := e.(engine.Fallbacker); isFallbacker {
			out[i] = fb.Fallback(text, md, reason, elapsed)
			out[i].Engine, out[i].Kind = e.Name(), e.Kind()
		} else {
			out[i] = types.ErroredVerdict(e.Name(), e.Kind(), reason, elapsed)
		}
		logging.FromContext(ctx, c.logger).Warn("engine did not finish before request deadline",
			"engine", e.Name(),
			"reason", string(reason),
			"elapsed", elapsed,
		)
	}

	return out
}

// evaluate runs one engine and converts a panic into an errored verdict so a
// faulty engine cannot take the chain down.
func (c *Chain) evaluate(ctx context.Context, e engine.Engine, text string, md engine.Metadata) (v types.EngineVerdict) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx, c.logger).Error("engine panicked",
				"engine", e.Name(),
				"panic", fmt.Sprint(r),
			)
			v = types.ErroredVerdict(e.Name(), e.Kind(), types.FailurePanic, time.Since(start))
		}
	}()
	return e.Evaluate(ctx, text, md)
}
