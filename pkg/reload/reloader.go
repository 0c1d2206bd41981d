package reload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"openserver-hq/guardrails/pkg/config"
	"openserver-hq/guardrails/pkg/moderation"
)

// Target receives rebuilt policies. *moderation.Orchestrator implements it.
type Target interface {
	Reload(p *moderation.Policy) error
}

// Observer is notified after every reload attempt.
type Observer interface {
	PolicyReloaded(trigger string, err error)
}

// LoadFunc loads and validates a configuration file.
type LoadFunc func(path string) (*config.Config, error)

// Triggers passed to Reload.
const (
	TriggerWatch    = "watch"
	TriggerSchedule = "schedule"
	TriggerSignal   = "signal"
	TriggerManual   = "manual"
)

// Reloader rebuilds the policy from a configuration file.
type Reloader struct {
	path     string
	target   Target
	load     LoadFunc
	logger   *slog.Logger
	observer Observer

	// mu serializes reloads so a slow load cannot overwrite a newer one.
	mu         sync.Mutex
	lastReload time.Time
	lastErr    error
}

// Option configures a Reloader.
type Option func(*Reloader)

// WithLoader replaces config.LoadForReload as the loader.
func WithLoader(load LoadFunc) Option {
	return func(r *Reloader) { r.load = load }
}

// WithObserver reports reload outcomes.
func WithObserver(o Observer) Option {
	return func(r *Reloader) { r.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reloader) { r.logger = l }
}

// NewReloader creates a reloader for the configuration at path.
func NewReloader(path string, target Target, opts ...Option) *Reloader {
	r := &Reloader{
		path:   path,
		target: target,
		load:   config.LoadForReload,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "reload", "path", path)
	return r
}

// Reload loads the configuration and swaps in the new policy. On error the
// active policy is unchanged.
func (r *Reloader) Reload(ctx context.Context, trigger string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.reload(ctx)
	r.lastReload = time.Now()
	r.lastErr = err

	if r.observer != nil {
		r.observer.PolicyReloaded(trigger, err)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "policy reload failed, keeping active policy",
			"trigger", trigger,
			"error", err,
		)
		return err
	}
	r.logger.InfoContext(ctx, "policy reload completed", "trigger", trigger)
	return nil
}

func (r *Reloader) reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg, err := r.load(r.path)
	if err != nil {
		return err
	}
	policy, err := moderation.NewPolicy(cfg.Profiles, cfg.Thresholds())
	if err != nil {
		return fmt.Errorf("build policy: %w", err)
	}
	return r.target.Reload(policy)
}

// Last returns the time and outcome of the most recent reload.
func (r *Reloader) Last() (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastReload, r.lastErr
}
