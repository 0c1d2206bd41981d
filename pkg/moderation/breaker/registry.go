// Package breaker implements per-engine circuit breakers for remote
// moderation engines.
//
// A breaker opens after a configured number of consecutive failures, rejects
// calls without touching the network while open, and after its cooldown lets a
// single probe call decide whether to close again. Breakers live in a Registry
// keyed by engine name that is shared by every request.
package breaker

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Observer receives breaker state transitions.
type Observer interface {
	BreakerTransition(t Transition)
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the time source used by all breakers.
func WithClock(c Clock) Option {
	return func(r *Registry) {
		if c != nil {
			r.now = c
		}
	}
}

// WithObserver sets the transition observer.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		r.observer = o
	}
}

// WithLogger sets the logger used for transition logs.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// Registry holds one breaker per engine name.
type Registry struct {
	now      Clock
	observer Observer
	logger   *slog.Logger

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		now:      time.Now,
		logger:   slog.Default(),
		breakers: make(map[string]*Breaker),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the breaker for name, creating it with settings on first use.
// Settings of an existing breaker are not changed.
func (r *Registry) Get(name string, settings Settings) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b = newBreaker(name, settings, r.now, r.transition)
	r.breakers[name] = b
	return b
}

// Lookup returns the breaker for name if it exists.
func (r *Registry) Lookup(name string) (*Breaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.breakers[name]
	return b, ok
}

// Reset closes the named breaker. It reports whether the breaker exists.
func (r *Registry) Reset(name string) bool {
	b, ok := r.Lookup(name)
	if ok {
		b.Reset()
	}
	return ok
}

// Snapshot returns the status of every breaker, sorted by engine name.
func (r *Registry) Snapshot() []Status {
	r.mu.RLock()
	list := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		list = append(list, b)
	}
	r.mu.RUnlock()

	out := make([]Status, 0, len(list))
	for _, b := range list {
		out = append(out, b.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Engine < out[j].Engine })
	return out
}

// OpenCount returns how many breakers are currently not closed.
func (r *Registry) OpenCount() int {
	n := 0
	for _, st := range r.Snapshot() {
		if st.State != StateClosed.String() {
			n++
		}
	}
	return n
}

func (r *Registry) transition(t Transition) {
	level := slog.LevelInfo
	if t.To == StateOpen {
		level = slog.LevelWarn
	}
	r.logger.Log(context.Background(), level, "circuit breaker state changed",
		"engine", t.Engine,
		"seq", t.Seq,
		"from", t.From.String(),
		"to", t.To.String(),
		"consecutive_failures", t.ConsecutiveFailures,
	)
	if r.observer != nil {
		r.observer.BreakerTransition(t)
	}
}
