package breaker

import (
	"sync"
	"time"
)

// State is the circuit state of a single remote engine.
type State int

const (
	// StateClosed lets calls through and counts consecutive failures.
	StateClosed State = iota

	// StateOpen rejects calls until the cooldown elapses.
	StateOpen

	// StateHalfOpen lets exactly one probe call through.
	StateHalfOpen
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Settings configure one breaker.
type Settings struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit. Values below 1 are treated as 1.
	FailureThreshold int

	// Cooldown is how long the circuit stays open before a probe is allowed.
	Cooldown time.Duration
}

// DefaultSettings returns the defaults: 3 failures, 30s cooldown.
func DefaultSettings() Settings {
	return Settings{FailureThreshold: 3, Cooldown: 30 * time.Second}
}

// Clock returns the current time. Tests inject a fake.
type Clock func() time.Time

// Transition describes a state change, delivered to the registry observer.
// Transitions are delivered outside the breaker lock, so two of them can
// reach an observer out of order; Seq is assigned under the lock and grows
// by one per transition of the same breaker.
type Transition struct {
	Engine              string
	Seq                 uint64
	From                State
	To                  State
	ConsecutiveFailures int
	At                  time.Time
}

// Status is a point-in-time view of a breaker.
type Status struct {
	Engine              string    `json:"engine"`
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	OpenedAt            time.Time `json:"opened_at,omitzero"`
}

// Breaker is the failure-isolation state machine for one remote engine.
// All state is guarded by mu so a transition is never observed half-applied.
type Breaker struct {
	name     string
	settings Settings
	now      Clock
	notify   func(Transition)

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	openedAt            time.Time
	probeInFlight       bool
	generation          uint64
	seq                 uint64
}

func newBreaker(name string, settings Settings, now Clock, notify func(Transition)) *Breaker {
	if settings.FailureThreshold < 1 {
		settings.FailureThreshold = 1
	}
	if settings.Cooldown < 0 {
		settings.Cooldown = 0
	}
	return &Breaker{
		name:     name,
		settings: settings,
		now:      now,
		notify:   notify,
		state:    StateClosed,
	}
}

// Name returns the engine name the breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// Allow asks permission for one call. When the returned bool is false the
// caller must not contact the remote engine. When it is true the caller must
// finish the ticket with exactly one of Success, Failure or Release.
func (b *Breaker) Allow() (*Ticket, bool) {
	b.mu.Lock()
	var tr *Transition

	switch b.state {
	case StateClosed:
		// allowed
	case StateOpen:
		if b.now().Before(b.openedAt.Add(b.settings.Cooldown)) {
			b.mu.Unlock()
			return nil, false
		}
		tr = b.setStateLocked(StateHalfOpen)
		b.probeInFlight = true
	case StateHalfOpen:
		if b.probeInFlight {
			b.mu.Unlock()
			return nil, false
		}
		b.probeInFlight = true
	}

	t := &Ticket{b: b, probe: b.state == StateHalfOpen, generation: b.generation}
	b.mu.Unlock()
	b.emit(tr)
	return t, true
}

// State returns the current state without side effects. An open breaker whose
// cooldown has elapsed is still reported as open until the next Allow.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Status returns a snapshot of the breaker.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := Status{
		Engine:              b.name,
		State:               b.state.String(),
		ConsecutiveFailures: b.consecutiveFailures,
	}
	if b.state != StateClosed {
		st.OpenedAt = b.openedAt
	}
	return st
}

// Reset forces the breaker closed and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	tr := b.setStateLocked(StateClosed)
	b.consecutiveFailures = 0
	b.probeInFlight = false
	b.generation++
	b.mu.Unlock()
	b.emit(tr)
}

func (b *Breaker) onSuccess(t *Ticket) {
	b.mu.Lock()
	// Tickets issued before a Reset, or before the circuit opened, no
	// longer speak for the current state.
	if t.generation != b.generation || (!t.probe && b.state != StateClosed) {
		b.mu.Unlock()
		return
	}
	if t.probe {
		b.probeInFlight = false
	}
	b.consecutiveFailures = 0
	tr := b.setStateLocked(StateClosed)
	b.mu.Unlock()
	b.emit(tr)
}

func (b *Breaker) onFailure(t *Ticket) {
	b.mu.Lock()
	if t.generation != b.generation || (!t.probe && b.state != StateClosed) {
		b.mu.Unlock()
		return
	}
	var tr *Transition
	b.consecutiveFailures++
	switch {
	case t.probe:
		b.probeInFlight = false
		b.openedAt = b.now()
		tr = b.setStateLocked(StateOpen)
	case b.consecutiveFailures >= b.settings.FailureThreshold:
		b.openedAt = b.now()
		tr = b.setStateLocked(StateOpen)
	}
	b.mu.Unlock()
	b.emit(tr)
}

func (b *Breaker) onRelease(t *Ticket) {
	if !t.probe {
		return
	}
	b.mu.Lock()
	if t.generation == b.generation {
		b.probeInFlight = false
	}
	b.mu.Unlock()
}

// setStateLocked changes state and returns the transition to emit, or nil.
func (b *Breaker) setStateLocked(to State) *Transition {
	if b.state == to {
		return nil
	}
	b.seq++
	tr := &Transition{
		Engine:              b.name,
		Seq:                 b.seq,
		From:                b.state,
		To:                  to,
		ConsecutiveFailures: b.consecutiveFailures,
		At:                  b.now(),
	}
	b.state = to
	return tr
}

func (b *Breaker) emit(tr *Transition) {
	if tr != nil && b.notify != nil {
		b.notify(*tr)
	}
}

// Ticket is the permission for one guarded call.
type Ticket struct {
	b          *Breaker
	probe      bool
	generation uint64
	once       sync.Once
}

// Success records a successful call.
func (t *Ticket) Success() {
	t.once.Do(func() { t.b.onSuccess(t) })
}

// Failure records a failed call.
func (t *Ticket) Failure() {
	t.once.Do(func() { t.b.onFailure(t) })
}

// Release abandons the call without recording an outcome, for calls
// cancelled by the caller. A half-open probe slot is freed.
func (t *Ticket) Release() {
	t.once.Do(func() { t.b.onRelease(t) })
}

// Probe reports whether this ticket is the half-open probe.
func (t *Ticket) Probe() bool {
	return t.probe
}
