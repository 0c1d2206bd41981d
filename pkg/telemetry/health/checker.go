package health

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Check statuses.
const (
	StatusOK        = "ok"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Overall statuses.
const (
	StatusAlive       = "ok"
	StatusReady       = "ready"
	StatusUnavailable = "unavailable"
)

// DefaultCheckTimeout bounds a single check when New is given zero.
const DefaultCheckTimeout = 2 * time.Second

// CheckFunc reports the health of one component. A nil error is healthy; an
// error wrapped with Degraded still serves traffic; anything else fails
// readiness.
type CheckFunc func(ctx context.Context) error

type degradedError struct{ err error }

func (e degradedError) Error() string { return e.err.Error() }
func (e degradedError) Unwrap() error { return e.err }

// Degraded marks err as non-fatal for readiness.
func Degraded(err error) error {
	if err == nil {
		return nil
	}
	return degradedError{err: err}
}

// IsDegraded reports whether err was marked with Degraded.
func IsDegraded(err error) bool {
	var d degradedError
	return errors.As(err, &d)
}

// CheckResult is the outcome of a single check.
type CheckResult struct {
	Status   string  `json:"status"`
	Message  string  `json:"message,omitempty"`
	Duration float64 `json:"duration_ms"`
}

// Report is the body of the liveness and readiness endpoints.
type Report struct {
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Ready reports whether the service should receive traffic.
func (r Report) Ready() bool {
	return r.Status != StatusUnavailable
}

// Checker runs named component checks.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
	now     func() time.Time
}

// New creates a checker whose checks are each bounded by timeout.
func New(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &Checker{
		checks:  make(map[string]CheckFunc),
		timeout: timeout,
		now:     time.Now,
	}
}

// RegisterCheck adds or replaces the check for name.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// UnregisterCheck removes the check for name.
func (c *Checker) UnregisterCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// Names returns the registered check names in order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Liveness reports that the process is running. It never runs checks.
func (c *Checker) Liveness(context.Context) Report {
	return Report{Status: StatusAlive, Timestamp: c.now()}
}

// Readiness runs every check concurrently. The report is unavailable if any
// check is unhealthy and degraded if any check is degraded.
func (c *Checker) Readiness(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := c.run(ctx, check)
			mu.Lock()
			results[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := StatusReady
	for _, res := range results {
		switch res.Status {
		case StatusUnhealthy:
			status = StatusUnavailable
		case StatusDegraded:
			if status == StatusReady {
				status = StatusDegraded
			}
		}
	}

	return Report{Status: status, Checks: results, Timestamp: c.now()}
}

func (c *Checker) run(ctx context.Context, check CheckFunc) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- check(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = errors.New("health check timeout")
	}

	res := CheckResult{Status: StatusOK, Duration: float64(time.Since(start).Microseconds()) / 1000}
	switch {
	case err == nil:
	case IsDegraded(err):
		res.Status = StatusDegraded
		res.Message = err.Error()
	default:
		res.Status = StatusUnhealthy
		res.Message = err.Error()
	}
	return res
}
