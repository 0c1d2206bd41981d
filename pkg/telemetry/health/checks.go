package health

import (
	"context"
	"fmt"
	"strings"

	"openserver-hq/guardrails/pkg/moderation/breaker"
)

// Pinger is implemented by backends that can report reachability, such as
// the redis translation cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerCheck reports open engine breakers as degraded. The heuristic
// fallback keeps answering, so open breakers never fail readiness.
func BreakerCheck(snapshot func() []breaker.Status) CheckFunc {
	return func(context.Context) error {
		var open []string
		for _, st := range snapshot() {
			if st.State != breaker.StateClosed.String() {
				open = append(open, st.Engine+"="+st.State)
			}
		}
		if len(open) == 0 {
			return nil
		}
		return Degraded(fmt.Errorf("engines on fallback: %s", strings.Join(open, ", ")))
	}
}

// PingCheck reports an unreachable backend. When optional is true the
// failure degrades instead of failing readiness.
func PingCheck(p Pinger, optional bool) CheckFunc {
	return func(ctx context.Context) error {
		err := p.Ping(ctx)
		if err == nil {
			return nil
		}
		if optional {
			return Degraded(err)
		}
		return err
	}
}

// PolicyCheck fails until a policy has been loaded.
func PolicyCheck(loaded func() bool) CheckFunc {
	return func(context.Context) error {
		if !loaded() {
			return fmt.Errorf("no policy loaded")
		}
		return nil
	}
}
