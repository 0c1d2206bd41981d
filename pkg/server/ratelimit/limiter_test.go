package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(cfg Config) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	l := New(cfg)
	l.now = clock.now
	l.lastSweep = clock.t
	return l, clock
}

func TestNew_Disabled(t *testing.T) {
	l := New(Config{})
	if l != nil {
		t.Fatal("New() with zero rate should return nil")
	}
	for i := 0; i < 100; i++ {
		if ok, _ := l.Allow("client"); !ok {
			t.Fatal("nil limiter should allow every request")
		}
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
}

func TestLimiter_Burst(t *testing.T) {
	l, _ := newTestLimiter(Config{Rate: 2, Burst: 3})

	for i := 0; i < 3; i++ {
		if ok, _ := l.Allow("a"); !ok {
			t.Fatalf("request %d within burst was denied", i+1)
		}
	}
	ok, wait := l.Allow("a")
	if ok {
		t.Fatal("request past burst should be denied")
	}
	if wait != 500*time.Millisecond {
		t.Errorf("wait = %v, want 500ms at 2 req/s", wait)
	}

	if ok, _ := l.Allow("b"); !ok {
		t.Error("another client should have its own bucket")
	}
}

func TestLimiter_Refill(t *testing.T) {
	l, clock := newTestLimiter(Config{Rate: 1})

	if ok, _ := l.Allow("a"); !ok {
		t.Fatal("first request denied")
	}
	if ok, _ := l.Allow("a"); ok {
		t.Fatal("burst defaults to ceil(rate) = 1")
	}

	clock.advance(time.Second)
	if ok, _ := l.Allow("a"); !ok {
		t.Error("request after refill denied")
	}

	clock.advance(time.Hour)
	l.Allow("a")
	if ok, _ := l.Allow("a"); ok {
		t.Error("tokens should not accumulate past capacity")
	}
}

func TestLimiter_SweepsIdleClients(t *testing.T) {
	l, clock := newTestLimiter(Config{Rate: 10, IdleTTL: time.Minute})

	l.Allow("a")
	l.Allow("b")
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}

	clock.advance(2 * time.Minute)
	l.Allow("c")
	if l.Len() != 1 {
		t.Errorf("Len() = %d after sweep, want 1", l.Len())
	}
}

func TestLimiter_IdleClientGetsOneBurst(t *testing.T) {
	l, clock := newTestLimiter(Config{Rate: 1, Burst: 2, IdleTTL: time.Minute})

	l.Allow("a")
	clock.advance(2 * time.Minute)

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow("a"); !ok {
			t.Fatalf("request %d within burst was denied", i+1)
		}
	}
	if ok, _ := l.Allow("a"); ok {
		t.Error("a client idle past the TTL must not get a second burst")
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
}
