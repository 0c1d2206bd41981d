package ratelimit

import (
	"math"
	"sync"
	"time"
)

// DefaultIdleTTL is how long an unused client bucket is kept.
const DefaultIdleTTL = 10 * time.Minute

// Config configures a Limiter.
type Config struct {
	// Rate is the sustained requests per second per client. Zero disables
	// limiting.
	Rate float64

	// Burst is the bucket capacity. Zero uses ceil(Rate).
	Burst int

	// IdleTTL drops buckets unused for this long.
	IdleTTL time.Duration
}

// Limiter keeps one bucket per client key.
type Limiter struct {
	config Config
	now    func() time.Time

	mu        sync.Mutex
	buckets   map[string]*Bucket
	lastSweep time.Time
}

// New creates a limiter. It returns nil when cfg.Rate is zero, and a nil
// Limiter allows everything.
func New(cfg Config) *Limiter {
	if cfg.Rate <= 0 {
		return nil
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(math.Ceil(cfg.Rate))
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	return &Limiter{
		config:    cfg,
		now:       time.Now,
		buckets:   make(map[string]*Bucket),
		lastSweep: time.Now(),
	}
}

// Allow takes a token for key. When denied it returns the wait until the
// next token.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	// Sweep first so the bucket used below is the one kept in the map.
	if now.Sub(l.lastSweep) >= l.config.IdleTTL {
		l.sweepLocked(now)
	}
	b, ok := l.buckets[key]
	if !ok {
		b = NewBucket(l.config.Burst, l.config.Rate, now)
		l.buckets[key] = b
	}
	l.mu.Unlock()

	return b.Take(now)
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) sweepLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.idleSince()) >= l.config.IdleTTL {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}
