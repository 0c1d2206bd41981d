package ratelimit

import (
	"sync"
	"time"
)

// Bucket is a token bucket. It is safe for concurrent use.
type Bucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64
	lastRefill time.Time
}

// NewBucket creates a full bucket.
func NewBucket(capacity int, refillRate float64, now time.Time) *Bucket {
	return &Bucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: now,
	}
}

// Take consumes one token at now. When the bucket is empty it returns false
// and the wait until the next token.
func (b *Bucket) Take(now time.Time) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(now)
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if b.refillRate <= 0 {
		return false, time.Duration(1<<63 - 1)
	}
	wait := (1 - b.tokens) / b.refillRate
	return false, time.Duration(wait * float64(time.Second))
}

// idleSince reports when the bucket was last refilled.
func (b *Bucket) idleSince() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastRefill
}

func (b *Bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.capacity, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now
}
