package language

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"openserver-hq/guardrails/pkg/telemetry/logging"
)

// Cache stores translations. Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached value and whether it was found.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key.
	Set(ctx context.Context, key, value string) error
}

// CacheObserver is told the outcome of every cache lookup.
type CacheObserver interface {
	CacheLookup(hit bool)
}

// CachingTranslator memoises another Translator. Cache errors are logged and
// treated as misses; they never fail a translation.
type CachingTranslator struct {
	next     Translator
	cache    Cache
	logger   *slog.Logger
	observer CacheObserver
}

// NewCachingTranslator wraps next with cache.
func NewCachingTranslator(next Translator, cache Cache, logger *slog.Logger) *CachingTranslator {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingTranslator{next: next, cache: cache, logger: logger}
}

// WithObserver sets the lookup observer and returns t.
func (t *CachingTranslator) WithObserver(o CacheObserver) *CachingTranslator {
	t.observer = o
	return t
}

// Translate implements Translator.
func (t *CachingTranslator) Translate(ctx context.Context, text, from, to string) (string, error) {
	key := cacheKey(text, from, to)

	cached, ok, err := t.cache.Get(ctx, key)
	switch {
	case err != nil:
		logging.FromContext(ctx, t.logger).Warn("translation cache read failed", "error", err)
	case ok:
		t.observe(true)
		return cached, nil
	}
	t.observe(false)

	translated, err := t.next.Translate(ctx, text, from, to)
	if err != nil {
		return "", err
	}
	if err := t.cache.Set(ctx, key, translated); err != nil {
		logging.FromContext(ctx, t.logger).Warn("translation cache write failed", "error", err)
	}
	return translated, nil
}

func (t *CachingTranslator) observe(hit bool) {
	if t.observer != nil {
		t.observer.CacheLookup(hit)
	}
}

// cacheKey hashes the text so raw request text never becomes a cache key.
func cacheKey(text, from, to string) string {
	sum := sha256.Sum256([]byte(text))
	return baseCode(from) + ":" + baseCode(to) + ":" + hex.EncodeToString(sum[:])
}

type memoryEntry struct {
	value      string
	expiresAt  time.Time
	lastAccess time.Time
}

// MemoryCache is an in-process cache with TTL expiry and least recently used
// eviction once maxEntries is reached.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewMemoryCache creates a cache. ttl 0 means entries never expire;
// maxEntries 0 means unbounded.
func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	return &MemoryCache{
		entries:    make(map[string]*memoryEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	now := c.now()
	if c.expired(e, now) {
		delete(c.entries, key)
		return "", false, nil
	}
	e.lastAccess = now
	return e.value, true, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evict(now)
	}

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = now.Add(c.ttl)
	}
	c.entries[key] = &memoryEntry{value: value, expiresAt: expiresAt, lastAccess: now}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) expired(e *memoryEntry, now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// evict drops expired entries, or the least recently used one when none
// have expired. Must be called with mu held.
func (c *MemoryCache) evict(now time.Time) {
	var oldestKey string
	var oldest time.Time
	dropped := false

	for key, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, key)
			dropped = true
			continue
		}
		if oldestKey == "" || e.lastAccess.Before(oldest) {
			oldestKey, oldest = key, e.lastAccess
		}
	}
	if !dropped && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
