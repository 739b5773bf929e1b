package compliance

import (
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// Cache fronts the aggregator, keyed by the filter-parameter tuple. It is
// injected rather than process-global so tests can swap in NoopCache.
type Cache interface {
	Get(key string) (*Report, bool)
	Set(key string, report *Report)
	Invalidate(key string)
	InvalidateAll()
}

// DefaultTTL is how long an aggregate stays warm.
const DefaultTTL = 3 * time.Minute

// TTLCache is a key→(value, expiry) map with lazy expiry on read.
type TTLCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   clockz.Clock
	entries map[string]cacheEntry
}

type cacheEntry struct {
	report  *Report
	expires time.Time
}

// NewTTLCache builds a cache with the given TTL. A nil clock uses the real
// one; tests pass clockz.NewFakeClock.
func NewTTLCache(ttl time.Duration, clock clockz.Clock) *TTLCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = clockz.RealClock
	}
	return &TTLCache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached report for key if it has not expired.
func (c *TTLCache) Get(key string) (*Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock.Now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.report, true
}

// Set stores a report under key with a fresh expiry.
func (c *TTLCache) Set(key string, report *Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{report: report, expires: c.clock.Now().Add(c.ttl)}
}

// Invalidate drops one entry by name.
func (c *TTLCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidateAll drops every entry.
func (c *TTLCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// NoopCache satisfies Cache without retaining anything.
type NoopCache struct{}

func (NoopCache) Get(string) (*Report, bool) { return nil, false }
func (NoopCache) Set(string, *Report)        {}
func (NoopCache) Invalidate(string)          {}
func (NoopCache) InvalidateAll()             {}

// CacheKey builds the canonical cache key for a filter tuple.
func CacheKey(name string, start, end time.Time, filters ...string) string {
	key := fmt.Sprintf("%s:%d:%d", name, start.Unix(), end.Unix())
	for _, f := range filters {
		key += ":" + f
	}
	return key
}
