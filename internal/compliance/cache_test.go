package compliance

import (
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestTTLCache_ExpiresByClock(t *testing.T) {
	clock := clockz.NewFakeClock()
	cache := NewTTLCache(3*time.Minute, clock)

	report := &Report{}
	cache.Set("k", report)

	if got, ok := cache.Get("k"); !ok || got != report {
		t.Fatal("expected a warm hit before the TTL")
	}

	clock.Advance(2 * time.Minute)
	if _, ok := cache.Get("k"); !ok {
		t.Error("entry expired early")
	}

	clock.Advance(2 * time.Minute)
	if _, ok := cache.Get("k"); ok {
		t.Error("entry survived past the TTL")
	}
}

func TestTTLCache_ExplicitInvalidation(t *testing.T) {
	cache := NewTTLCache(time.Hour, clockz.NewFakeClock())
	cache.Set("a", &Report{})
	cache.Set("b", &Report{})

	cache.Invalidate("a")
	if _, ok := cache.Get("a"); ok {
		t.Error("named invalidation left the entry behind")
	}
	if _, ok := cache.Get("b"); !ok {
		t.Error("named invalidation must not touch other entries")
	}

	cache.InvalidateAll()
	if _, ok := cache.Get("b"); ok {
		t.Error("global invalidation left an entry behind")
	}
}

func TestCacheKey_DistinctPerFilterTuple(t *testing.T) {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	a := CacheKey("compliance", start, end, "QLD")
	b := CacheKey("compliance", start, end, "NSW")
	c := CacheKey("compliance", start, end)
	if a == b || a == c || b == c {
		t.Error("filter tuples must produce distinct cache keys")
	}
}

func TestNoopCache(t *testing.T) {
	var cache Cache = NoopCache{}
	cache.Set("k", &Report{})
	if _, ok := cache.Get("k"); ok {
		t.Error("noop cache must never hit")
	}
}
