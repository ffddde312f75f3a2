// Package ratelimit provides fixed-window limiters and a once-per-interval
// gate, each with a Redis implementation for multi-instance deployments and
// an in-memory one for a single process.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"jobmate/workforce-service/internal/clock"
)

// Limiter admits at most limit calls per key in each window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) bool
}

// Gate admits the first caller per key and rejects the rest until ttl passes.
type Gate interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) bool
}

// ─── in-memory ───────────────────────────────────────────────────────────────

type bucket struct {
	count     int
	windowEnd time.Time
}

// MemoryLimiter is a fixed-window limiter local to the process.
type MemoryLimiter struct {
	mu      sync.Mutex
	clk     clock.Clock
	buckets map[string]*bucket
}

// NewMemoryLimiter returns a limiter timed by clk (the system clock if nil).
func NewMemoryLimiter(clk clock.Clock) *MemoryLimiter {
	if clk == nil {
		clk = clock.NewSystem(nil)
	}
	return &MemoryLimiter{clk: clk, buckets: make(map[string]*bucket)}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) bool {
	if key == "" || limit <= 0 || window <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clk.Now()
	b, ok := l.buckets[key]
	if !ok || !now.Before(b.windowEnd) {
		for k, old := range l.buckets {
			if !now.Before(old.windowEnd) {
				delete(l.buckets, k)
			}
		}
		l.buckets[key] = &bucket{count: 1, windowEnd: now.Add(window)}
		return true
	}
	if b.count >= limit {
		return false
	}
	b.count++
	return true
}

// MemoryGate is a Gate local to the process.
type MemoryGate struct {
	mu     sync.Mutex
	clk    clock.Clock
	expiry map[string]time.Time
}

func NewMemoryGate(clk clock.Clock) *MemoryGate {
	if clk == nil {
		clk = clock.NewSystem(nil)
	}
	return &MemoryGate{clk: clk, expiry: make(map[string]time.Time)}
}

func (g *MemoryGate) Acquire(_ context.Context, key string, ttl time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clk.Now()
	if until, ok := g.expiry[key]; ok && now.Before(until) {
		return false
	}
	for k, until := range g.expiry {
		if !now.Before(until) {
			delete(g.expiry, k)
		}
	}
	g.expiry[key] = now.Add(ttl)
	return true
}
