package ratelimit

import (
	"sync"
	"time"
)

// bucket is a token bucket for one strategy.
type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// Limiter rate-limits dispatches with one token bucket per strategy.
// Buckets start full so a fresh strategy can burst up to capacity.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// New creates an empty limiter. Buckets are created lazily on first use.
func New() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket)}
}

// Allow consumes one token for the strategy, reporting whether the
// dispatch may proceed. Capacity and refill rate bind on first sight of
// a strategy id.
func (l *Limiter) Allow(strategyID string, capacity, refillPerSec float64) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[strategyID]
	if !ok {
		b = &bucket{
			tokens:     capacity,
			capacity:   capacity,
			refillRate: refillPerSec,
			lastRefill: now,
		}
		l.buckets[strategyID] = b
	}

	b.refill(now)
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
