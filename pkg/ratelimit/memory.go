// Package ratelimit provides a per-key token bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryRateLimiter implements a simple in-memory rate limiter
type MemoryRateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     time.Duration
	capacity int
	clock    func() time.Time
}

// bucket represents a token bucket for rate limiting
type bucket struct {
	tokens   int
	lastFill time.Time
}

// NewMemoryRateLimiter creates a new in-memory rate limiter
// rate: time it takes to earn back one token
// capacity: maximum burst capacity
func NewMemoryRateLimiter(rate time.Duration, capacity int, clock func() time.Time) *MemoryRateLimiter {
	if capacity < 1 {
		capacity = 1
	}
	if clock == nil {
		clock = time.Now
	}
	return &MemoryRateLimiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		capacity: capacity,
		clock:    clock,
	}
}

// Allow checks if an action is allowed for a given key
func (rl *MemoryRateLimiter) Allow(key string) bool {
	return rl.AllowN(key, 1)
}

// AllowN takes n tokens from key's bucket if it holds that many.
func (rl *MemoryRateLimiter) AllowN(key string, n int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{tokens: rl.capacity, lastFill: now}
		rl.buckets[key] = b
	}

	rl.refill(b, now)
	if b.tokens == rl.capacity {
		b.lastFill = now
	}

	if b.tokens >= n {
		b.tokens -= n
		return true
	}
	return false
}

// refill must be called with rl.mu held. A full bucket keeps lastFill at
// the moment it became full.
func (rl *MemoryRateLimiter) refill(b *bucket, now time.Time) {
	if rl.rate <= 0 {
		b.tokens = rl.capacity
		return
	}

	earned := int(now.Sub(b.lastFill) / rl.rate)
	if earned <= 0 {
		return
	}
	if missing := rl.capacity - b.tokens; earned >= missing {
		b.lastFill = b.lastFill.Add(time.Duration(missing) * rl.rate)
		b.tokens = rl.capacity
		return
	}
	b.tokens += earned
	b.lastFill = b.lastFill.Add(time.Duration(earned) * rl.rate)
}

// Reset resets the rate limit for a given key
func (rl *MemoryRateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, key)
}

// Sweep removes buckets that have been full for at least idle and returns
// how many were removed.
func (rl *MemoryRateLimiter) Sweep(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock()
	removed := 0
	for key, b := range rl.buckets {
		rl.refill(b, now)
		if b.tokens == rl.capacity && now.Sub(b.lastFill) >= idle {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (rl *MemoryRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Run sweeps stale buckets every interval until ctx is done.
func (rl *MemoryRateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep(2 * interval)
		}
	}
}
