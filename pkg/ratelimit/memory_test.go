package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestMemoryRateLimiter_BurstThenRefill(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewMemoryRateLimiter(10*time.Second, 2, clock.Now)

	if !rl.Allow("p-1") || !rl.Allow("p-1") {
		t.Fatal("burst rejected")
	}
	if rl.Allow("p-1") {
		t.Fatal("third request allowed")
	}
	if !rl.Allow("p-2") {
		t.Fatal("keys are not independent")
	}

	clock.Advance(6 * time.Second)
	if rl.Allow("p-1") {
		t.Fatal("allowed before a full interval")
	}
	clock.Advance(4 * time.Second)
	if !rl.Allow("p-1") {
		t.Fatal("token not earned after a full interval")
	}
	if rl.Allow("p-1") {
		t.Fatal("earned more than one token")
	}
}

func TestMemoryRateLimiter_CarriesPartialInterval(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewMemoryRateLimiter(10*time.Second, 3, clock.Now)
	rl.AllowN("p-1", 3)

	clock.Advance(15 * time.Second)
	if !rl.Allow("p-1") {
		t.Fatal("expected one token after 15s")
	}
	clock.Advance(5 * time.Second)
	if !rl.Allow("p-1") {
		t.Fatal("partial interval was lost")
	}
}

func TestMemoryRateLimiter_SweepAndReset(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewMemoryRateLimiter(time.Second, 1, clock.Now)
	rl.Allow("idle")
	rl.Allow("busy")

	clock.Advance(time.Minute)
	rl.Allow("busy")

	if n := rl.Sweep(30 * time.Second); n != 1 || rl.Len() != 1 {
		t.Fatalf("swept %d, %d left", n, rl.Len())
	}

	rl.Reset("busy")
	if !rl.Allow("busy") {
		t.Fatal("reset did not restore the bucket")
	}
}
