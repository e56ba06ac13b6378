package guard

import (
	"fmt"
	"sync"
	"time"

	"github.com/fuelpoints/platform/internal/clock"
	"github.com/fuelpoints/platform/internal/domain"
)

// RateLimiter bounds submissions per key (usually a player id) over a
// sliding window. Keys idle for a whole window are dropped on the next sweep
// so the map tracks active players only.
type RateLimiter struct {
	mu        sync.Mutex
	hits      map[string][]time.Time
	limit     int
	window    time.Duration
	clock     clock.Clock
	lastSweep time.Time
}

// NewRateLimiter creates a rate limiter allowing limit hits per window.
func NewRateLimiter(limit int, window time.Duration, clk clock.Clock) *RateLimiter {
	return &RateLimiter{
		hits:      make(map[string][]time.Time),
		limit:     limit,
		window:    window,
		clock:     clk,
		lastSweep: clk.Now(),
	}
}

// Check records a hit for key unless the key is already at its limit.
func (rl *RateLimiter) Check(key string) domain.GuardResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	cutoff := now.Add(-rl.window)
	if now.Sub(rl.lastSweep) >= rl.window {
		rl.sweep(cutoff)
		rl.lastSweep = now
	}

	recent := live(rl.hits[key], cutoff)
	if len(recent) >= rl.limit {
		rl.hits[key] = recent
		retry := recent[0].Add(rl.window).Sub(now)
		return domain.GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("at most %d submissions per %s; retry in %s", rl.limit, rl.window, retry.Round(time.Second)),
			Guard:   "rate_limiter",
		}
	}

	rl.hits[key] = append(recent, now)
	return domain.GuardResult{Allowed: true}
}

// Tracked returns the number of keys currently held.
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.hits)
}

func (rl *RateLimiter) sweep(cutoff time.Time) {
	for key, hits := range rl.hits {
		if recent := live(hits, cutoff); len(recent) > 0 {
			rl.hits[key] = recent
		} else {
			delete(rl.hits, key)
		}
	}
}

// live filters hits in place, keeping those after cutoff.
func live(hits []time.Time, cutoff time.Time) []time.Time {
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
