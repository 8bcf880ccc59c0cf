// Package server implements the per-connection flood guard that sits ahead
// of the hub's event loop.
package server

import (
	"math"
	"sync"
	"time"
)

// rateLimiter is a token bucket sized by RateLimitConfig: a connection may
// burst up to Burst frames at once, and tokens flow back continuously at a
// rate of Burst per RefillInterval. One frame costs one token.
type rateLimiter struct {
	mu           sync.Mutex
	tokens       float64
	burst        float64
	tokensPerSec float64
	lastRefill   time.Time
}

// newRateLimiter builds a full bucket. Nonsensical parameters are clamped to
// the smallest working guard rather than rejected; config validation is the
// place for loud failures.
func newRateLimiter(burst int, refill time.Duration) *rateLimiter {
	if burst < 1 {
		burst = 1
	}
	if refill <= 0 {
		refill = time.Second
	}

	return &rateLimiter{
		tokens:       float64(burst),
		burst:        float64(burst),
		tokensPerSec: float64(burst) / refill.Seconds(),
		lastRefill:   time.Now(),
	}
}

// allow consumes one token if available. Refill is accounted lazily on each
// call and capped at the burst size, so an idle connection never banks more
// than one full burst.
func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(rl.lastRefill); elapsed > 0 {
		rl.tokens = math.Min(rl.burst, rl.tokens+elapsed.Seconds()*rl.tokensPerSec)
	}
	rl.lastRefill = now

	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}
