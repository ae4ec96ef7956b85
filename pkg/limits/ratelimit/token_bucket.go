package ratelimit

import (
	"math"
	"sync"
	"time"

	"mercator-hq/reportkeeper/pkg/clock"
)

// TokenBucket implements the token bucket algorithm.
//
// The bucket allows bursts up to its capacity while holding the average
// rate at refillRate tokens per second. Fractional refills accumulate, so a
// slow rate still refills between closely spaced calls.
type TokenBucket struct {
	capacity   float64
	tokens     float64
	refillRate float64
	lastRefill time.Time
	clock      clock.Clock
	mu         sync.Mutex
}

// NewTokenBucket creates a full bucket. clk may be nil.
//
//	// 10 requests/sec average, burst up to 20
//	bucket := NewTokenBucket(20, 10, nil)
func NewTokenBucket(capacity int, refillRate float64, clk clock.Clock) *TokenBucket {
	if clk == nil {
		clk = clock.Real{}
	}
	return &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: clk.Now(),
		clock:      clk,
	}
}

// Take consumes one token. When the bucket is empty it returns false and
// the time until a token becomes available.
func (tb *TokenBucket) Take() (bool, time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	if tb.tokens >= 1 {
		tb.tokens--
		return true, 0
	}

	missing := 1 - tb.tokens
	wait := time.Duration(missing / tb.refillRate * float64(time.Second))
	return false, wait
}

// Remaining returns the number of whole tokens available.
func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	return int(math.Floor(tb.tokens))
}

// idleSince returns the last time the bucket was touched.
func (tb *TokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill
}

// refillLocked adds the tokens earned since the last refill. Caller must
// hold the lock.
func (tb *TokenBucket) refillLocked() {
	now := tb.clock.Now()
	elapsed := now.Sub(tb.lastRefill)
	if elapsed <= 0 {
		return
	}

	tb.tokens = math.Min(tb.capacity, tb.tokens+elapsed.Seconds()*tb.refillRate)
	tb.lastRefill = now
}
