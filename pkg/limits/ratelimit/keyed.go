package ratelimit

import (
	"sync"
	"time"

	"mercator-hq/reportkeeper/pkg/clock"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// KeyedLimiter keeps one token bucket per key (an API key's user, for
// example). Buckets idle for longer than the eviction age are dropped on
// the next sweep.
type KeyedLimiter struct {
	rate  float64
	burst int
	clock clock.Clock

	mu        sync.Mutex
	buckets   map[string]*TokenBucket
	lastSweep time.Time
	idleAfter time.Duration
}

// NewKeyedLimiter creates a limiter allowing rate requests per second per
// key with bursts of burst. clk may be nil.
func NewKeyedLimiter(rate float64, burst int, clk clock.Clock) *KeyedLimiter {
	if clk == nil {
		clk = clock.Real{}
	}
	// A bucket idle this long has refilled completely; dropping it loses
	// nothing.
	idle := time.Duration(float64(burst)/rate*float64(time.Second)) + time.Minute

	return &KeyedLimiter{
		rate:      rate,
		burst:     burst,
		clock:     clk,
		buckets:   make(map[string]*TokenBucket),
		lastSweep: clk.Now(),
		idleAfter: idle,
	}
}

// Allow takes a token from key's bucket.
func (l *KeyedLimiter) Allow(key string) Result {
	bucket := l.bucket(key)
	ok, wait := bucket.Take()
	return Result{
		Allowed:    ok,
		Limit:      l.burst,
		Remaining:  bucket.Remaining(),
		RetryAfter: wait,
	}
}

// Len returns the number of tracked keys.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *KeyedLimiter) bucket(key string) *TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.Sub(l.lastSweep) >= l.idleAfter {
		for k, b := range l.buckets {
			if now.Sub(b.idleSince()) >= l.idleAfter {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = NewTokenBucket(l.burst, l.rate, l.clock)
		l.buckets[key] = b
	}
	return b
}
