// Package ratelimit provides token bucket rate limiting for the API.
//
// # Token Bucket Algorithm
//
// The token bucket allows bursts up to the bucket capacity while holding an
// average rate over time:
//
//	bucket := ratelimit.NewTokenBucket(20, 10, nil) // burst 20, 10 refill/sec
//	if ok, retryAfter := bucket.Take(); !ok {
//	    // Rate limit exceeded; retry after retryAfter
//	}
//
// # Per-Key Limits
//
// KeyedLimiter keeps one bucket per caller:
//
//	limiter := ratelimit.NewKeyedLimiter(10, 20, nil)
//	res := limiter.Allow(principal.UserID)
//
// # Thread Safety
//
// Both limiters are safe for concurrent use.
package ratelimit
