// Package limits holds request throttling for the Report Keeper API.
//
// The ratelimit sub-package provides a token bucket and a keyed limiter
// that hands out one bucket per API key.
package limits
