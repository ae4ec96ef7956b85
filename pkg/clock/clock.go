// Package clock isolates wall-clock reads so lifecycle decisions can be
// tested against fixed or advancing time.
//
// Every component that compares timestamps against "now" takes a Clock and
// calls Now at the moment of the decision. Long-running jobs must not cache
// the value across documents.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Real is the system wall clock, always reported in UTC.
type Real struct{}

// Now returns time.Now in UTC.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Func adapts an ordinary function to the Clock interface.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time {
	return f()
}

// Fake is a manually controlled clock for tests. Optionally it advances by
// Step on every Now call, which lets tests observe per-document clock reads.
type Fake struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewFake creates a Fake clock frozen at t.
func NewFake(t time.Time) *Fake {
	return &Fake{now: t}
}

// NewTicking creates a Fake clock that starts at t and moves forward by step
// after each read.
func NewTicking(t time.Time, step time.Duration) *Fake {
	return &Fake{now: t, step: step}
}

// Now returns the current fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now
	f.now = f.now.Add(f.step)
	return now
}

// Set moves the clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
