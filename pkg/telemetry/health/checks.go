package health

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Pinger is implemented by report stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreCheck reports whether the report store answers a ping.
func StoreCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("store unreachable: %w", err)
		}
		return nil
	}
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// DependencyCheck reports whether the named dependency answers a ping.
func DependencyCheck(name string, p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s unreachable: %w", name, err)
		}
		return nil
	}
}

// SchedulerState is the part of the reclamation scheduler the checks need.
type SchedulerState interface {
	IsRunning() bool
	NextRun() *time.Time
}

// SchedulerCheck reports whether the reclamation scheduler is running and
// has a next run planned.
func SchedulerCheck(s SchedulerState) CheckFunc {
	return func(ctx context.Context) error {
		if !s.IsRunning() {
			return errors.New("reclamation scheduler not running")
		}
		if s.NextRun() == nil {
			return errors.New("reclamation scheduler has no next run")
		}
		return nil
	}
}

// LastRunCheck reports the outcome of the most recent reclamation run.
// lastRun returns when the run started and whether it was aborted; a zero
// time means no run has happened yet, which is healthy.
func LastRunCheck(lastRun func() (started time.Time, aborted bool)) CheckFunc {
	return func(ctx context.Context) error {
		started, aborted := lastRun()
		if !started.IsZero() && aborted {
			return fmt.Errorf("last reclamation run started at %s was aborted", started.Format(time.RFC3339))
		}
		return nil
	}
}
