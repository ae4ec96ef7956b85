package reclamation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/reportkeeper/pkg/report"
)

// Scheduler runs the reclaimer on a cron schedule.
//
// Overlapping ticks are dropped with cron.SkipIfStillRunning: an in-flight
// run always completes and the next run starts at the following tick.
type Scheduler struct {
	reclaimer *Reclaimer
	schedule  string
	cron      *cron.Cron
	mu        sync.Mutex
	logger    *slog.Logger
	running   bool
}

// NewScheduler creates a scheduler for reclaimer. An empty schedule falls
// back to the reclaimer's configured schedule.
func NewScheduler(reclaimer *Reclaimer, schedule string) *Scheduler {
	if schedule == "" {
		schedule = reclaimer.Config().Schedule
	}

	logger := slog.Default().With("component", "report.reclamation.scheduler")
	cronLogger := cronLogger{logger: logger}

	return &Scheduler{
		reclaimer: reclaimer,
		schedule:  schedule,
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger: logger,
	}
}

// Start begins scheduled runs. If the schedule is empty, the scheduler does
// nothing. The scheduler stops when ctx is cancelled.
//
// Common cron expressions:
//   - "0 3 * * *"    - Daily at 3 AM
//   - "0 */6 * * *"  - Every 6 hours
//   - "@every 1h"    - Hourly, from start time
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("reclamation scheduler already running")
	}

	if s.schedule == "" {
		s.logger.Info("reclamation schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.runOnce(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule reclamation: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("reclamation scheduler started",
		"schedule", s.schedule,
		"batch_size", s.reclaimer.Config().BatchSize,
		"max_per_run", s.reclaimer.Config().MaxPerRun,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runOnce executes one scheduled run. Errors are logged; the next tick tries
// again.
func (s *Scheduler) runOnce(ctx context.Context) {
	// A run that has started is allowed to finish even if shutdown begins.
	summary, err := s.reclaimer.Run(context.WithoutCancel(ctx), TriggerScheduled)
	if errors.Is(err, report.ErrRunInProgress) {
		return
	}
	if err != nil {
		// A lock backend failure aborts before the run starts and leaves no
		// summary.
		if summary == nil {
			s.logger.Error("scheduled reclamation failed", "error", err)
			return
		}
		s.logger.Error("scheduled reclamation failed",
			"run_id", summary.RunID,
			"error", err,
		)
		return
	}

	if summary.SoftDeleted+summary.HardDeleted == 0 {
		s.logger.Debug("scheduled reclamation completed, nothing reclaimed",
			"run_id", summary.RunID,
		)
	}
}

// Stop stops the scheduler and waits for any running job to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("reclamation scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled run time, or nil when not scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	if next.IsZero() {
		return nil
	}
	return &next
}

// LastSummary returns the summary of the most recent run of any trigger.
func (s *Scheduler) LastSummary() *Summary {
	return s.reclaimer.LastSummary()
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
