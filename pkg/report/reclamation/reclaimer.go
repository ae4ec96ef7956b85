package reclamation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/reportkeeper/pkg/clock"
	"mercator-hq/reportkeeper/pkg/report"
	"mercator-hq/reportkeeper/pkg/report/expiration"
	"mercator-hq/reportkeeper/pkg/report/recovery"
	"mercator-hq/reportkeeper/pkg/telemetry/logging"
)

const tracerName = "mercator-hq/reportkeeper/pkg/report/reclamation"

// Config contains configuration for the reclamation job.
type Config struct {
	// Schedule is a cron expression for scheduled runs.
	// Example: "0 3 * * *" (daily at 3 AM)
	Schedule string

	// BatchSize is the number of reports read and written per batch.
	BatchSize int

	// MaxPerRun caps the number of candidate reports examined in one run.
	// The remainder waits for the next run.
	MaxPerRun int

	// ArchiveBeforeDelete enables archiving reports before hard deletion.
	ArchiveBeforeDelete bool

	// ArchivePath is the directory to store archived reports.
	ArchivePath string

	// Archive receives reports before hard deletion. When nil and
	// ArchiveBeforeDelete is set, a file archive under ArchivePath is used.
	Archive ArchiveSink

	// Locker, when set, is held for the whole run so instances sharing a
	// store never reclaim concurrently.
	Locker Locker
}

// DefaultConfig returns the default reclamation configuration.
func DefaultConfig() *Config {
	return &Config{
		Schedule:            "0 3 * * *",
		BatchSize:           100,
		MaxPerRun:           1000,
		ArchiveBeforeDelete: false,
		ArchivePath:         "data/archives/",
	}
}

// Trigger identifies what started a run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
	TriggerCLI       Trigger = "cli"
)

// Summary describes one reclamation run.
type Summary struct {
	RunID       string    `json:"runId"`
	Trigger     Trigger   `json:"trigger"`
	StartedAt   time.Time `json:"startedAt"`
	SoftDeleted int       `json:"softDeleted"`
	HardDeleted int       `json:"hardDeleted"`
	Skipped     int       `json:"skipped"`
	Errors      int       `json:"errors"`
	Batches     int       `json:"batches"`
	Examined    int       `json:"examined"`
	CapReached  bool      `json:"capReached"`
	ElapsedMs   int64     `json:"elapsedMs"`

	// FailedIDs lists reports whose write failed. They are retried by the
	// next run.
	FailedIDs []string `json:"failedIds,omitempty"`

	// Error is set when the run was aborted before finishing.
	Error string `json:"error,omitempty"`
}

// Reclaimer finds expired reports and applies expiration decisions in
// batches.
type Reclaimer struct {
	store    report.Store
	manager  *recovery.Manager
	policy   expiration.Policy
	clock    clock.Clock
	config   *Config
	metrics  *Metrics
	archiver ArchiveSink
	logger   *slog.Logger

	mu   sync.Mutex
	last *Summary
}

// NewReclaimer creates a new reclaimer. metrics may be nil.
func NewReclaimer(store report.Store, manager *recovery.Manager, clk clock.Clock, config *Config, metrics *Metrics) *Reclaimer {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.MaxPerRun <= 0 {
		config.MaxPerRun = DefaultConfig().MaxPerRun
	}
	if clk == nil {
		clk = clock.Real{}
	}

	r := &Reclaimer{
		store:   store,
		manager: manager,
		policy:  manager.Policy(),
		clock:   clk,
		config:  config,
		metrics: metrics,
		logger:  slog.Default().With("component", "report.reclamation"),
	}
	if config.ArchiveBeforeDelete {
		r.archiver = config.Archive
		if r.archiver == nil {
			r.archiver = NewArchiver(config.ArchivePath)
		}
	}
	return r
}

// Config returns the reclaimer configuration.
func (r *Reclaimer) Config() *Config {
	return r.config
}

// LastSummary returns the summary of the most recent run, or nil.
func (r *Reclaimer) LastSummary() *Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// phase describes one candidate scan.
type phase struct {
	name  string
	query func(now time.Time) *report.Query
}

// Run performs one reclamation pass.
//
// Hard deletes (phase A) run before stale-draft soft deletes (phase B) so a
// report soft-deleted in this run is never also hard-deleted by it. Each page
// of candidates is one batch. Per-report failures are counted and logged but
// never stop the run; a failing candidate query does, and its error is
// returned together with the partial summary.
//
// With a Locker configured, a run that cannot take the lock returns a nil
// summary and report.ErrRunInProgress.
func (r *Reclaimer) Run(ctx context.Context, trigger Trigger) (*Summary, error) {
	if r.config.Locker != nil {
		lease, err := r.config.Locker.Obtain(ctx)
		if err != nil {
			if errors.Is(err, report.ErrRunInProgress) {
				r.logger.Info("reclamation run skipped, lock held elsewhere", "trigger", trigger)
			}
			return nil, err
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				r.logger.Warn("failed to release reclamation lock", "error", err)
			}
		}()
	}

	start := time.Now()
	summary := &Summary{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: r.clock.Now(),
	}
	ctx = logging.WithRunID(ctx, summary.RunID)
	logger := r.logger.With("trigger", trigger)

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "reclamation.run", trace.WithAttributes(
		attribute.String("reclamation.run_id", summary.RunID),
		attribute.String("reclamation.trigger", string(trigger)),
	))
	defer span.End()

	logger.InfoContext(ctx, "reclamation run started",
		"batch_size", r.config.BatchSize,
		"max_per_run", r.config.MaxPerRun,
	)

	phases := []phase{
		{
			name: "expired_deletes",
			query: func(now time.Time) *report.Query {
				cut := r.policy.Cutoffs(now).HardDeleteBefore
				return &report.Query{
					IsDeleted:     report.BoolPtr(true),
					DeletedBefore: &cut,
					SortBy:        report.SortByDeletedAt,
				}
			},
		},
		{
			name: "stale_drafts",
			query: func(now time.Time) *report.Query {
				cut := r.policy.Cutoffs(now).StaleBefore
				return &report.Query{
					IsDeleted:        report.BoolPtr(false),
					StageNot:         report.StagePtr(report.StageComplete),
					LastEditedBefore: &cut,
					SortBy:           report.SortByLastEdited,
				}
			},
		},
	}

	var runErr error
	for _, p := range phases {
		if err := r.runPhase(ctx, p, summary, logger); err != nil {
			runErr = err
			break
		}
		if summary.CapReached {
			break
		}
	}

	elapsed := time.Since(start)
	summary.ElapsedMs = elapsed.Milliseconds()
	if runErr != nil {
		summary.Error = runErr.Error()
	}

	r.mu.Lock()
	r.last = summary
	r.mu.Unlock()

	r.metrics.observe(summary, runErr, elapsed)

	span.SetAttributes(
		attribute.Int("reclamation.soft_deleted", summary.SoftDeleted),
		attribute.Int("reclamation.hard_deleted", summary.HardDeleted),
		attribute.Int("reclamation.errors", summary.Errors),
		attribute.Int("reclamation.batches", summary.Batches),
	)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}

	attrs := []any{
		"soft_deleted", summary.SoftDeleted,
		"hard_deleted", summary.HardDeleted,
		"skipped", summary.Skipped,
		"errors", summary.Errors,
		"batches", summary.Batches,
		"cap_reached", summary.CapReached,
		"elapsed_ms", summary.ElapsedMs,
	}
	if runErr != nil {
		logger.ErrorContext(ctx, "reclamation run aborted", append(attrs, "error", runErr)...)
		return summary, runErr
	}
	logger.InfoContext(ctx, "reclamation run completed", attrs...)
	return summary, nil
}

// runPhase pages through one candidate scan with a keyset cursor so reports
// that were skipped or failed are never revisited in the same run.
func (r *Reclaimer) runPhase(ctx context.Context, p phase, summary *Summary, logger *slog.Logger) error {
	var cursor *report.Cursor

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		remaining := r.config.MaxPerRun - summary.Examined
		if remaining <= 0 {
			summary.CapReached = true
			return nil
		}
		limit := min(r.config.BatchSize, remaining)

		q := p.query(r.clock.Now())
		q.After = cursor
		q.Limit = limit

		candidates, err := r.store.Query(ctx, q)
		if err != nil {
			return fmt.Errorf("%s candidate query failed: %w", p.name, err)
		}
		if len(candidates) == 0 {
			return nil
		}

		summary.Batches++
		summary.Examined += len(candidates)

		batchCtx, span := otel.Tracer(tracerName).Start(ctx, "reclamation.batch", trace.WithAttributes(
			attribute.String("reclamation.phase", p.name),
			attribute.Int("reclamation.batch_size", len(candidates)),
		))
		r.processBatch(batchCtx, candidates, summary, logger)
		span.End()

		cursor = report.CursorOf(candidates[len(candidates)-1], q.OrderField())

		if len(candidates) < limit {
			return nil
		}
	}
}

// processBatch evaluates each candidate against a fresh clock reading and
// applies the resulting actions in one store batch.
func (r *Reclaimer) processBatch(ctx context.Context, candidates []*report.Report, summary *Summary, logger *slog.Logger) {
	actions := make([]recovery.Action, 0, len(candidates))
	var toArchive []*report.Report

	for _, doc := range candidates {
		d := r.policy.Evaluate(doc, r.clock.Now())
		if d.Action == expiration.NoAction {
			summary.Skipped++
			continue
		}
		if d.Action == expiration.HardDelete && r.archiver != nil {
			toArchive = append(toArchive, doc)
		}
		actions = append(actions, recovery.Action{ReportID: doc.ID, Decision: d})
	}

	if len(toArchive) > 0 {
		if err := r.archive(ctx, toArchive, summary.RunID); err != nil {
			// Without an archive copy the hard deletes must wait.
			logger.ErrorContext(ctx, "archive failed, deferring hard deletes",
				"count", len(toArchive),
				"error", err,
			)
			actions = withoutHardDeletes(actions)
			for _, doc := range toArchive {
				summary.Errors++
				summary.FailedIDs = append(summary.FailedIDs, doc.ID)
			}
		}
	}

	for _, res := range r.manager.Apply(ctx, actions) {
		switch res.Outcome {
		case recovery.Applied:
			switch res.Action {
			case expiration.SoftDelete:
				summary.SoftDeleted++
			case expiration.HardDelete:
				summary.HardDeleted++
			}
		case recovery.Skipped:
			summary.Skipped++
		case recovery.Failed:
			summary.Errors++
			summary.FailedIDs = append(summary.FailedIDs, res.ReportID)

			var twf *report.TransientWriteFailure
			if errors.As(res.Err, &twf) {
				logger.WarnContext(ctx, "reclamation write failed",
					"report_id", twf.ReportID,
					"operation", twf.Operation,
					"error", twf.Cause,
				)
			}
		}
	}
}

func (r *Reclaimer) archive(ctx context.Context, docs []*report.Report, runID string) error {
	now := r.clock.Now()
	entries := make([]ArchiveEntry, len(docs))
	for i, doc := range docs {
		entries[i] = ArchiveEntry{
			RunID:      runID,
			ArchivedAt: now,
			Reason:     report.ReasonRecoveryWindowElapsed,
			Report:     doc,
		}
	}

	location, err := r.archiver.Write(ctx, entries, now)
	if err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "reports archived before deletion",
		"archive", location,
		"count", len(entries),
	)
	return nil
}

func withoutHardDeletes(actions []recovery.Action) []recovery.Action {
	out := actions[:0]
	for _, a := range actions {
		if a.Decision.Action != expiration.HardDelete {
			out = append(out, a)
		}
	}
	return out
}
