package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"mercator-hq/reportkeeper/pkg/clock"
	"mercator-hq/reportkeeper/pkg/report"
	"mercator-hq/reportkeeper/pkg/report/expiration"
	"mercator-hq/reportkeeper/pkg/report/reporttest"
	"mercator-hq/reportkeeper/pkg/report/storage"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, reports ...*report.Report) (*Manager, *storage.MemoryStore, *clock.Fake) {
	t.Helper()
	store := storage.NewMemoryStore()
	for _, r := range reports {
		if err := store.Create(context.Background(), r); err != nil {
			t.Fatalf("Create(%s) failed: %v", r.ID, err)
		}
	}
	clk := clock.NewFake(base)
	return NewManager(store, clk, expiration.DefaultPolicy()), store, clk
}

func draft(id string) *report.Report {
	return &report.Report{ID: id, OwnerID: "u1", Stage: report.StageOnSite, CreatedAt: base, LastEdited: base}
}

func mustGet(t *testing.T, s report.Store, id string) *report.Report {
	t.Helper()
	r, err := s.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", id, err)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("invariant violated: %v", err)
	}
	return r
}

func TestSoftDelete(t *testing.T) {
	m, store, clk := setup(t, draft("r1"))
	ctx := context.Background()

	clk.Advance(time.Hour)
	deletedAt, err := m.SoftDelete(ctx, "r1", report.ReasonNone)
	if err != nil {
		t.Fatalf("SoftDelete() failed: %v", err)
	}
	if !deletedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("deleted_at = %v, want %v", deletedAt, base.Add(time.Hour))
	}

	r := mustGet(t, store, "r1")
	if !r.IsDeleted || r.ExpirationReason != report.ReasonNone {
		t.Errorf("unexpected report: %+v", r)
	}

	// Second delete is a no-op returning the original timestamp.
	clk.Advance(time.Hour)
	again, err := m.SoftDelete(ctx, "r1", report.ReasonNone)
	if err != nil {
		t.Fatalf("second SoftDelete() failed: %v", err)
	}
	if !again.Equal(deletedAt) {
		t.Errorf("second SoftDelete() = %v, want %v", again, deletedAt)
	}

	if _, err := m.SoftDelete(ctx, "missing", report.ReasonNone); !errors.Is(err, report.ErrNotFound) {
		t.Errorf("SoftDelete(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSoftDelete_AnyStage(t *testing.T) {
	done := draft("done")
	done.Stage = report.StageComplete
	done.Stage1CompletedAt = report.TimePtr(base)
	done.Stage2CompletedAt = report.TimePtr(base)

	m, store, _ := setup(t, done)
	if _, err := m.SoftDelete(context.Background(), "done", report.ReasonNone); err != nil {
		t.Fatalf("SoftDelete(stage3) failed: %v", err)
	}
	if r := mustGet(t, store, "done"); !r.IsDeleted || r.Stage != report.StageComplete {
		t.Errorf("unexpected report: %+v", r)
	}
}

func TestRecover_WindowBoundary(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		wantErr error
	}{
		{"one hour", time.Hour, nil},
		{"47h59m", 47*time.Hour + 59*time.Minute, nil},
		{"exactly 48h", 48 * time.Hour, nil},
		{"48h00m01s", 48*time.Hour + time.Second, report.ErrRecoveryWindowExpired},
		{"a week", 7 * 24 * time.Hour, report.ErrRecoveryWindowExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store, clk := setup(t, draft("r1"))
			ctx := context.Background()

			if _, err := m.SoftDelete(ctx, "r1", report.ReasonNone); err != nil {
				t.Fatalf("SoftDelete() failed: %v", err)
			}

			clk.Advance(tt.elapsed)
			r, err := m.Recover(ctx, "r1")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Recover() error = %v, want %v", err, tt.wantErr)
			}

			stored := mustGet(t, store, "r1")
			if tt.wantErr != nil {
				if !stored.IsDeleted {
					t.Error("failed recover must leave the report deleted")
				}
				return
			}
			if r.IsDeleted || r.DeletedAt != nil || stored.IsDeleted {
				t.Errorf("report still deleted after recover: %+v", stored)
			}
			if !stored.LastEdited.Equal(base.Add(tt.elapsed)) {
				t.Errorf("LastEdited = %v, want %v", stored.LastEdited, base.Add(tt.elapsed))
			}
		})
	}
}

func TestRecover_ClearsExpirationReason(t *testing.T) {
	m, store, clk := setup(t, draft("r1"))
	ctx := context.Background()

	if _, err := m.SoftDelete(ctx, "r1", report.ReasonStaleDraft); err != nil {
		t.Fatalf("SoftDelete() failed: %v", err)
	}
	if r := mustGet(t, store, "r1"); r.ExpirationReason != report.ReasonStaleDraft {
		t.Fatalf("ExpirationReason = %q, want stale-draft", r.ExpirationReason)
	}

	clk.Advance(time.Minute)
	if _, err := m.Recover(ctx, "r1"); err != nil {
		t.Fatalf("Recover() failed: %v", err)
	}
	if r := mustGet(t, store, "r1"); r.ExpirationReason != report.ReasonNone {
		t.Errorf("ExpirationReason = %q, want none", r.ExpirationReason)
	}
}

func TestRecover_Errors(t *testing.T) {
	m, _, _ := setup(t, draft("live"))
	ctx := context.Background()

	if _, err := m.Recover(ctx, "live"); !errors.Is(err, report.ErrNotDeleted) {
		t.Errorf("Recover(live) error = %v, want ErrNotDeleted", err)
	}
	if _, err := m.Recover(ctx, "missing"); !errors.Is(err, report.ErrNotFound) {
		t.Errorf("Recover(missing) error = %v, want ErrNotFound", err)
	}
}

func TestHardDelete(t *testing.T) {
	m, store, clk := setup(t, draft("r1"), draft("r2"))
	ctx := context.Background()

	if _, err := m.SoftDelete(ctx, "r1", report.ReasonNone); err != nil {
		t.Fatalf("SoftDelete() failed: %v", err)
	}

	// Inside the window the delete is refused.
	clk.Advance(48 * time.Hour)
	if err := m.HardDelete(ctx, "r1"); !errors.Is(err, report.ErrConditionFailed) {
		t.Fatalf("HardDelete() inside window error = %v, want ErrConditionFailed", err)
	}

	// Live reports are never hard-deleted.
	if err := m.HardDelete(ctx, "r2"); !errors.Is(err, report.ErrConditionFailed) {
		t.Errorf("HardDelete(live) error = %v, want ErrConditionFailed", err)
	}

	clk.Advance(time.Second)
	if err := m.HardDelete(ctx, "r1"); err != nil {
		t.Fatalf("HardDelete() failed: %v", err)
	}
	if _, err := store.Get(ctx, "r1"); !errors.Is(err, report.ErrNotFound) {
		t.Errorf("Get() after hard delete error = %v, want ErrNotFound", err)
	}

	// Already gone is a no-op.
	if err := m.HardDelete(ctx, "r1"); err != nil {
		t.Errorf("second HardDelete() error = %v, want nil", err)
	}

	// And the user gets ErrNotFound when trying to recover it.
	if _, err := m.Recover(ctx, "r1"); !errors.Is(err, report.ErrNotFound) {
		t.Errorf("Recover() after hard delete error = %v, want ErrNotFound", err)
	}
}

func TestApply(t *testing.T) {
	stale := draft("stale")
	stale.LastEdited = base.Add(-31 * 24 * time.Hour)

	edited := draft("edited") // decision taken on a stale read; now fresh
	edited.LastEdited = base

	old := draft("old")
	old.IsDeleted = true
	old.DeletedAt = report.TimePtr(base.Add(-49 * time.Hour))

	broken := draft("broken")
	broken.LastEdited = base.Add(-40 * 24 * time.Hour)

	m, inner, _ := setup(t, stale, edited, old, broken)
	faulty := reporttest.NewFaultyStore(inner)
	faulty.FailWrites("broken")
	m.store = faulty

	soft := expiration.Decision{Action: expiration.SoftDelete, Reason: report.ReasonStaleDraft, At: base}
	hard := expiration.Decision{Action: expiration.HardDelete, Reason: report.ReasonRecoveryWindowElapsed, At: base}

	results := m.Apply(context.Background(), []Action{
		{ReportID: "stale", Decision: soft},
		{ReportID: "edited", Decision: soft},
		{ReportID: "old", Decision: hard},
		{ReportID: "missing", Decision: hard},
		{ReportID: "broken", Decision: soft},
		{ReportID: "noop", Decision: expiration.Decision{Action: expiration.NoAction, At: base}},
	})

	want := []Outcome{Applied, Skipped, Applied, Skipped, Failed, Skipped}
	if len(results) != len(want) {
		t.Fatalf("Apply() returned %d results, want %d", len(results), len(want))
	}
	for i, w := range want {
		if results[i].Outcome != w {
			t.Errorf("results[%d] (%s) outcome = %s, want %s (err=%v)", i, results[i].ReportID, results[i].Outcome, w, results[i].Err)
		}
	}

	var twf *report.TransientWriteFailure
	if !errors.As(results[4].Err, &twf) || twf.ReportID != "broken" || !errors.Is(twf, reporttest.ErrInjected) {
		t.Errorf("results[4].Err = %v, want TransientWriteFailure for broken", results[4].Err)
	}

	if r := mustGet(t, inner, "stale"); !r.IsDeleted || r.ExpirationReason != report.ReasonStaleDraft || !r.DeletedAt.Equal(base) {
		t.Errorf("stale report not soft-deleted: %+v", r)
	}
	if r := mustGet(t, inner, "edited"); r.IsDeleted {
		t.Error("freshly edited report must not be soft-deleted")
	}
	if _, err := inner.Get(context.Background(), "old"); !errors.Is(err, report.ErrNotFound) {
		t.Error("old report should be hard-deleted")
	}

	// Applying the same decisions again changes nothing.
	again := m.Apply(context.Background(), []Action{
		{ReportID: "stale", Decision: soft},
		{ReportID: "old", Decision: hard},
	})
	for _, res := range again {
		if res.Outcome != Skipped {
			t.Errorf("reapplied %s outcome = %s, want skipped", res.ReportID, res.Outcome)
		}
	}
}
