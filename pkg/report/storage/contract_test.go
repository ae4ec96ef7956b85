package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"mercator-hq/reportkeeper/pkg/report"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// storeFactory returns a fresh, empty store. The store is closed by the test.
type storeFactory func(t *testing.T) report.Store

func newDraft(id string, edited time.Time) *report.Report {
	return &report.Report{
		ID:         id,
		OwnerID:    "owner-1",
		BranchID:   "branch-1",
		Stage:      report.StageOnSite,
		CreatedAt:  edited,
		LastEdited: edited,
		Content:    map[string]any{"customer_name": "Ada"},
	}
}

func newDeleted(id string, deletedAt time.Time) *report.Report {
	r := newDraft(id, deletedAt.Add(-time.Hour))
	r.IsDeleted = true
	r.DeletedAt = report.TimePtr(deletedAt)
	return r
}

func mustCreate(t *testing.T, s report.Store, reports ...*report.Report) {
	t.Helper()
	for _, r := range reports {
		if err := s.Create(context.Background(), r); err != nil {
			t.Fatalf("Create(%s) failed: %v", r.ID, err)
		}
	}
}

// runStoreContract exercises the behaviour every report.Store must share.
func runStoreContract(t *testing.T, factory storeFactory) {
	t.Run("CreateAndGet", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()

		mustCreate(t, s, newDraft("r1", base))

		got, err := s.Get(ctx, "r1")
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if got.Stage != report.StageOnSite || got.OwnerID != "owner-1" {
			t.Errorf("unexpected report: %+v", got)
		}
		if !got.LastEdited.Equal(base) || !got.CreatedAt.Equal(base) {
			t.Errorf("timestamps not preserved: created=%v edited=%v", got.CreatedAt, got.LastEdited)
		}
		if got.IsDeleted || got.DeletedAt != nil {
			t.Errorf("fresh report should not be deleted: %+v", got)
		}
		if got.Content["customer_name"] != "Ada" {
			t.Errorf("content not preserved: %v", got.Content)
		}

		if err := s.Create(ctx, newDraft("r1", base)); !errors.Is(err, report.ErrAlreadyExists) {
			t.Errorf("Create() with duplicate id error = %v, want ErrAlreadyExists", err)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := factory(t)
		if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, report.ErrNotFound) {
			t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("ConditionalUpdate", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		mustCreate(t, s, newDraft("r1", base))

		// Condition does not hold: nothing changes.
		_, err := s.Update(ctx, "r1",
			report.Precondition{IsDeleted: report.BoolPtr(true)},
			report.Patch{ClearDeleted: true})
		if !errors.Is(err, report.ErrConditionFailed) {
			t.Fatalf("Update() error = %v, want ErrConditionFailed", err)
		}

		deletedAt := base.Add(time.Hour)
		reason := report.ReasonStaleDraft
		got, err := s.Update(ctx, "r1",
			report.Precondition{
				IsDeleted:        report.BoolPtr(false),
				StageNot:         report.StagePtr(report.StageComplete),
				LastEditedBefore: report.TimePtr(base.Add(time.Second)),
			},
			report.Patch{MarkDeleted: &deletedAt, ExpirationReason: &reason})
		if err != nil {
			t.Fatalf("Update() failed: %v", err)
		}
		if !got.IsDeleted || got.DeletedAt == nil || !got.DeletedAt.Equal(deletedAt) {
			t.Errorf("soft delete not applied: %+v", got)
		}
		if got.ExpirationReason != report.ReasonStaleDraft {
			t.Errorf("ExpirationReason = %q, want %q", got.ExpirationReason, report.ReasonStaleDraft)
		}

		if _, err := s.Update(ctx, "missing", report.Precondition{}, report.Patch{ClearDeleted: true}); !errors.Is(err, report.ErrNotFound) {
			t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("ClearDeletedAndMergeContent", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		mustCreate(t, s, newDeleted("r1", base))

		reason := report.ReasonNone
		got, err := s.Update(ctx, "r1",
			report.Precondition{IsDeleted: report.BoolPtr(true), DeletedNotBefore: report.TimePtr(base)},
			report.Patch{ClearDeleted: true, ExpirationReason: &reason, Content: map[string]any{"roof_type": "gable"}})
		if err != nil {
			t.Fatalf("Update() failed: %v", err)
		}
		if got.IsDeleted || got.DeletedAt != nil {
			t.Errorf("recover not applied: %+v", got)
		}
		if got.Content["customer_name"] != "Ada" || got.Content["roof_type"] != "gable" {
			t.Errorf("content not merged: %v", got.Content)
		}
	})

	t.Run("ContentReplacesTopLevelKeys", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		r := newDraft("r1", base)
		r.Content = map[string]any{
			"customer_name": "Ada",
			"roof":          map[string]any{"a": 1, "b": 2},
			"note":          "x",
		}
		mustCreate(t, s, r)

		patch := map[string]any{
			"roof": map[string]any{"a": 9},
			"note": nil,
		}
		for i := range 120 {
			patch[fmt.Sprintf("item_%03d", i)] = i
		}
		if _, err := s.Update(ctx, "r1", report.Precondition{}, report.Patch{Content: patch}); err != nil {
			t.Fatalf("Update() failed: %v", err)
		}

		got, err := s.Get(ctx, "r1")
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if fmt.Sprint(got.Content["roof"]) != "map[a:9]" {
			t.Errorf("roof = %v, want the nested object replaced whole", got.Content["roof"])
		}
		if v, ok := got.Content["note"]; !ok || v != nil {
			t.Errorf("note = %v (present %v), want a stored null", v, ok)
		}
		if got.Content["customer_name"] != "Ada" {
			t.Errorf("untouched key lost: %v", got.Content)
		}
		if fmt.Sprint(got.Content["item_119"]) != "119" || len(got.Content) != 123 {
			t.Errorf("got %d content keys, item_119 = %v", len(got.Content), got.Content["item_119"])
		}
	})

	t.Run("ConditionalDelete", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		mustCreate(t, s, newDeleted("r1", base))

		// deleted_at == cutoff is not strictly before it.
		err := s.Delete(ctx, "r1", report.Precondition{
			IsDeleted:     report.BoolPtr(true),
			DeletedBefore: report.TimePtr(base),
		})
		if !errors.Is(err, report.ErrConditionFailed) {
			t.Fatalf("Delete() error = %v, want ErrConditionFailed", err)
		}

		err = s.Delete(ctx, "r1", report.Precondition{
			IsDeleted:     report.BoolPtr(true),
			DeletedBefore: report.TimePtr(base.Add(time.Nanosecond)),
		})
		if err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
		if _, err := s.Get(ctx, "r1"); !errors.Is(err, report.ErrNotFound) {
			t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, "r1", report.Precondition{}); !errors.Is(err, report.ErrNotFound) {
			t.Errorf("second Delete() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("QueryFiltersAndOrder", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()

		complete := newDraft("complete", base.Add(-90*24*time.Hour))
		complete.Stage = report.StageComplete
		complete.Stage1CompletedAt = report.TimePtr(complete.LastEdited)
		complete.Stage2CompletedAt = report.TimePtr(complete.LastEdited)

		mustCreate(t, s,
			newDraft("b", base.Add(-40*24*time.Hour)),
			newDraft("a", base.Add(-40*24*time.Hour)),
			newDraft("fresh", base),
			newDeleted("gone", base.Add(-72*time.Hour)),
			complete,
		)

		cutoff := base.Add(-30 * 24 * time.Hour)
		results, err := s.Query(ctx, &report.Query{
			IsDeleted:        report.BoolPtr(false),
			StageNot:         report.StagePtr(report.StageComplete),
			LastEditedBefore: &cutoff,
			SortBy:           report.SortByLastEdited,
		})
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		if got := ids(results); fmt.Sprint(got) != "[a b]" {
			t.Errorf("Query() ids = %v, want [a b]", got)
		}

		count, err := s.Count(ctx, &report.Query{IsDeleted: report.BoolPtr(true)})
		if err != nil {
			t.Fatalf("Count() failed: %v", err)
		}
		if count != 1 {
			t.Errorf("Count(deleted) = %d, want 1", count)
		}

		window := base.Add(-48 * time.Hour)
		results, err = s.Query(ctx, &report.Query{
			IsDeleted:     report.BoolPtr(true),
			DeletedBefore: &window,
			SortBy:        report.SortByDeletedAt,
		})
		if err != nil {
			t.Fatalf("Query(deleted) failed: %v", err)
		}
		if got := ids(results); fmt.Sprint(got) != "[gone]" {
			t.Errorf("Query(deleted) ids = %v, want [gone]", got)
		}
	})

	t.Run("KeysetPaging", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()

		for i := 0; i < 7; i++ {
			// Pairs share a timestamp so the id tiebreak is exercised.
			mustCreate(t, s, newDraft(fmt.Sprintf("r%02d", i), base.Add(time.Duration(i/2)*time.Minute)))
		}

		var seen []string
		q := &report.Query{SortBy: report.SortByLastEdited, Limit: 3}
		for pages := 0; pages < 10; pages++ {
			page, err := s.Query(ctx, q)
			if err != nil {
				t.Fatalf("Query() failed: %v", err)
			}
			if len(page) == 0 {
				break
			}
			seen = append(seen, ids(page)...)
			q.After = report.CursorOf(page[len(page)-1], report.SortByLastEdited)
		}

		if fmt.Sprint(seen) != "[r00 r01 r02 r03 r04 r05 r06]" {
			t.Errorf("paged ids = %v", seen)
		}
	})

	t.Run("ApplyBatchReportsPerItem", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		mustCreate(t, s, newDraft("live", base), newDeleted("old", base.Add(-72*time.Hour)))

		now := base.Add(time.Hour)
		reason := report.ReasonStaleDraft
		errs, err := s.ApplyBatch(ctx, []report.Mutation{
			{
				Kind: report.MutationUpdate,
				ID:   "live",
				When: report.Precondition{IsDeleted: report.BoolPtr(false)},
				Set:  report.Patch{MarkDeleted: &now, ExpirationReason: &reason},
			},
			{
				Kind: report.MutationDelete,
				ID:   "missing",
				When: report.Precondition{IsDeleted: report.BoolPtr(true)},
			},
			{
				Kind: report.MutationDelete,
				ID:   "old",
				When: report.Precondition{IsDeleted: report.BoolPtr(true), DeletedBefore: report.TimePtr(base.Add(-48 * time.Hour))},
			},
		})
		if err != nil {
			t.Fatalf("ApplyBatch() failed: %v", err)
		}
		if len(errs) != 3 {
			t.Fatalf("ApplyBatch() returned %d results, want 3", len(errs))
		}
		if errs[0] != nil || errs[2] != nil {
			t.Errorf("unexpected errors: %v", errs)
		}
		if !errors.Is(errs[1], report.ErrNotFound) {
			t.Errorf("errs[1] = %v, want ErrNotFound", errs[1])
		}

		got, err := s.Get(ctx, "live")
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if !got.IsDeleted {
			t.Error("live report should be soft-deleted")
		}
		if _, err := s.Get(ctx, "old"); !errors.Is(err, report.ErrNotFound) {
			t.Error("old report should be hard-deleted")
		}
	})

	t.Run("ApplyBatchCanceled", func(t *testing.T) {
		s := factory(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := s.ApplyBatch(ctx, []report.Mutation{{Kind: report.MutationDelete, ID: "x"}}); !errors.Is(err, context.Canceled) {
			t.Errorf("ApplyBatch() error = %v, want context.Canceled", err)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		s := factory(t)
		if err := s.Ping(context.Background()); err != nil {
			t.Errorf("Ping() failed: %v", err)
		}
	})
}

func ids(reports []*report.Report) []string {
	out := make([]string, len(reports))
	for i, r := range reports {
		out[i] = r.ID
	}
	return out
}
