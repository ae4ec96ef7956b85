package expiration

import (
	"testing"
	"time"

	"mercator-hq/reportkeeper/pkg/report"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

func live(stage report.Stage, edited time.Duration) *report.Report {
	r := &report.Report{ID: "r", Stage: stage, CreatedAt: now.Add(-edited), LastEdited: now.Add(-edited)}
	if stage.Rank() >= report.StageOffice.Rank() {
		r.Stage1CompletedAt = report.TimePtr(r.CreatedAt)
	}
	if stage == report.StageComplete {
		r.Stage2CompletedAt = report.TimePtr(r.CreatedAt)
	}
	return r
}

func deleted(stage report.Stage, ago time.Duration) *report.Report {
	r := live(stage, ago+time.Hour)
	r.IsDeleted = true
	r.DeletedAt = report.TimePtr(now.Add(-ago))
	return r
}

func editedAt(r *report.Report, t time.Time) *report.Report {
	r.LastEdited = t
	return r
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		r          *report.Report
		wantAction Action
		wantReason report.ExpirationReason
	}{
		{"draft edited 29 days ago", live(report.StageOnSite, 29*day), NoAction, report.ReasonNone},
		{"draft edited 31 days ago", live(report.StageOnSite, 31*day), SoftDelete, report.ReasonStaleDraft},
		{"stage2 edited 31 days ago", live(report.StageOffice, 31*day), SoftDelete, report.ReasonStaleDraft},
		{"draft exactly 30 days", live(report.StageOnSite, 30*day), NoAction, report.ReasonNone},
		{"stage3 edited 60 days ago", live(report.StageComplete, 60*day), NoAction, report.ReasonNone},
		{"deleted 47h59m ago", deleted(report.StageOnSite, 47*time.Hour+59*time.Minute), NoAction, report.ReasonNone},
		{"deleted exactly 48h ago", deleted(report.StageOnSite, 48*time.Hour), NoAction, report.ReasonNone},
		{"deleted 48h00m01s ago", deleted(report.StageOnSite, 48*time.Hour+time.Second), HardDelete, report.ReasonRecoveryWindowElapsed},
		{"deleted stage3 after 48h", deleted(report.StageComplete, 49*time.Hour), HardDelete, report.ReasonRecoveryWindowElapsed},
		{"deleted long-stale draft inside window", editedAt(deleted(report.StageOnSite, time.Hour), now.Add(-90*day)), NoAction, report.ReasonNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.r, now)
			if d.Action != tt.wantAction {
				t.Errorf("Action = %s, want %s", d.Action, tt.wantAction)
			}
			if d.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.wantReason)
			}
			if !d.At.Equal(now) {
				t.Errorf("At = %v, want %v", d.At, now)
			}
		})
	}
}

func TestPolicy_CutoffsAgreeWithEvaluate(t *testing.T) {
	p := DefaultPolicy()
	c := p.Cutoffs(now)

	if !c.HardDeleteBefore.Equal(now.Add(-48 * time.Hour)) {
		t.Errorf("HardDeleteBefore = %v", c.HardDeleteBefore)
	}
	if !c.StaleBefore.Equal(now.Add(-30 * day)) {
		t.Errorf("StaleBefore = %v", c.StaleBefore)
	}

	// A report right at the cutoff is neither hard-deleted nor unrecoverable.
	atCutoff := deleted(report.StageOnSite, 48*time.Hour)
	if p.Evaluate(atCutoff, now).Action != NoAction {
		t.Error("report at the recovery cutoff should not be hard-deleted")
	}
	if !p.Recoverable(*atCutoff.DeletedAt, now) {
		t.Error("report at the recovery cutoff should be recoverable")
	}
	if p.Recoverable(now.Add(-48*time.Hour-time.Second), now) {
		t.Error("report past the recovery cutoff should not be recoverable")
	}
}

func TestPolicy_Custom(t *testing.T) {
	p := Policy{RecoveryWindow: time.Hour, StaleAfter: 2 * day}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}

	if got := p.Evaluate(live(report.StageOnSite, 3*day), now).Action; got != SoftDelete {
		t.Errorf("Action = %s, want soft_delete", got)
	}
	if got := p.Evaluate(deleted(report.StageOffice, 2*time.Hour), now).Action; got != HardDelete {
		t.Errorf("Action = %s, want hard_delete", got)
	}

	if err := (Policy{}).Validate(); err == nil {
		t.Error("zero policy should fail validation")
	}
}
