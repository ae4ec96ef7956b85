package report

import (
	"fmt"
	"slices"
	"time"
)

// Stage is one of the three sequential authoring phases of a report.
type Stage string

const (
	// StageOnSite is the initial on-site collection stage.
	StageOnSite Stage = "stage1"

	// StageOffice is the office annotation stage.
	StageOffice Stage = "stage2"

	// StageComplete is the terminal stage of a finished report.
	StageComplete Stage = "stage3"
)

// Stages lists every stage in transition order.
var Stages = []Stage{StageOnSite, StageOffice, StageComplete}

// Rank returns the position of s in the transition order (1-based), or 0 for
// an unknown stage.
func (s Stage) Rank() int {
	switch s {
	case StageOnSite:
		return 1
	case StageOffice:
		return 2
	case StageComplete:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	return s.Rank() > 0
}

// Terminal reports whether s is the final stage.
func (s Stage) Terminal() bool {
	return s == StageComplete
}

// Next returns the stage that follows s. ok is false for the terminal stage.
func (s Stage) Next() (next Stage, ok bool) {
	switch s {
	case StageOnSite:
		return StageOffice, true
	case StageOffice:
		return StageComplete, true
	default:
		return "", false
	}
}

// ParseStage converts a string into a Stage.
func ParseStage(s string) (Stage, error) {
	stage := Stage(s)
	if !stage.Valid() {
		return "", fmt.Errorf("unknown stage %q (expected stage1, stage2 or stage3)", s)
	}
	return stage, nil
}

// ExpirationReason tags a delete performed by the system rather than a user.
type ExpirationReason string

const (
	// ReasonNone marks a user-initiated delete, or no delete at all.
	ReasonNone ExpirationReason = ""

	// ReasonStaleDraft marks an automatic soft delete of an abandoned draft.
	ReasonStaleDraft ExpirationReason = "stale-draft"

	// ReasonRecoveryWindowElapsed marks a hard delete after the recovery
	// window ran out.
	ReasonRecoveryWindowElapsed ExpirationReason = "recovery-window-elapsed"
)

// Report is a multi-stage draft document. The lifecycle subsystem only looks
// at the identity, stage and timestamp fields; Content is opaque to it.
type Report struct {
	// Identity, immutable after creation
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	BranchID string `json:"branch_id"`

	// Stage machine
	Stage             Stage      `json:"stage"`
	Stage1CompletedAt *time.Time `json:"stage1_completed_at,omitempty"`
	Stage2CompletedAt *time.Time `json:"stage2_completed_at,omitempty"`

	// Soft delete
	IsDeleted        bool             `json:"is_deleted"`
	DeletedAt        *time.Time       `json:"deleted_at,omitempty"`
	ExpirationReason ExpirationReason `json:"expiration_reason,omitempty"`

	// Authoring timestamps
	CreatedAt  time.Time `json:"created_at"`
	LastEdited time.Time `json:"last_edited"`

	// Content holds customer info, roof metadata, checklist items, issues
	// and costs.
	Content map[string]any `json:"content,omitempty"`
}

// Clone returns a copy of r that shares no pointers with it, nested content
// included.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	c := *r
	c.Stage1CompletedAt = cloneTime(r.Stage1CompletedAt)
	c.Stage2CompletedAt = cloneTime(r.Stage2CompletedAt)
	c.DeletedAt = cloneTime(r.DeletedAt)
	c.Content = CloneContent(r.Content)
	return &c
}

// CompletedAt returns the completion timestamp recorded when the report left
// stage s, or nil.
func (r *Report) CompletedAt(s Stage) *time.Time {
	switch s {
	case StageOnSite:
		return r.Stage1CompletedAt
	case StageOffice:
		return r.Stage2CompletedAt
	default:
		return nil
	}
}

// Validate checks the data-model invariants that must hold after every
// operation.
func (r *Report) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("report id is required")
	}
	if !r.Stage.Valid() {
		return fmt.Errorf("report %s: invalid stage %q", r.ID, r.Stage)
	}
	if r.IsDeleted != (r.DeletedAt != nil) {
		return fmt.Errorf("report %s: is_deleted=%t but deleted_at set=%t",
			r.ID, r.IsDeleted, r.DeletedAt != nil)
	}
	if r.Stage.Rank() >= StageOffice.Rank() && r.Stage1CompletedAt == nil {
		return fmt.Errorf("report %s: stage %s without stage1_completed_at", r.ID, r.Stage)
	}
	if r.Stage == StageComplete && r.Stage2CompletedAt == nil {
		return fmt.Errorf("report %s: stage %s without stage2_completed_at", r.ID, r.Stage)
	}
	return nil
}

// CloneContent deep-copies the maps and slices of decoded JSON content.
// Scalars are immutable and shared.
func CloneContent(content map[string]any) map[string]any {
	if content == nil {
		return nil
	}
	c := make(map[string]any, len(content))
	for k, v := range content {
		c[k] = cloneValue(v)
	}
	return c
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return CloneContent(v)
	case []any:
		if v == nil {
			return v
		}
		c := make([]any, len(v))
		for i, e := range v {
			c[i] = cloneValue(e)
		}
		return c
	case []string:
		return slices.Clone(v)
	default:
		return v
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time {
	return &t
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

// StagePtr returns a pointer to s.
func StagePtr(s Stage) *Stage {
	return &s
}
