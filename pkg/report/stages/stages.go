// Package stages implements the report stage machine.
//
// Transitions are planned by the pure Plan function and applied by Machine
// as a single conditional store update keyed on the stage that was read, so
// two concurrent advances of the same report cannot both succeed.
package stages

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"mercator-hq/reportkeeper/pkg/report"
)

// Requirements lists, per stage, the content fields that must be present
// before a report may leave that stage.
type Requirements map[report.Stage][]string

// DefaultRequirements returns the fields gating each transition.
func DefaultRequirements() Requirements {
	return Requirements{
		report.StageOnSite: {"customer_name", "address", "roof_type"},
		report.StageOffice: {"checklist", "issues"},
	}
}

// Clone returns a deep copy of r.
func (r Requirements) Clone() Requirements {
	out := make(Requirements, len(r))
	for stage, fields := range r {
		out[stage] = slices.Clone(fields)
	}
	return out
}

// Missing returns the required fields for leaving stage that are absent from
// content, in declaration order.
func (r Requirements) Missing(stage report.Stage, content map[string]any) []string {
	var missing []string
	for _, field := range r[stage] {
		if !present(content[field]) {
			missing = append(missing, field)
		}
	}
	return missing
}

// present treats nil and the empty string as absent. Any other value,
// including false, 0 and empty lists, counts as provided.
func present(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	default:
		return true
	}
}

// Plan validates advancing r to target with the given payload fields and
// returns the guarded write that performs it. It never mutates r.
func Plan(r *report.Report, target report.Stage, fields map[string]any, reqs Requirements, now time.Time) (report.Precondition, report.Patch, error) {
	from := r.Stage

	if !target.Valid() {
		return report.Precondition{}, report.Patch{}, report.NewTransitionError(r.ID, from, target, "unknown target stage")
	}
	if r.IsDeleted {
		return report.Precondition{}, report.Patch{}, report.NewTransitionError(r.ID, from, target, "report is deleted; recover it first")
	}

	next, ok := from.Next()
	switch {
	case !ok:
		return report.Precondition{}, report.Patch{}, report.NewTransitionError(r.ID, from, target, "stage is terminal")
	case target.Rank() <= from.Rank():
		return report.Precondition{}, report.Patch{}, report.NewTransitionError(r.ID, from, target, "stages never regress")
	case target != next:
		return report.Precondition{}, report.Patch{}, report.NewTransitionError(r.ID, from, target,
			fmt.Sprintf("stages cannot be skipped (next is %s)", next))
	}

	merged := make(map[string]any, len(r.Content)+len(fields))
	maps.Copy(merged, r.Content)
	maps.Copy(merged, fields)
	if missing := reqs.Missing(from, merged); len(missing) > 0 {
		return report.Precondition{}, report.Patch{}, report.NewTransitionError(r.ID, from, target,
			fmt.Sprintf("missing required fields %v", missing))
	}

	when := report.Precondition{
		IsDeleted: report.BoolPtr(false),
		Stage:     report.StagePtr(from),
	}
	set := report.Patch{
		Stage:      report.StagePtr(target),
		LastEdited: report.TimePtr(now),
		Content:    fields,
	}

	// Completion stamps are written once.
	if r.CompletedAt(from) == nil {
		switch from {
		case report.StageOnSite:
			set.Stage1CompletedAt = report.TimePtr(now)
		case report.StageOffice:
			set.Stage2CompletedAt = report.TimePtr(now)
		}
	}

	return when, set, nil
}
