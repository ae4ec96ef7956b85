package recovery

import (
	"context"
	"errors"

	"mercator-hq/reportkeeper/pkg/report"
	"mercator-hq/reportkeeper/pkg/report/expiration"
)

// Action pairs a report with the decision taken for it.
type Action struct {
	ReportID string
	Decision expiration.Decision
}

// Outcome classifies the result of one action.
type Outcome int

const (
	// Applied means the write landed.
	Applied Outcome = iota

	// Skipped means there was nothing to do: no action was decided, the
	// report is gone, or it changed so the decision no longer holds.
	Skipped

	// Failed means the write failed; Err is a *report.TransientWriteFailure.
	Failed
)

// String returns the outcome name used in logs.
func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

// ActionResult is the per-report result of Apply.
type ActionResult struct {
	ReportID string
	Action   expiration.Action
	Outcome  Outcome
	Err      error
}

// Apply performs a batch of reclamation actions in one store round trip.
// Each write carries a precondition that re-checks the decision against the
// stored document at the decision's instant, so a report edited, recovered or
// already reclaimed since it was read is skipped rather than clobbered.
// Results are aligned with actions.
func (m *Manager) Apply(ctx context.Context, actions []Action) []ActionResult {
	results := make([]ActionResult, len(actions))
	muts := make([]report.Mutation, 0, len(actions))
	index := make([]int, 0, len(actions))

	for i, a := range actions {
		results[i] = ActionResult{ReportID: a.ReportID, Action: a.Decision.Action, Outcome: Skipped}
		mut, ok := m.mutationFor(a)
		if !ok {
			continue
		}
		muts = append(muts, mut)
		index = append(index, i)
	}

	if len(muts) == 0 {
		return results
	}

	errs, err := m.store.ApplyBatch(ctx, muts)
	if err != nil {
		m.logger.WarnContext(ctx, "batch write failed", "mutations", len(muts), "error", err)
	}
	for j, i := range index {
		var itemErr error
		if err != nil {
			itemErr = err
		} else {
			itemErr = errs[j]
		}
		results[i].Outcome, results[i].Err = classify(actions[i].ReportID, muts[j].Kind, itemErr)
	}

	return results
}

func (m *Manager) mutationFor(a Action) (report.Mutation, bool) {
	d := a.Decision
	cutoffs := m.policy.Cutoffs(d.At)

	switch d.Action {
	case expiration.SoftDelete:
		at := d.At
		reason := d.Reason
		return report.Mutation{
			Kind: report.MutationUpdate,
			ID:   a.ReportID,
			When: report.Precondition{
				IsDeleted:        report.BoolPtr(false),
				StageNot:         report.StagePtr(report.StageComplete),
				LastEditedBefore: &cutoffs.StaleBefore,
			},
			Set: report.Patch{MarkDeleted: &at, ExpirationReason: &reason},
		}, true
	case expiration.HardDelete:
		return report.Mutation{
			Kind: report.MutationDelete,
			ID:   a.ReportID,
			When: report.Precondition{
				IsDeleted:     report.BoolPtr(true),
				DeletedBefore: &cutoffs.HardDeleteBefore,
			},
		}, true
	default:
		return report.Mutation{}, false
	}
}

func classify(id string, kind report.MutationKind, err error) (Outcome, error) {
	switch {
	case err == nil:
		return Applied, nil
	case errors.Is(err, report.ErrConditionFailed), errors.Is(err, report.ErrNotFound):
		return Skipped, nil
	default:
		return Failed, report.NewTransientWriteFailure(id, kind.String(), err)
	}
}
