package expiration

import (
	"fmt"
	"time"

	"mercator-hq/reportkeeper/pkg/report"
)

const (
	// DefaultRecoveryWindow is how long a soft-deleted report stays
	// recoverable.
	DefaultRecoveryWindow = 48 * time.Hour

	// DefaultStaleAfter is how long a draft may go unedited before it is
	// soft-deleted.
	DefaultStaleAfter = 30 * 24 * time.Hour
)

// Policy holds the expiration thresholds.
type Policy struct {
	RecoveryWindow time.Duration
	StaleAfter     time.Duration
}

// DefaultPolicy returns the 48h / 30d policy.
func DefaultPolicy() Policy {
	return Policy{
		RecoveryWindow: DefaultRecoveryWindow,
		StaleAfter:     DefaultStaleAfter,
	}
}

// Validate checks that both thresholds are positive.
func (p Policy) Validate() error {
	if p.RecoveryWindow <= 0 {
		return fmt.Errorf("recovery window must be positive, got %s", p.RecoveryWindow)
	}
	if p.StaleAfter <= 0 {
		return fmt.Errorf("stale-after must be positive, got %s", p.StaleAfter)
	}
	return nil
}

// Action is the outcome of evaluating one report.
type Action int

const (
	// NoAction leaves the report untouched.
	NoAction Action = iota

	// SoftDelete marks a stale draft as deleted.
	SoftDelete

	// HardDelete permanently removes a report whose recovery window elapsed.
	HardDelete
)

// String returns the action name used in logs and metric labels.
func (a Action) String() string {
	switch a {
	case SoftDelete:
		return "soft_delete"
	case HardDelete:
		return "hard_delete"
	default:
		return "none"
	}
}

// Decision is the result of Evaluate.
type Decision struct {
	Action Action
	Reason report.ExpirationReason

	// At is the time the decision was made. Preconditions derived from the
	// decision use the same instant.
	At time.Time
}

// Evaluate decides what to do with r at now.
func (p Policy) Evaluate(r *report.Report, now time.Time) Decision {
	if r.IsDeleted {
		if r.DeletedAt != nil && now.Sub(*r.DeletedAt) > p.RecoveryWindow {
			return Decision{Action: HardDelete, Reason: report.ReasonRecoveryWindowElapsed, At: now}
		}
		return Decision{Action: NoAction, At: now}
	}

	if !r.Stage.Terminal() && now.Sub(r.LastEdited) > p.StaleAfter {
		return Decision{Action: SoftDelete, Reason: report.ReasonStaleDraft, At: now}
	}

	return Decision{Action: NoAction, At: now}
}

// Evaluate applies the default policy.
func Evaluate(r *report.Report, now time.Time) Decision {
	return DefaultPolicy().Evaluate(r, now)
}

// Cutoffs are the timestamp boundaries derived from a policy at one instant.
type Cutoffs struct {
	// HardDeleteBefore: deleted reports with deleted_at strictly before this
	// are past their recovery window.
	HardDeleteBefore time.Time

	// RecoverableFrom: deleted reports with deleted_at at or after this can
	// still be recovered.
	RecoverableFrom time.Time

	// StaleBefore: drafts with last_edited strictly before this are stale.
	StaleBefore time.Time
}

// Cutoffs returns the query boundaries for now.
func (p Policy) Cutoffs(now time.Time) Cutoffs {
	window := now.Add(-p.RecoveryWindow)
	return Cutoffs{
		HardDeleteBefore: window,
		RecoverableFrom:  window,
		StaleBefore:      now.Add(-p.StaleAfter),
	}
}

// Recoverable reports whether a report deleted at deletedAt can still be
// recovered at now.
func (p Policy) Recoverable(deletedAt, now time.Time) bool {
	return now.Sub(deletedAt) <= p.RecoveryWindow
}
