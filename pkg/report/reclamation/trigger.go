package reclamation

import (
	"context"
	"log/slog"

	"mercator-hq/reportkeeper/pkg/report"
	"mercator-hq/reportkeeper/pkg/security/auth"
)

// Authorizer decides whether a principal holds a capability.
type Authorizer interface {
	Allowed(p auth.Principal, c auth.Capability) bool
}

// ManualTrigger runs reclamation on demand for privileged callers.
type ManualTrigger struct {
	reclaimer  *Reclaimer
	authorizer Authorizer
	logger     *slog.Logger
}

// NewManualTrigger creates a manual trigger.
func NewManualTrigger(reclaimer *Reclaimer, authorizer Authorizer) *ManualTrigger {
	return &ManualTrigger{
		reclaimer:  reclaimer,
		authorizer: authorizer,
		logger:     slog.Default().With("component", "report.reclamation.trigger"),
	}
}

// Run checks that principal may reclaim and then runs the same pass as the
// scheduler. It may overlap a scheduled run; every write is idempotent.
func (t *ManualTrigger) Run(ctx context.Context, principal auth.Principal) (*Summary, error) {
	if !t.authorizer.Allowed(principal, auth.CapabilityReclaim) {
		t.logger.Warn("manual reclamation denied",
			"user_id", principal.UserID,
			"role", principal.Role,
		)
		return nil, report.ErrForbidden
	}

	t.logger.Info("manual reclamation requested",
		"user_id", principal.UserID,
		"role", principal.Role,
	)
	return t.reclaimer.Run(ctx, TriggerManual)
}

// LastSummary returns the summary of the most recent completed run, or nil.
func (t *ManualTrigger) LastSummary() *Summary {
	return t.reclaimer.LastSummary()
}
