package stages

import (
	"context"
	"errors"
	"log/slog"

	"mercator-hq/reportkeeper/pkg/clock"
	"mercator-hq/reportkeeper/pkg/report"
)

// Machine applies stage transitions against a store.
type Machine struct {
	store  report.Store
	clock  clock.Clock
	reqs   Requirements
	logger *slog.Logger
}

// NewMachine creates a stage machine. A nil clock uses the wall clock and nil
// requirements use DefaultRequirements.
func NewMachine(store report.Store, clk clock.Clock, reqs Requirements) *Machine {
	if clk == nil {
		clk = clock.Real{}
	}
	if reqs == nil {
		reqs = DefaultRequirements()
	}
	return &Machine{
		store:  store,
		clock:  clk,
		reqs:   reqs.Clone(),
		logger: slog.Default().With("component", "report.stages"),
	}
}

// Requirements returns a copy of the requirements in use.
func (m *Machine) Requirements() Requirements {
	return m.reqs.Clone()
}

// Advance moves report id to target, merging fields into its content.
//
// Invalid transitions return an error wrapping report.ErrInvalidTransition
// and leave the report unchanged. If the report changed between the read and
// the write (a concurrent advance, delete or reclamation), the write misses
// and Advance reports an invalid transition against the current state.
func (m *Machine) Advance(ctx context.Context, id string, target report.Stage, fields map[string]any) (*report.Report, error) {
	current, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	when, set, err := Plan(current, target, fields, m.reqs, now)
	if err != nil {
		m.logger.Debug("stage transition rejected",
			"report_id", id,
			"from", current.Stage,
			"to", target,
			"error", err,
		)
		return nil, err
	}

	updated, err := m.store.Update(ctx, id, when, set)
	if errors.Is(err, report.ErrConditionFailed) {
		return nil, m.lostRace(ctx, id, current.Stage, target)
	}
	if err != nil {
		return nil, err
	}

	m.logger.Info("report stage advanced",
		"report_id", id,
		"from", current.Stage,
		"to", updated.Stage,
	)
	return updated, nil
}

// lostRace explains a missed conditional write using the current state.
func (m *Machine) lostRace(ctx context.Context, id string, from, target report.Stage) error {
	latest, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	reason := "report changed concurrently"
	switch {
	case latest.IsDeleted:
		reason = "report was deleted concurrently"
	case latest.Stage != from:
		reason = "report was advanced concurrently to " + string(latest.Stage)
	}
	m.logger.Warn("stage transition lost race",
		"report_id", id,
		"from", from,
		"to", target,
		"current_stage", latest.Stage,
	)
	return report.NewTransitionError(id, from, target, reason)
}
