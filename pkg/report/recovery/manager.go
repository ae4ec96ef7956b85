// Package recovery implements soft delete, recovery and hard delete of
// reports.
//
// Every write is a single conditional store update, so user operations and
// the reclamation job can race on the same report without a lock: whichever
// write lands second sees its precondition fail and resolves to a no-op or
// to the error that describes the winner's state.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/reportkeeper/pkg/clock"
	"mercator-hq/reportkeeper/pkg/report"
	"mercator-hq/reportkeeper/pkg/report/expiration"
)

// Manager performs delete and recover operations against a store.
type Manager struct {
	store  report.Store
	clock  clock.Clock
	policy expiration.Policy
	logger *slog.Logger
}

// NewManager creates a new recovery manager. A nil clock uses the wall clock.
func NewManager(store report.Store, clk clock.Clock, policy expiration.Policy) *Manager {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Manager{
		store:  store,
		clock:  clk,
		policy: policy,
		logger: slog.Default().With("component", "report.recovery"),
	}
}

// Policy returns the expiration policy used for window checks.
func (m *Manager) Policy() expiration.Policy {
	return m.policy
}

// SoftDelete marks report id as deleted and returns its deleted_at. Deleting
// an already deleted report is a no-op that returns the existing timestamp.
// reason is report.ReasonNone for user deletes.
func (m *Manager) SoftDelete(ctx context.Context, id string, reason report.ExpirationReason) (time.Time, error) {
	current, err := m.store.Get(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	if current.IsDeleted {
		return *current.DeletedAt, nil
	}

	now := m.clock.Now()
	_, err = m.store.Update(ctx, id,
		report.Precondition{IsDeleted: report.BoolPtr(false)},
		report.Patch{MarkDeleted: &now, ExpirationReason: &reason},
	)
	if errors.Is(err, report.ErrConditionFailed) {
		// Someone else deleted it first; report their timestamp.
		latest, getErr := m.store.Get(ctx, id)
		if getErr != nil {
			return time.Time{}, getErr
		}
		if latest.IsDeleted {
			return *latest.DeletedAt, nil
		}
		return time.Time{}, fmt.Errorf("soft delete of report %s lost a race: %w", id, err)
	}
	if err != nil {
		return time.Time{}, err
	}

	m.logger.InfoContext(ctx, "report soft-deleted",
		"report_id", id,
		"reason", reasonLabel(reason),
		"deleted_at", now,
	)
	return now, nil
}

// Recover restores a soft-deleted report while its recovery window is open.
// The window is inclusive: a report deleted exactly RecoveryWindow ago can
// still be recovered.
func (m *Manager) Recover(ctx context.Context, id string) (*report.Report, error) {
	current, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsDeleted {
		return nil, report.ErrNotDeleted
	}

	now := m.clock.Now()
	if !m.policy.Recoverable(*current.DeletedAt, now) {
		return nil, report.ErrRecoveryWindowExpired
	}

	cutoffs := m.policy.Cutoffs(now)
	none := report.ReasonNone
	recovered, err := m.store.Update(ctx, id,
		report.Precondition{
			IsDeleted:        report.BoolPtr(true),
			DeletedNotBefore: &cutoffs.RecoverableFrom,
		},
		report.Patch{ClearDeleted: true, ExpirationReason: &none, LastEdited: &now},
	)
	if errors.Is(err, report.ErrConditionFailed) {
		latest, getErr := m.store.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if !latest.IsDeleted {
			return nil, report.ErrNotDeleted
		}
		return nil, report.ErrRecoveryWindowExpired
	}
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "report recovered",
		"report_id", id,
		"deleted_at", current.DeletedAt,
	)
	return recovered, nil
}

// HardDelete permanently removes a report whose recovery window has elapsed.
// A report that is already gone is a no-op; one that is not deleted or still
// recoverable yields report.ErrConditionFailed.
func (m *Manager) HardDelete(ctx context.Context, id string) error {
	cutoffs := m.policy.Cutoffs(m.clock.Now())
	err := m.store.Delete(ctx, id, report.Precondition{
		IsDeleted:     report.BoolPtr(true),
		DeletedBefore: &cutoffs.HardDeleteBefore,
	})
	if errors.Is(err, report.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "report hard-deleted", "report_id", id)
	return nil
}

func reasonLabel(r report.ExpirationReason) string {
	if r == report.ReasonNone {
		return "user"
	}
	return string(r)
}
