package report

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned for stage regressions, skipped stages
	// and advances with missing required fields. State is unchanged.
	ErrInvalidTransition = errors.New("invalid stage transition")

	// ErrRecoveryWindowExpired is returned when a report is recovered after
	// its recovery window elapsed.
	ErrRecoveryWindowExpired = errors.New("recovery window expired")

	// ErrForbidden is returned when the caller lacks the privilege for an
	// operation.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when a report does not exist.
	ErrNotFound = errors.New("report not found")

	// ErrNotDeleted is returned when recovering a report that is not deleted.
	ErrNotDeleted = errors.New("report is not deleted")

	// ErrAlreadyExists is returned when creating a report whose id is taken.
	ErrAlreadyExists = errors.New("report already exists")

	// ErrConditionFailed is returned by a store when a write precondition
	// does not hold.
	ErrConditionFailed = errors.New("precondition failed")

	// ErrRunInProgress is returned when another instance holds the
	// reclamation run lock.
	ErrRunInProgress = errors.New("reclamation run already in progress")
)

// TransitionError describes a rejected stage transition.
type TransitionError struct {
	ReportID string
	From     Stage
	To       Stage
	Reason   string
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid stage transition [report_id=%s, from=%s, to=%s]: %s",
		e.ReportID, e.From, e.To, e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidTransition) hold.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// NewTransitionError creates a new TransitionError.
func NewTransitionError(reportID string, from, to Stage, reason string) *TransitionError {
	return &TransitionError{
		ReportID: reportID,
		From:     from,
		To:       to,
		Reason:   reason,
	}
}

// TransientWriteFailure records a single document write that failed during a
// reclamation batch. It is counted and logged, never retried in-run.
type TransientWriteFailure struct {
	ReportID  string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *TransientWriteFailure) Error() string {
	return fmt.Sprintf("transient write failure [report_id=%s, operation=%s]: %v",
		e.ReportID, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *TransientWriteFailure) Unwrap() error {
	return e.Cause
}

// NewTransientWriteFailure creates a new TransientWriteFailure.
func NewTransientWriteFailure(reportID, operation string, cause error) *TransientWriteFailure {
	return &TransientWriteFailure{
		ReportID:  reportID,
		Operation: operation,
		Cause:     cause,
	}
}

// StorageError represents an error from a store backend.
type StorageError struct {
	Backend   string // "sqlite", "postgres", "memory"
	Operation string // "create", "update", "query", ...
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}
