// Package report defines the report entity and the contract of the document
// store shared by the authoring flow and the lifecycle subsystem.
//
// # Reports
//
// A report moves through three stages:
//
//	stage1 (on-site collection) → stage2 (office annotation) → stage3 (complete)
//
// Stages never regress. A report in any stage may be soft-deleted, which
// starts a recovery window during which the owner can restore it. Reports
// left in the recovery window past its end are hard-deleted by the
// reclamation job. Drafts (stage1, stage2) that have not been edited for the
// staleness threshold are soft-deleted automatically.
//
// # Invariants
//
//   - IsDeleted is true exactly when DeletedAt is set.
//   - Stage is monotonic.
//   - ExpirationReason is only set by system deletes.
//
// # Store
//
// Store models a generic document store: conditional single-document
// updates (Precondition + Patch), filtered timestamp queries with keyset
// paging, and batched writes with per-document failure reporting. Lifecycle
// components never need cross-document atomicity, so the contract has no
// transactions.
//
// Subpackages:
//
//   - stages: stage machine
//   - recovery: soft delete, recover, hard delete
//   - expiration: pure reclamation policy
//   - reclamation: batched scheduled and manual reclamation runs
//   - storage: in-memory and SQLite stores
package report
