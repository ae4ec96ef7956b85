package report

import (
	"context"
	"time"
)

// Precondition guards a single-document write. Every non-nil field must hold
// against the stored document for the write to apply; otherwise the store
// returns ErrConditionFailed and leaves the document untouched.
type Precondition struct {
	// IsDeleted requires the soft-delete flag to equal the given value.
	IsDeleted *bool

	// Stage requires the document to be at exactly this stage.
	Stage *Stage

	// StageNot requires the document to be at any other stage.
	StageNot *Stage

	// DeletedBefore requires deleted_at < the given time.
	DeletedBefore *time.Time

	// DeletedNotBefore requires deleted_at >= the given time.
	DeletedNotBefore *time.Time

	// LastEditedBefore requires last_edited < the given time.
	LastEditedBefore *time.Time
}

// Matches reports whether r satisfies every condition in p.
func (p Precondition) Matches(r *Report) bool {
	if p.IsDeleted != nil && r.IsDeleted != *p.IsDeleted {
		return false
	}
	if p.Stage != nil && r.Stage != *p.Stage {
		return false
	}
	if p.StageNot != nil && r.Stage == *p.StageNot {
		return false
	}
	if p.DeletedBefore != nil && (r.DeletedAt == nil || !r.DeletedAt.Before(*p.DeletedBefore)) {
		return false
	}
	if p.DeletedNotBefore != nil && (r.DeletedAt == nil || r.DeletedAt.Before(*p.DeletedNotBefore)) {
		return false
	}
	if p.LastEditedBefore != nil && !r.LastEdited.Before(*p.LastEditedBefore) {
		return false
	}
	return true
}

// Patch is a field-level update. Nil fields are left unchanged.
// MarkDeleted and ClearDeleted update is_deleted and deleted_at together so
// the pair can never disagree.
type Patch struct {
	Stage             *Stage
	Stage1CompletedAt *time.Time
	Stage2CompletedAt *time.Time

	// MarkDeleted sets is_deleted=true and deleted_at to the given time.
	MarkDeleted *time.Time

	// ClearDeleted sets is_deleted=false and removes deleted_at.
	ClearDeleted bool

	ExpirationReason *ExpirationReason
	LastEdited       *time.Time

	// Content keys replace the same top-level keys of the existing content.
	// Nested objects are replaced whole and nil values are kept as null.
	Content map[string]any
}

// Apply writes the patch onto r in place.
func (p Patch) Apply(r *Report) {
	if p.Stage != nil {
		r.Stage = *p.Stage
	}
	if p.Stage1CompletedAt != nil {
		r.Stage1CompletedAt = cloneTime(p.Stage1CompletedAt)
	}
	if p.Stage2CompletedAt != nil {
		r.Stage2CompletedAt = cloneTime(p.Stage2CompletedAt)
	}
	if p.MarkDeleted != nil {
		r.IsDeleted = true
		r.DeletedAt = cloneTime(p.MarkDeleted)
	}
	if p.ClearDeleted {
		r.IsDeleted = false
		r.DeletedAt = nil
	}
	if p.ExpirationReason != nil {
		r.ExpirationReason = *p.ExpirationReason
	}
	if p.LastEdited != nil {
		r.LastEdited = *p.LastEdited
	}
	if len(p.Content) > 0 {
		if r.Content == nil {
			r.Content = make(map[string]any, len(p.Content))
		}
		for k, v := range p.Content {
			r.Content[k] = cloneValue(v)
		}
	}
}

// MutationKind selects what a Mutation does.
type MutationKind int

const (
	// MutationUpdate applies Set to the document.
	MutationUpdate MutationKind = iota

	// MutationDelete removes the document permanently.
	MutationDelete
)

// String returns the operation name used in logs and errors.
func (k MutationKind) String() string {
	switch k {
	case MutationUpdate:
		return "update"
	case MutationDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Mutation is one conditional write inside a batch.
type Mutation struct {
	Kind MutationKind
	ID   string
	When Precondition
	Set  Patch
}

// SortField names a timestamp column usable for ordering and keyset paging.
type SortField string

const (
	SortByCreatedAt  SortField = "created_at"
	SortByLastEdited SortField = "last_edited"
	SortByDeletedAt  SortField = "deleted_at"
)

// Value returns the sort key of r for field f. A missing deleted_at sorts as
// the zero time.
func (f SortField) Value(r *Report) time.Time {
	switch f {
	case SortByLastEdited:
		return r.LastEdited
	case SortByDeletedAt:
		if r.DeletedAt == nil {
			return time.Time{}
		}
		return *r.DeletedAt
	default:
		return r.CreatedAt
	}
}

// Cursor is a keyset position: results resume strictly after (At, ID) in
// ascending (sort field, id) order.
type Cursor struct {
	At time.Time
	ID string
}

// CursorOf returns the cursor positioned at r for field f.
func CursorOf(r *Report, f SortField) *Cursor {
	return &Cursor{At: f.Value(r), ID: r.ID}
}

// Query filters reports. Results are ordered ascending by (SortBy, id).
type Query struct {
	// Scoping
	OwnerID  string
	BranchID string

	// Lifecycle filters
	IsDeleted        *bool
	StageNot         *Stage
	DeletedBefore    *time.Time
	LastEditedBefore *time.Time

	// Ordering and keyset pagination
	SortBy SortField
	After  *Cursor
	Limit  int
}

// OrderField returns the effective sort field.
func (q *Query) OrderField() SortField {
	if q.SortBy == "" {
		return SortByCreatedAt
	}
	return q.SortBy
}

// Matches reports whether r passes the query filters, including the cursor.
func (q *Query) Matches(r *Report) bool {
	if q.OwnerID != "" && r.OwnerID != q.OwnerID {
		return false
	}
	if q.BranchID != "" && r.BranchID != q.BranchID {
		return false
	}
	if q.IsDeleted != nil && r.IsDeleted != *q.IsDeleted {
		return false
	}
	if q.StageNot != nil && r.Stage == *q.StageNot {
		return false
	}
	if q.DeletedBefore != nil && (r.DeletedAt == nil || !r.DeletedAt.Before(*q.DeletedBefore)) {
		return false
	}
	if q.LastEditedBefore != nil && !r.LastEdited.Before(*q.LastEditedBefore) {
		return false
	}
	if q.After != nil {
		v := q.OrderField().Value(r)
		if v.Before(q.After.At) {
			return false
		}
		if v.Equal(q.After.At) && r.ID <= q.After.ID {
			return false
		}
	}
	return true
}

// Store is the persistent document store shared by the authoring flow and
// the lifecycle subsystem. Implementations must be safe for concurrent use
// and must apply each write atomically per document.
type Store interface {
	// Create inserts a new report. An existing id yields an error.
	Create(ctx context.Context, r *Report) error

	// Get returns the report with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (*Report, error)

	// Update applies set when when holds. It returns the updated report,
	// ErrNotFound, or ErrConditionFailed.
	Update(ctx context.Context, id string, when Precondition, set Patch) (*Report, error)

	// Delete removes the report when when holds. It returns ErrNotFound or
	// ErrConditionFailed when nothing was removed.
	Delete(ctx context.Context, id string, when Precondition) error

	// Query returns the reports matching q in (SortBy, id) order.
	Query(ctx context.Context, q *Query) ([]*Report, error)

	// Count returns the number of reports matching q, ignoring Limit.
	Count(ctx context.Context, q *Query) (int64, error)

	// ApplyBatch applies every mutation independently. The returned slice
	// is aligned with muts; a nil entry means the mutation was applied.
	// The error return is reserved for failures that prevented the whole
	// batch from being attempted.
	ApplyBatch(ctx context.Context, muts []Mutation) ([]error, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
