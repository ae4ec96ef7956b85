package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mercator-hq/reportkeeper/pkg/report"
)

// MemoryStore implements report.Store using an in-memory map.
// It is intended for tests and single-process demos.
type MemoryStore struct {
	reports map[string]*report.Report
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports: make(map[string]*report.Report),
	}
}

// Create stores a copy of r.
func (s *MemoryStore) Create(ctx context.Context, r *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[r.ID]; exists {
		return report.NewStorageError("memory", "create", fmt.Errorf("report %s: %w", r.ID, report.ErrAlreadyExists))
	}
	s.reports[r.ID] = r.Clone()
	return nil
}

// Get returns a copy of the stored report.
func (s *MemoryStore) Get(ctx context.Context, id string) (*report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, report.ErrNotFound
	}
	return r.Clone(), nil
}

// Update applies set to the report when the precondition holds.
func (s *MemoryStore) Update(ctx context.Context, id string, when report.Precondition, set report.Patch) (*report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateLocked(id, when, set)
}

func (s *MemoryStore) updateLocked(id string, when report.Precondition, set report.Patch) (*report.Report, error) {
	r, ok := s.reports[id]
	if !ok {
		return nil, report.ErrNotFound
	}
	if !when.Matches(r) {
		return nil, report.ErrConditionFailed
	}
	set.Apply(r)
	return r.Clone(), nil
}

// Delete removes the report when the precondition holds.
func (s *MemoryStore) Delete(ctx context.Context, id string, when report.Precondition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleteLocked(id, when)
}

func (s *MemoryStore) deleteLocked(id string, when report.Precondition) error {
	r, ok := s.reports[id]
	if !ok {
		return report.ErrNotFound
	}
	if !when.Matches(r) {
		return report.ErrConditionFailed
	}
	delete(s.reports, id)
	return nil
}

// Query returns matching reports ordered by (sort field, id).
func (s *MemoryStore) Query(ctx context.Context, q *report.Query) ([]*report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	field := q.OrderField()
	results := []*report.Report{}
	for _, r := range s.reports {
		if q.Matches(r) {
			results = append(results, r.Clone())
		}
	}

	sort.Slice(results, func(i, j int) bool {
		vi, vj := field.Value(results[i]), field.Value(results[j])
		if !vi.Equal(vj) {
			return vi.Before(vj)
		}
		return results[i].ID < results[j].ID
	})

	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// Count returns the number of matching reports.
func (s *MemoryStore) Count(ctx context.Context, q *report.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, r := range s.reports {
		if q.Matches(r) {
			count++
		}
	}
	return count, nil
}

// ApplyBatch applies each mutation independently under a single lock.
func (s *MemoryStore) ApplyBatch(ctx context.Context, muts []report.Mutation) ([]error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	errs := make([]error, len(muts))
	for i, m := range muts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch m.Kind {
		case report.MutationUpdate:
			_, errs[i] = s.updateLocked(m.ID, m.When, m.Set)
		case report.MutationDelete:
			errs[i] = s.deleteLocked(m.ID, m.When)
		default:
			errs[i] = fmt.Errorf("unknown mutation kind %d", m.Kind)
		}
	}
	return errs, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of stored reports.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}
