// Package reporttest provides store helpers for tests of packages built on
// report.Store.
package reporttest

import (
	"context"
	"errors"
	"sync"

	"mercator-hq/reportkeeper/pkg/report"
)

// ErrInjected is the cause of every failure produced by FaultyStore.
var ErrInjected = errors.New("injected write failure")

// FaultyStore wraps a store and fails writes to selected report ids. It also
// records the size of every ApplyBatch call.
type FaultyStore struct {
	report.Store

	mu          sync.Mutex
	failIDs     map[string]bool
	failQueries bool
	batchSizes  []int

	// BeforeBatch, when set, runs before each ApplyBatch is forwarded. Tests
	// use it to simulate a concurrent writer.
	BeforeBatch func(muts []report.Mutation)
}

// NewFaultyStore wraps inner.
func NewFaultyStore(inner report.Store) *FaultyStore {
	return &FaultyStore{Store: inner, failIDs: make(map[string]bool)}
}

// FailWrites makes every write to the given ids fail with ErrInjected.
func (s *FaultyStore) FailWrites(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.failIDs[id] = true
	}
}

// FailQueries makes Query fail until called with false.
func (s *FaultyStore) FailQueries(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failQueries = fail
}

// BatchSizes returns the size of each ApplyBatch call so far.
func (s *FaultyStore) BatchSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.batchSizes...)
}

func (s *FaultyStore) failing(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failIDs[id]
}

// Query fails when FailQueries(true) is in effect.
func (s *FaultyStore) Query(ctx context.Context, q *report.Query) ([]*report.Report, error) {
	s.mu.Lock()
	fail := s.failQueries
	s.mu.Unlock()
	if fail {
		return nil, report.NewStorageError("faulty", "query", ErrInjected)
	}
	return s.Store.Query(ctx, q)
}

// Update fails for selected ids.
func (s *FaultyStore) Update(ctx context.Context, id string, when report.Precondition, set report.Patch) (*report.Report, error) {
	if s.failing(id) {
		return nil, report.NewStorageError("faulty", "update", ErrInjected)
	}
	return s.Store.Update(ctx, id, when, set)
}

// Delete fails for selected ids.
func (s *FaultyStore) Delete(ctx context.Context, id string, when report.Precondition) error {
	if s.failing(id) {
		return report.NewStorageError("faulty", "delete", ErrInjected)
	}
	return s.Store.Delete(ctx, id, when)
}

// ApplyBatch forwards the healthy mutations and fails the selected ones.
func (s *FaultyStore) ApplyBatch(ctx context.Context, muts []report.Mutation) ([]error, error) {
	s.mu.Lock()
	s.batchSizes = append(s.batchSizes, len(muts))
	hook := s.BeforeBatch
	s.mu.Unlock()

	if hook != nil {
		hook(muts)
	}

	errs := make([]error, len(muts))
	var forward []report.Mutation
	var positions []int
	for i, m := range muts {
		if s.failing(m.ID) {
			errs[i] = report.NewStorageError("faulty", m.Kind.String(), ErrInjected)
			continue
		}
		forward = append(forward, m)
		positions = append(positions, i)
	}

	if len(forward) > 0 {
		innerErrs, err := s.Store.ApplyBatch(ctx, forward)
		if err != nil {
			return nil, err
		}
		for j, i := range positions {
			errs[i] = innerErrs[j]
		}
	}
	return errs, nil
}
