package hr

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/jinzhu/copier"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store]. Its state
// lives for the lifetime of the process only.
type MemStore struct {
	mu        sync.RWMutex
	employees []Employee
	jobs      []JobOpening
	reviews   []PerformanceReview
	hired     []HiredCandidate
}

// NewMemStore returns a store holding a deep copy of ds.
func NewMemStore(ds Dataset) (*MemStore, error) {
	s := &MemStore{}
	if err := deepCopy(&s.employees, ds.Employees); err != nil {
		return nil, err
	}
	if err := deepCopy(&s.jobs, ds.Jobs); err != nil {
		return nil, err
	}
	if err := deepCopy(&s.reviews, ds.Reviews); err != nil {
		return nil, err
	}
	if err := deepCopy(&s.hired, ds.HiredCandidates); err != nil {
		return nil, err
	}
	return s, nil
}

// NewSeededStore returns a store holding the built-in demo dataset.
func NewSeededStore() *MemStore {
	s, err := NewMemStore(SeedDataset())
	if err != nil {
		// The seed is static data; copying it cannot fail.
		panic(err)
	}
	return s
}

// List implements [Store.List].
func (s *MemStore) List(ctx context.Context) ([]Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Employee
	if err := deepCopy(&out, s.employees); err != nil {
		return nil, err
	}
	return out, nil
}

// Get implements [Store.Get].
func (s *MemStore) Get(ctx context.Context, id int) (Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return Employee{}, ErrNotFound
	}
	return cloneEmployee(s.employees[i])
}

// FindByName implements [Store.FindByName].
func (s *MemStore) FindByName(ctx context.Context, name string) (Employee, error) {
	want := strings.TrimSpace(name)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.employees {
		if strings.EqualFold(e.Name, want) {
			return cloneEmployee(e)
		}
	}
	return Employee{}, ErrNotFound
}

// Add implements [Store.Add].
func (s *MemStore) Add(ctx context.Context, e Employee) (Employee, error) {
	stored, err := cloneEmployee(e)
	if err != nil {
		return Employee{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	maxID := 0
	for _, x := range s.employees {
		maxID = max(maxID, x.ID)
	}
	stored.ID = maxID + 1
	s.employees = append(s.employees, stored)
	return cloneEmployee(stored)
}

// Update implements [Store.Update].
func (s *MemStore) Update(ctx context.Context, e Employee) error {
	stored, err := cloneEmployee(e)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(e.ID)
	if i < 0 {
		return ErrNotFound
	}
	s.employees[i] = stored
	return nil
}

// Modify implements [Store.Modify].
func (s *MemStore) Modify(ctx context.Context, id int, fn func(*Employee) error) (Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Employee{}, ErrNotFound
	}
	next, err := cloneEmployee(s.employees[i])
	if err != nil {
		return Employee{}, err
	}
	if err := fn(&next); err != nil {
		return Employee{}, err
	}
	next.ID = id
	stored, err := cloneEmployee(next)
	if err != nil {
		return Employee{}, err
	}
	s.employees[i] = stored
	return next, nil
}

// Delete implements [Store.Delete].
func (s *MemStore) Delete(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	s.employees = slices.Delete(s.employees, i, i+1)
	return nil
}

// Jobs implements [Store.Jobs].
func (s *MemStore) Jobs(ctx context.Context) ([]JobOpening, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []JobOpening
	if err := deepCopy(&out, s.jobs); err != nil {
		return nil, err
	}
	return out, nil
}

// Reviews implements [Store.Reviews].
func (s *MemStore) Reviews(ctx context.Context, employeeID int) ([]PerformanceReview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]PerformanceReview, 0, len(s.reviews))
	for _, r := range s.reviews {
		if employeeID == 0 || r.EmployeeID == employeeID {
			out = append(out, r)
		}
	}
	return out, nil
}

// HiredCandidates implements [Store.HiredCandidates].
func (s *MemStore) HiredCandidates(ctx context.Context) ([]HiredCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []HiredCandidate
	if err := deepCopy(&out, s.hired); err != nil {
		return nil, err
	}
	return out, nil
}

// indexOf must be called with s.mu held.
func (s *MemStore) indexOf(id int) int {
	return slices.IndexFunc(s.employees, func(e Employee) bool { return e.ID == id })
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func cloneEmployee(e Employee) (Employee, error) {
	var out Employee
	if err := deepCopy(&out, &e); err != nil {
		return Employee{}, err
	}
	return out, nil
}

func deepCopy(dst, src any) error {
	if err := copier.CopyWithOption(dst, src, copier.Option{DeepCopy: true}); err != nil {
		return fmt.Errorf("hr: copy: %w", err)
	}
	return nil
}
