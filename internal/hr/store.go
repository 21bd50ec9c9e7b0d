package hr

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("hr: not found")

// Store is the shared HR dataset.
//
// All implementations must be safe for concurrent use and must return copies:
// mutating a returned value never changes the store.
type Store interface {
	// List returns all employees in insertion order.
	List(ctx context.Context) ([]Employee, error)

	// Get returns the employee with id, or [ErrNotFound].
	Get(ctx context.Context, id int) (Employee, error)

	// FindByName returns the employee whose name equals name, ignoring case
	// and surrounding whitespace, or [ErrNotFound].
	FindByName(ctx context.Context, name string) (Employee, error)

	// Add stores e under a fresh id (one more than the largest id in use, 1
	// for an empty store) and returns the stored record. Any id set on e is
	// ignored.
	Add(ctx context.Context, e Employee) (Employee, error)

	// Update replaces the employee with the same id. It returns [ErrNotFound]
	// and leaves the store untouched when no such employee exists.
	Update(ctx context.Context, e Employee) error

	// Modify applies fn to a copy of the employee with id and stores the
	// result, all under one write lock, so no other write can slip in between
	// reading and writing. When fn returns an error nothing is stored and the
	// error is returned as is. The id cannot be changed. Returns
	// [ErrNotFound] when no such employee exists.
	Modify(ctx context.Context, id int, fn func(*Employee) error) (Employee, error)

	// Delete removes the employee with id. It returns [ErrNotFound] when no
	// such employee exists.
	Delete(ctx context.Context, id int) error

	// Jobs returns all job openings.
	Jobs(ctx context.Context) ([]JobOpening, error)

	// Reviews returns the reviews of one employee, or of everybody when
	// employeeID is zero.
	Reviews(ctx context.Context, employeeID int) ([]PerformanceReview, error)

	// HiredCandidates returns recent hires.
	HiredCandidates(ctx context.Context) ([]HiredCandidate, error)
}
