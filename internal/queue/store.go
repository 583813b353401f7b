// Package queue is the unified work queue: every alert, task, protocol
// step, medication event and check-in becomes one prioritizable Item with
// an explicit lifecycle and optimistic concurrency on transitions.
package queue

import "context"

// Store persists queue items and tasks. Implementations must make Update a
// compare-and-swap on the item version: the read-modify-write races of two
// coordinators claiming the same item are resolved here, not by callers.
type Store interface {
	// Insert adds a new item. The item's Version must be 1.
	Insert(ctx context.Context, it *Item) error

	// Get returns the item by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Item, error)

	// Update replaces the item iff the stored version equals expected, and
	// bumps Version to expected+1. On a version mismatch it returns the
	// current stored item together with ErrConcurrentModification.
	Update(ctx context.Context, it *Item, expected int) (*Item, error)

	// List returns all items for a subject, or every item when subjectID is
	// empty. Ordering is unspecified; callers sort.
	List(ctx context.Context, subjectID string) ([]Item, error)

	// InsertTask adds a task record.
	InsertTask(ctx context.Context, t *Task) error

	// GetTask returns the task by id, or ErrNotFound.
	GetTask(ctx context.Context, id string) (*Task, error)
}
