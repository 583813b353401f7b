// Package memstore provides an in-memory implementation of queue.Store.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/linnemanlabs/careops/internal/queue"
)

// Store holds queue items and tasks in memory. Suitable for dev/testing.
// Update is a compare-and-swap under the store mutex, matching the
// contract the Postgres store enforces with a conditional UPDATE.
type Store struct {
	mu    sync.RWMutex
	items map[string]*queue.Item
	tasks map[string]*queue.Task
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		items: make(map[string]*queue.Item),
		tasks: make(map[string]*queue.Task),
	}
}

// Insert adds a new item. Fails if the id already exists.
func (s *Store) Insert(_ context.Context, it *queue.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[it.ID]; ok {
		return fmt.Errorf("queue: duplicate item id %s", it.ID)
	}
	cp := *it
	s.items[it.ID] = &cp
	return nil
}

// Get retrieves an item by id. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*queue.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return nil, queue.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

// Update replaces the item iff the stored version equals expected. On a
// mismatch it returns the current stored item with ErrConcurrentModification.
func (s *Store) Update(_ context.Context, it *queue.Item, expected int) (*queue.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[it.ID]
	if !ok {
		return nil, queue.ErrNotFound
	}
	if cur.Version != expected {
		cp := *cur
		return &cp, queue.ErrConcurrentModification
	}
	cp := *it
	cp.Version = expected + 1
	s.items[it.ID] = &cp
	out := cp
	return &out, nil
}

// List returns all items for a subject, or everything when subjectID is empty.
func (s *Store) List(_ context.Context, subjectID string) ([]queue.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]queue.Item, 0, len(s.items))
	for _, it := range s.items {
		if subjectID != "" && it.SubjectID != subjectID {
			continue
		}
		out = append(out, *it)
	}
	return out, nil
}

// InsertTask adds a task record.
func (s *Store) InsertTask(_ context.Context, t *queue.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; ok {
		return fmt.Errorf("queue: duplicate task id %s", t.ID)
	}
	cp := *t
	s.tasks[t.ID] = &cp
	return nil
}

// GetTask retrieves a task by id. Returns a copy.
func (s *Store) GetTask(_ context.Context, id string) (*queue.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, queue.ErrNotFound
	}
	cp := *t
	return &cp, nil
}
