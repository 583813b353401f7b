// Package memstore provides an in-memory implementation of outcome.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/careops/internal/outcome"
)

// Store holds outcome records in memory. Suitable for dev/testing.
type Store struct {
	mu     sync.RWMutex
	byID   map[string]*outcome.Outcome
	byItem map[string]*outcome.Outcome
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		byID:   make(map[string]*outcome.Outcome),
		byItem: make(map[string]*outcome.Outcome),
	}
}

// Put commits an outcome, enforcing write-once per item.
func (s *Store) Put(_ context.Context, o *outcome.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byItem[o.ItemID]; ok {
		return outcome.ErrAlreadyCaptured
	}
	cp := *o
	s.byID[o.ID] = &cp
	s.byItem[o.ItemID] = &cp
	return nil
}

// Get retrieves an outcome by id. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*outcome.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.byID[id]
	if !ok {
		return nil, outcome.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

// GetByItem retrieves the outcome recorded for a queue item. Returns a copy.
func (s *Store) GetByItem(_ context.Context, itemID string) (*outcome.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.byItem[itemID]
	if !ok {
		return nil, outcome.ErrNotFound
	}
	cp := *o
	return &cp, nil
}
