// Package memstore provides an in-memory implementation of protocol.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/careops/internal/protocol"
)

// Store holds alerts and plan records in memory. Suitable for dev/testing.
type Store struct {
	mu     sync.RWMutex
	alerts map[string]*protocol.Alert
	plans  map[string]*protocol.Plan
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		alerts: make(map[string]*protocol.Alert),
		plans:  make(map[string]*protocol.Plan),
	}
}

// PutAlert inserts or replaces an alert.
func (s *Store) PutAlert(_ context.Context, a *protocol.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.alerts[a.ID] = &cp
	return nil
}

// GetAlert retrieves an alert by id. Returns a copy.
func (s *Store) GetAlert(_ context.Context, id string) (*protocol.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, protocol.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// PutPlan inserts or replaces a plan record.
func (s *Store) PutPlan(_ context.Context, p *protocol.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.plans[p.ID] = &cp
	return nil
}

// GetPlan retrieves a plan by id. Returns a copy.
func (s *Store) GetPlan(_ context.Context, id string) (*protocol.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, protocol.ErrNotFound
	}
	cp := *p
	return &cp, nil
}
