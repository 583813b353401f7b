// Package memstore provides an in-memory implementation of directory.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/careops/internal/directory"
)

// Store holds people in memory. Suitable for dev/testing.
type Store struct {
	mu     sync.RWMutex
	people map[string]*directory.Person
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{people: make(map[string]*directory.Person)}
}

// Put inserts or replaces a person record.
func (s *Store) Put(_ context.Context, p *directory.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.people[p.ID] = &cp
	return nil
}

// Get retrieves a person by id. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*directory.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.people[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// ListForSubject returns every person in the subject's circle.
func (s *Store) ListForSubject(_ context.Context, subjectID string) ([]directory.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []directory.Person
	for _, p := range s.people {
		if p.SubjectID == subjectID {
			out = append(out, *p)
		}
	}
	return out, nil
}
