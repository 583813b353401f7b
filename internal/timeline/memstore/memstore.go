// Package memstore provides an in-memory implementation of timeline.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/careops/internal/timeline"
)

// Store holds timeline entries in memory. Suitable for dev/testing.
type Store struct {
	mu        sync.RWMutex
	bySubject map[string][]timeline.Entry // append order, oldest first
	byRef     map[string]timeline.Entry   // ref ID -> latest entry
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		bySubject: make(map[string][]timeline.Entry),
		byRef:     make(map[string]timeline.Entry),
	}
}

// Append commits one entry, enforcing per-subject timestamp order.
func (s *Store) Append(_ context.Context, e *timeline.Entry) error {
	if err := timeline.Validate(e); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.bySubject[e.SubjectID]
	if n := len(entries); n > 0 && e.Timestamp.Before(entries[n-1].Timestamp) {
		return timeline.ErrDataIntegrityViolation
	}

	cp := *e
	s.bySubject[e.SubjectID] = append(entries, cp)
	if cp.RefID != "" {
		s.byRef[cp.RefID] = cp
	}
	return nil
}

// List returns entries for a subject, most recent first, resuming from
// cursor. The cursor is the ID of the last entry of the previous page;
// ULIDs sort in timestamp order so resuming by ID is stable even while new
// entries arrive at the head.
func (s *Store) List(_ context.Context, subjectID string, f timeline.Filter, cursor string, limit int) (*timeline.Page, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.bySubject[subjectID]
	page := &timeline.Page{}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if cursor != "" && e.ID >= cursor {
			continue
		}
		if !f.Matches(&e) {
			continue
		}
		if len(page.Entries) == limit {
			page.Next = page.Entries[limit-1].ID
			return page, nil
		}
		page.Entries = append(page.Entries, e)
	}
	return page, nil
}

// LastByRef returns the most recent entry referencing the given entity.
func (s *Store) LastByRef(_ context.Context, refID string) (*timeline.Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byRef[refID]
	if !ok {
		return nil, false, nil
	}
	cp := e
	return &cp, true, nil
}
