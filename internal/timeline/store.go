// Package timeline provides the append-only audit log every other component
// commits its state transitions to. The timeline is the source of truth for
// recovery: a partially failed operation is reconstructed from the last
// committed entry, never from mutable state.
package timeline

import (
	"context"
	"errors"
)

// ErrDataIntegrityViolation is returned when a write would break a timeline
// invariant (missing subject, zero timestamp, out-of-order append). The write
// is rejected, never silently repaired.
var ErrDataIntegrityViolation = errors.New("timeline: data integrity violation")

// Page is one slice of a restartable reverse-chronological listing. Next is
// the cursor for the following page, empty when the listing is exhausted.
type Page struct {
	Entries []Entry
	Next    string
}

// Store is the persistence interface for timeline entries. Writers never
// conflict on existing entries, so implementations need no cross-entry
// locking, only an ordered append per subject.
type Store interface {
	// Append commits one entry. The entry's ID must be set by the caller
	// (ULIDs, so IDs sort in timestamp order) and its timestamp must not
	// precede the subject's latest committed entry.
	Append(ctx context.Context, e *Entry) error

	// List returns entries for a subject, most recent first. cursor is the
	// Next value from a previous page, or empty for the first page.
	List(ctx context.Context, subjectID string, f Filter, cursor string, limit int) (*Page, error)

	// LastByRef returns the most recent entry referencing the given entity,
	// for crash recovery and resumable timers.
	LastByRef(ctx context.Context, refID string) (*Entry, bool, error)
}

// Validate checks the invariants Append enforces regardless of backend.
func Validate(e *Entry) error {
	switch {
	case e == nil:
		return ErrDataIntegrityViolation
	case e.ID == "":
		return errors.Join(ErrDataIntegrityViolation, errors.New("missing id"))
	case e.SubjectID == "":
		return errors.Join(ErrDataIntegrityViolation, errors.New("missing subject id"))
	case e.EventType == "":
		return errors.Join(ErrDataIntegrityViolation, errors.New("missing event type"))
	case e.Timestamp.IsZero():
		return errors.Join(ErrDataIntegrityViolation, errors.New("zero timestamp"))
	}
	return nil
}
