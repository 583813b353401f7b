package directory

import "context"

// Store persists care circle membership.
type Store interface {
	// Put inserts or replaces a person record.
	Put(ctx context.Context, p *Person) error

	// Get returns the person by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Person, error)

	// ListForSubject returns every person in the subject's care circle,
	// active or not. Callers filter on Active.
	ListForSubject(ctx context.Context, subjectID string) ([]Person, error)
}
