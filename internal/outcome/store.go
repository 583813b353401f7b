package outcome

import "context"

// Store is the persistence interface for outcome records. Outcomes are
// write-once: implementations must reject a second write for the same item.
type Store interface {
	// Put commits an outcome. Fails with ErrAlreadyCaptured if one exists
	// for the item.
	Put(ctx context.Context, o *Outcome) error

	// Get retrieves an outcome by id.
	Get(ctx context.Context, id string) (*Outcome, error)

	// GetByItem retrieves the outcome recorded for a queue item.
	GetByItem(ctx context.Context, itemID string) (*Outcome, error)
}
