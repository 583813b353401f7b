package protocol

import "context"

// Store persists alerts and plan records. Plan records are a cache of the
// timeline-derived state; readers must go through Engine.Rebuild when
// correctness matters.
type Store interface {
	// PutAlert inserts or replaces an alert.
	PutAlert(ctx context.Context, a *Alert) error

	// GetAlert returns the alert by id, or ErrNotFound.
	GetAlert(ctx context.Context, id string) (*Alert, error)

	// PutPlan inserts or replaces a plan record.
	PutPlan(ctx context.Context, p *Plan) error

	// GetPlan returns the plan by id, or ErrNotFound.
	GetPlan(ctx context.Context, id string) (*Plan, error)
}
