package assign

import (
	"context"

	"github.com/linnemanlabs/careops/internal/queue"
)

// Notification is a single escalation message addressed to one member of
// the care circle.
type Notification struct {
	PersonID  string         `json:"person_id"`
	Contact   string         `json:"contact"`
	SubjectID string         `json:"subject_id"`
	ItemID    string         `json:"item_id"`
	Severity  queue.Severity `json:"severity"`
	Message   string         `json:"message"`
}

// Notifier delivers escalation notifications. Implementations must be safe
// for concurrent use.
type Notifier interface {
	Send(ctx context.Context, n *Notification) error
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) Send(context.Context, *Notification) error { return nil }
