// Package outcome records the result of completed queue items and
// synthesizes follow-up tasks from a declarative rule table, closing the
// loop back into the queue.
package outcome

import (
	"errors"
	"time"

	"github.com/linnemanlabs/careops/internal/queue"
)

// Result is the closed set of outcome results.
type Result string

const (
	ResultSuccess Result = "success"
	ResultPartial Result = "partial"
	ResultFailed  Result = "failed"
)

// Valid reports whether r is a known result.
func (r Result) Valid() bool {
	switch r {
	case ResultSuccess, ResultPartial, ResultFailed:
		return true
	}
	return false
}

var (
	// ErrNotOwner is returned when the caller is not the item's assignee
	// and has no administrative override.
	ErrNotOwner = errors.New("outcome: item not owned by caller")

	// ErrValidation is returned when the supplied outcome does not satisfy
	// the template's schema.
	ErrValidation = errors.New("outcome: invalid outcome")

	// ErrNotFound is returned for lookups of unknown outcome ids.
	ErrNotFound = errors.New("outcome: not found")

	// ErrAlreadyCaptured is returned when an outcome already exists for
	// the item.
	ErrAlreadyCaptured = errors.New("outcome: already captured for item")
)

// EvidenceType classifies a piece of supporting evidence.
type EvidenceType string

const (
	EvidencePhoto     EvidenceType = "photo"
	EvidenceVideo     EvidenceType = "video"
	EvidenceNotes     EvidenceType = "notes"
	EvidenceDocuments EvidenceType = "documents"
	EvidenceTimestamp EvidenceType = "timestamp"
)

// Evidence is one supporting artifact attached to an outcome.
type Evidence struct {
	Type        EvidenceType `json:"type"`
	Ref         string       `json:"ref"`
	Description string       `json:"description,omitempty"`
	CapturedAt  time.Time    `json:"captured_at,omitempty"`
}

// Outcome is the immutable record of how a queue item concluded. Exactly
// one exists per completed item.
type Outcome struct {
	ID          string     `json:"id"`
	ItemID      string     `json:"item_id"`
	SubjectID   string     `json:"subject_id"`
	Template    Type       `json:"template"`
	Result      Result     `json:"result"`
	ActionTaken string     `json:"action_taken"`
	Notes       string     `json:"notes,omitempty"`
	Evidence    []Evidence `json:"evidence,omitempty"`
	RecordedBy  string     `json:"recorded_by"`
	RecordedAt  time.Time  `json:"recorded_at"`
}

// TaskTemplate is the shape of a generated follow-up task.
type TaskTemplate struct {
	Title            string
	Details          string
	Priority         queue.Severity
	EstimatedMinutes int
	Checklist        []queue.ChecklistItem
}

// FollowUpRule attaches a generated task to an outcome option.
type FollowUpRule struct {
	Task  TaskTemplate
	DueIn time.Duration
}
