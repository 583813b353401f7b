package queue

import (
	"errors"
	"time"
)

// Severity is the four-level urgency scale shared by alerts and queue items.
type Severity string

const (
	SeverityUrgent Severity = "urgent"
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Weight maps severity onto [0,1] for priority scoring.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityUrgent:
		return 1.0
	case SeverityHigh:
		return 0.75
	case SeverityMedium:
		return 0.5
	case SeverityLow:
		return 0.25
	default:
		return 0.25
	}
}

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityUrgent, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Kind is the closed set of work item types the queue unifies.
type Kind string

const (
	KindAlert      Kind = "alert"
	KindTask       Kind = "task"
	KindMedication Kind = "medication"
	KindCheckin    Kind = "checkin"
	KindFollowup   Kind = "followup"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindAlert, KindTask, KindMedication, KindCheckin, KindFollowup:
		return true
	}
	return false
}

// Status tracks where a queue item is in its lifecycle.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusSnoozed    Status = "snoozed"
	StatusEscalated  Status = "escalated"
)

// RiskLevel is the subject's standing risk classification, supplied by the
// care profile and folded into priority scoring.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

func (r RiskLevel) weight() float64 {
	switch r {
	case RiskHigh:
		return 1.0
	case RiskMedium:
		return 0.5
	default:
		return 0.25
	}
}

var (
	// ErrInvalidStateTransition is returned when a transition edge is not in
	// the state table. The caller must supply a valid edge; there is no
	// force path through this API.
	ErrInvalidStateTransition = errors.New("queue: invalid state transition")

	// ErrConcurrentModification is returned when the expected version does
	// not match the stored one: another actor already transitioned the item.
	// The caller re-reads and re-decides.
	ErrConcurrentModification = errors.New("queue: concurrent modification")

	// ErrNotFound is returned for lookups of unknown item ids.
	ErrNotFound = errors.New("queue: item not found")

	// ErrDanglingRef is returned when an item references a Task or Plan that
	// does not exist. Referential integrity is enforced at enqueue, never
	// repaired after the fact.
	ErrDanglingRef = errors.New("queue: item references nonexistent task or plan")
)

// Item is the unified, prioritizable representation of any alert, task,
// plan step, medication event or check-in. One item references at most one
// Task or one Plan step, by id, never by embedding.
type Item struct {
	ID               string    `json:"id"`
	SubjectID        string    `json:"subject_id"`
	Kind             Kind      `json:"kind"`
	Category         string    `json:"category,omitempty"` // alert/task type: fall, medication, cognitive, safety, ...
	Severity         Severity  `json:"severity"`
	Title            string    `json:"title"`
	DueAt            time.Time `json:"due_at,omitempty"`
	EstimatedMinutes int       `json:"estimated_minutes,omitempty"`
	AssignedTo       string    `json:"assigned_to,omitempty"`
	Status           Status    `json:"status"`
	EscalationCount  int       `json:"escalation_count"`
	Version          int       `json:"version"`
	SubjectRisk      RiskLevel `json:"subject_risk,omitempty"`
	TaskID           string    `json:"task_id,omitempty"`
	PlanID           string    `json:"plan_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Task is a single unit of assignable work. Once enqueued it is 1:1 with a
// queue item that carries its scheduling state.
type Task struct {
	ID               string          `json:"id"`
	ParentID         string          `json:"parent_id,omitempty"` // owning Alert or Plan
	SubjectID        string          `json:"subject_id"`
	Title            string          `json:"title"`
	Details          string          `json:"details,omitempty"`
	Category         string          `json:"category,omitempty"`
	Priority         Severity        `json:"priority"`
	DueAt            time.Time       `json:"due_at,omitempty"`
	EstimatedMinutes int             `json:"estimated_minutes,omitempty"`
	Checklist        []ChecklistItem `json:"checklist,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// ChecklistItem is one step of a task's checklist.
type ChecklistItem struct {
	Text     string `json:"text"`
	Required bool   `json:"required"`
	Done     bool   `json:"done,omitempty"`
}

// validEdges is the closed transition table. Reopening a completed item is
// deliberately absent: that goes through the administrative override path.
// New -> Escalated is the timer path for items nobody ever claimed.
var validEdges = map[Status][]Status{
	StatusNew:        {StatusInProgress, StatusEscalated},
	StatusInProgress: {StatusCompleted, StatusSnoozed, StatusEscalated},
	StatusSnoozed:    {StatusNew},
	StatusEscalated:  {StatusInProgress},
}

// CanTransition reports whether from -> to is a valid edge.
func CanTransition(from, to Status) bool {
	for _, next := range validEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}
