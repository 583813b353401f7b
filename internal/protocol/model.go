// Package protocol runs the guided response state machine for urgent
// alerts: SafetyCheck -> RapidAssessment -> ActionPlan -> OutcomeCapture,
// with a single non-linear edge to EmergencyServices when a critical flag
// trips.
package protocol

import (
	"errors"
	"time"

	"github.com/linnemanlabs/careops/internal/queue"
)

// Type selects which question set a plan runs.
type Type string

const (
	TypeFall      Type = "fall"
	TypeInjury    Type = "injury"
	TypeChestPain Type = "chest_pain"
	TypeConfusion Type = "confusion"
)

// State is a plan's position in the machine.
type State string

const (
	StateSafetyCheck       State = "safety_check"
	StateRapidAssessment   State = "rapid_assessment"
	StateActionPlan        State = "action_plan"
	StateOutcomeCapture    State = "outcome_capture"
	StateEmergencyServices State = "emergency_services"
	StateClosed            State = "closed"
)

// Terminal reports whether no further advance is possible from s.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateEmergencyServices
}

// QuestionType constrains how a question's response is validated.
type QuestionType string

const (
	QuestionYesNo          QuestionType = "yes_no"
	QuestionScale          QuestionType = "scale"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionText           QuestionType = "text"
)

// Question is one prompt within a step.
type Question struct {
	ID           string       `json:"id"`
	Text         string       `json:"text"`
	Type         QuestionType `json:"type"`
	Required     bool         `json:"required"`
	CriticalFlag bool         `json:"critical_flag,omitempty"`
	Options      []string     `json:"options,omitempty"`
}

// Step groups a state's questions with the rules for leaving it.
type Step struct {
	State       State        `json:"state"`
	Title       string       `json:"title"`
	Questions   []Question   `json:"questions"`
	Transitions []Transition `json:"transitions"`
}

// Transition maps a satisfied condition to the next state. Transitions are
// evaluated in order; the first match wins.
type Transition struct {
	When Condition `json:"when"`
	Next State     `json:"next"`
}

// Template is the full question plan for one protocol type.
type Template struct {
	Type  Type   `json:"type"`
	Steps []Step `json:"steps"`
}

// Alert is an incoming signal from the external analysis collaborator. The
// engine treats the analysis payload as opaque.
type Alert struct {
	ID         string         `json:"id"`
	SubjectID  string         `json:"subject_id"`
	Severity   queue.Severity `json:"severity"`
	Type       string         `json:"type"`
	Concerns   []string       `json:"concerns,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	Status     AlertStatus    `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
}

// AlertStatus is the alert lifecycle.
type AlertStatus string

const (
	AlertNew      AlertStatus = "new"
	AlertTriaging AlertStatus = "triaging"
	AlertResolved AlertStatus = "resolved"
)

// Plan is one running instance of a protocol, 1:1 with its alert. The
// authoritative step position lives in the timeline; the record here is a
// read cache rebuilt on every advance.
type Plan struct {
	ID          string         `json:"id"`
	AlertID     string         `json:"alert_id"`
	SubjectID   string         `json:"subject_id"`
	Type        Type           `json:"type"`
	State       State          `json:"state"`
	Responses   map[string]any `json:"responses"`
	Action      *ActionPlan    `json:"action,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at,omitempty"`

	// appliedOps maps advance operation ids to the state they produced,
	// populated by Engine.Rebuild for idempotent replays.
	appliedOps map[string]State
}

// Recommendation is the closed set of action plan outcomes.
type Recommendation string

const (
	RecommendCallEmergency Recommendation = "call_emergency"
	RecommendUrgentCare    Recommendation = "urgent_care"
	RecommendNurseLine     Recommendation = "nurse_line"
	RecommendMonitor       Recommendation = "monitor"
)

// ActionPlan is the pure-function output of the ActionPlan step: a
// recommendation, a call script, and templated follow-up work.
type ActionPlan struct {
	Recommendation Recommendation `json:"recommendation"`
	CallScript     string         `json:"call_script"`
	UrgencyLevel   int            `json:"urgency_level"` // 1-10
	Timeframe      string         `json:"timeframe"`
	FollowUps      []FollowUpTask `json:"follow_ups,omitempty"`
}

// FollowUpTask is a task template attached to an action plan.
type FollowUpTask struct {
	Title            string                `json:"title"`
	Details          string                `json:"details"`
	Priority         queue.Severity        `json:"priority"`
	EstimatedMinutes int                   `json:"estimated_minutes"`
	Checklist        []queue.ChecklistItem `json:"checklist,omitempty"`
	DueInHours       int                   `json:"due_in_hours"`
}

var (
	// ErrInvalidTransition is returned when an advance call's input does not
	// satisfy the current step's schema, or the plan is already terminal.
	ErrInvalidTransition = errors.New("protocol: invalid transition")

	// ErrUnknownProtocol is returned for alert types with no template.
	ErrUnknownProtocol = errors.New("protocol: unknown protocol type")

	// ErrNotFound is returned for lookups of unknown plan or alert ids.
	ErrNotFound = errors.New("protocol: not found")
)
