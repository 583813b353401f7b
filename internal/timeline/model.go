package timeline

import "time"

// EventType classifies what lifecycle transition an Entry records.
type EventType string

const (
	EventAlertReceived        EventType = "alert_received"
	EventPlanCreated          EventType = "plan_created"
	EventPlanStepAdvanced     EventType = "plan_step_advanced"
	EventPlanEmergency        EventType = "plan_emergency"
	EventPlanCompleted        EventType = "plan_completed"
	EventQueueItemCreated     EventType = "queue_item_created"
	EventQueueItemTransition  EventType = "queue_item_transitioned"
	EventItemAssigned         EventType = "item_assigned"
	EventEscalationStarted    EventType = "escalation_started"
	EventEscalationTriggered  EventType = "escalation_triggered"
	EventEscalationBroadcast  EventType = "escalation_broadcast"
	EventEscalationFailed     EventType = "escalation_failed"
	EventOutcomeCaptured      EventType = "outcome_captured"
	EventFollowupCreated      EventType = "followup_created"
	EventItemReopenedByAdmin  EventType = "queue_item_reopened_admin"
	EventPersonDeactivated    EventType = "person_deactivated"
	EventEmergencyCallStarted EventType = "emergency_call_initiated"
)

// Entry is one immutable audit record of a state change. Entries are only
// ever appended; nothing in the system updates or deletes one.
type Entry struct {
	ID        string         `json:"id"`
	SubjectID string         `json:"subject_id"`
	EventType EventType      `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	ActorID   string         `json:"actor_id,omitempty"`
	RefID     string         `json:"ref_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Filter narrows a timeline listing. Zero value matches everything.
type Filter struct {
	EventTypes []EventType
	RefID      string
	Since      time.Time
	Until      time.Time
}

// Matches reports whether an entry passes the filter.
func (f Filter) Matches(e *Entry) bool {
	if len(f.EventTypes) > 0 {
		found := false
		for _, t := range f.EventTypes {
			if e.EventType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.RefID != "" && e.RefID != f.RefID {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	return true
}
