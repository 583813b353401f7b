package outcome

import (
	"time"

	"github.com/linnemanlabs/careops/internal/queue"
)

// Type identifies which outcome template governs an item.
type Type string

const (
	TypeMedication  Type = "medication"
	TypeSafety      Type = "safety"
	TypeAppointment Type = "appointment"
	TypeWellness    Type = "wellness"
	TypeTriage      Type = "triage"
	TypeGeneral     Type = "general"
)

// Option is one allowed outcome for a template, mapped to a result and
// optionally to a generated follow-up task.
type Option struct {
	Label    string
	Result   Result
	FollowUp *FollowUpRule
}

// Template defines the schema an outcome must satisfy: the allowed
// options, the evidence types accepted, and the follow-up rule table.
type Template struct {
	Type          Type
	Title         string
	Description   string
	Options       []Option
	EvidenceTypes []EvidenceType
}

// TemplateFor selects the template governing an item from its kind and
// category. Everything without a specific template gets the general one.
func TemplateFor(it *queue.Item) *Template {
	if it.Kind == queue.KindMedication || it.Category == "medication" {
		return templates[TypeMedication]
	}
	switch it.Category {
	case "safety":
		return templates[TypeSafety]
	case "appointment":
		return templates[TypeAppointment]
	case "checkin", "wellness":
		return templates[TypeWellness]
	case "fall", "injury", "chest_pain", "confusion":
		return templates[TypeTriage]
	}
	if it.Kind == queue.KindAlert {
		return templates[TypeTriage]
	}
	if it.Kind == queue.KindCheckin {
		return templates[TypeWellness]
	}
	return templates[TypeGeneral]
}

// Templates returns the full template library, for the API surface.
func Templates() []*Template {
	out := make([]*Template, 0, len(templateOrder))
	for _, tt := range templateOrder {
		out = append(out, templates[tt])
	}
	return out
}

// option resolves a label to its option, nil if the label is not allowed.
func (t *Template) option(label string) *Option {
	for i := range t.Options {
		if t.Options[i].Label == label {
			return &t.Options[i]
		}
	}
	return nil
}

// defaultOption picks the first option carrying the given result, for
// callers that report a bare result without choosing a specific option.
func (t *Template) defaultOption(r Result) *Option {
	for i := range t.Options {
		if t.Options[i].Result == r {
			return &t.Options[i]
		}
	}
	return nil
}

// acceptsEvidence reports whether the template allows the evidence type.
func (t *Template) acceptsEvidence(et EvidenceType) bool {
	for _, allowed := range t.EvidenceTypes {
		if allowed == et {
			return true
		}
	}
	return false
}

var templateOrder = []Type{
	TypeMedication, TypeSafety, TypeAppointment, TypeWellness, TypeTriage, TypeGeneral,
}

var templates = map[Type]*Template{
	TypeMedication: {
		Type:        TypeMedication,
		Title:       "Medication Verification Outcome",
		Description: "Document the outcome of a medication verification task",
		Options: []Option{
			{Label: "All doses verified and taken", Result: ResultSuccess},
			{
				Label:  "Some doses missed",
				Result: ResultFailed,
				FollowUp: &FollowUpRule{
					DueIn: 4 * time.Hour,
					Task: TaskTemplate{
						Title:            "Follow up on missed medication doses",
						Details:          "Contact the subject to understand why doses were missed and reschedule",
						Priority:         queue.SeverityHigh,
						EstimatedMinutes: 15,
						Checklist: []queue.ChecklistItem{
							{Text: "Contact subject about missed doses", Required: true},
							{Text: "Understand reason for missing doses", Required: true},
							{Text: "Reschedule missed doses if appropriate", Required: true},
							{Text: "Document reason in notes"},
						},
					},
				},
			},
			{
				Label:  "Doses refused",
				Result: ResultFailed,
				FollowUp: &FollowUpRule{
					DueIn: 2 * time.Hour,
					Task: TaskTemplate{
						Title:            "Investigate medication refusal",
						Details:          "Understand why the subject is refusing medication and escalate if needed",
						Priority:         queue.SeverityHigh,
						EstimatedMinutes: 20,
						Checklist: []queue.ChecklistItem{
							{Text: "Ask about side effects or concerns", Required: true},
							{Text: "Contact primary care physician if needed", Required: true},
							{Text: "Document refusal reason", Required: true},
						},
					},
				},
			},
			{
				Label:  "Unable to verify",
				Result: ResultPartial,
				FollowUp: &FollowUpRule{
					DueIn: time.Hour,
					Task: TaskTemplate{
						Title:            "Escalate medication verification issue",
						Details:          "Unable to verify medication status, escalate to the primary caregiver",
						Priority:         queue.SeverityUrgent,
						EstimatedMinutes: 10,
						Checklist: []queue.ChecklistItem{
							{Text: "Contact primary caregiver", Required: true},
							{Text: "Provide context about verification issue", Required: true},
						},
					},
				},
			},
			{Label: "Medication not available", Result: ResultPartial},
		},
		EvidenceTypes: []EvidenceType{EvidencePhoto, EvidenceNotes, EvidenceTimestamp},
	},

	TypeSafety: {
		Type:        TypeSafety,
		Title:       "Safety Check Outcome",
		Description: "Document the outcome of a safety check task",
		Options: []Option{
			{Label: "All safety checks passed", Result: ResultSuccess},
			{
				Label:  "Minor safety issues found",
				Result: ResultPartial,
				FollowUp: &FollowUpRule{
					DueIn: 24 * time.Hour,
					Task: TaskTemplate{
						Title:            "Address minor safety issues",
						Details:          "Implement solutions for identified minor safety concerns",
						Priority:         queue.SeverityMedium,
						EstimatedMinutes: 30,
						Checklist: []queue.ChecklistItem{
							{Text: "Identify specific safety issues", Required: true},
							{Text: "Implement corrective measures", Required: true},
							{Text: "Verify improvements", Required: true},
						},
					},
				},
			},
			{
				Label:  "Major safety concerns identified",
				Result: ResultFailed,
				FollowUp: &FollowUpRule{
					DueIn: 2 * time.Hour,
					Task: TaskTemplate{
						Title:            "Address major safety concerns",
						Details:          "Urgent action needed to address major safety concerns",
						Priority:         queue.SeverityUrgent,
						EstimatedMinutes: 60,
						Checklist: []queue.ChecklistItem{
							{Text: "Document all safety concerns", Required: true},
							{Text: "Contact family members", Required: true},
							{Text: "Implement immediate safety measures", Required: true},
							{Text: "Consider professional assessment", Required: true},
						},
					},
				},
			},
			{
				Label:  "Immediate intervention required",
				Result: ResultFailed,
				FollowUp: &FollowUpRule{
					DueIn: 30 * time.Minute,
					Task: TaskTemplate{
						Title:            "Emergency safety intervention",
						Details:          "Immediate action required for a critical safety issue",
						Priority:         queue.SeverityUrgent,
						EstimatedMinutes: 15,
						Checklist: []queue.ChecklistItem{
							{Text: "Ensure subject safety immediately", Required: true},
							{Text: "Contact emergency services if needed", Required: true},
							{Text: "Notify all family members", Required: true},
						},
					},
				},
			},
		},
		EvidenceTypes: []EvidenceType{EvidencePhoto, EvidenceVideo, EvidenceNotes, EvidenceTimestamp},
	},

	TypeAppointment: {
		Type:        TypeAppointment,
		Title:       "Medical Appointment Outcome",
		Description: "Document the outcome of a medical appointment",
		Options: []Option{
			{
				Label:  "Appointment completed successfully",
				Result: ResultSuccess,
				FollowUp: &FollowUpRule{
					DueIn: 4 * time.Hour,
					Task: TaskTemplate{
						Title:            "Document appointment results",
						Details:          "Collect and document results from the completed appointment",
						Priority:         queue.SeverityMedium,
						EstimatedMinutes: 20,
						Checklist: []queue.ChecklistItem{
							{Text: "Collect appointment summary", Required: true},
							{Text: "Document any new medications or instructions", Required: true},
							{Text: "Schedule any recommended follow-ups", Required: true},
						},
					},
				},
			},
			{
				Label:  "Appointment rescheduled",
				Result: ResultPartial,
				FollowUp: &FollowUpRule{
					DueIn: 24 * time.Hour,
					Task: TaskTemplate{
						Title:            "Confirm rescheduled appointment",
						Details:          "Confirm the new appointment date and time with the subject",
						Priority:         queue.SeverityMedium,
						EstimatedMinutes: 10,
						Checklist: []queue.ChecklistItem{
							{Text: "Confirm new appointment date and time", Required: true},
							{Text: "Update calendar", Required: true},
							{Text: "Arrange transportation if needed", Required: true},
						},
					},
				},
			},
			{Label: "Appointment cancelled", Result: ResultFailed},
			{
				Label:  "Subject refused to attend",
				Result: ResultFailed,
				FollowUp: &FollowUpRule{
					DueIn: 4 * time.Hour,
					Task: TaskTemplate{
						Title:            "Follow up on appointment refusal",
						Details:          "Understand why the subject refused the appointment and escalate if needed",
						Priority:         queue.SeverityHigh,
						EstimatedMinutes: 20,
						Checklist: []queue.ChecklistItem{
							{Text: "Understand reason for refusal", Required: true},
							{Text: "Contact physician if medically necessary", Required: true},
							{Text: "Document refusal and reason", Required: true},
						},
					},
				},
			},
			{Label: "Transportation issue", Result: ResultPartial},
		},
		EvidenceTypes: []EvidenceType{EvidenceNotes, EvidenceDocuments, EvidenceTimestamp},
	},

	TypeWellness: {
		Type:        TypeWellness,
		Title:       "Wellness Check Outcome",
		Description: "Document the outcome of a wellness check-in",
		Options: []Option{
			{Label: "Check-in completed, no concerns", Result: ResultSuccess},
			{
				Label:  "Minor concerns noted",
				Result: ResultPartial,
				FollowUp: &FollowUpRule{
					DueIn: 24 * time.Hour,
					Task: TaskTemplate{
						Title:            "Follow up on wellness concerns",
						Details:          "Check back on the concerns noted during the wellness check",
						Priority:         queue.SeverityMedium,
						EstimatedMinutes: 15,
						Checklist: []queue.ChecklistItem{
							{Text: "Review noted concerns", Required: true},
							{Text: "Check whether concerns persist", Required: true},
						},
					},
				},
			},
			{
				Label:  "Unable to reach subject",
				Result: ResultFailed,
				FollowUp: &FollowUpRule{
					DueIn: 2 * time.Hour,
					Task: TaskTemplate{
						Title:            "Retry wellness check",
						Details:          "The subject could not be reached, retry and escalate if still unreachable",
						Priority:         queue.SeverityHigh,
						EstimatedMinutes: 10,
						Checklist: []queue.ChecklistItem{
							{Text: "Attempt contact again", Required: true},
							{Text: "Contact a nearby circle member if unreachable", Required: true},
						},
					},
				},
			},
		},
		EvidenceTypes: []EvidenceType{EvidenceNotes, EvidenceTimestamp},
	},

	TypeTriage: {
		Type:        TypeTriage,
		Title:       "Triage Outcome",
		Description: "Document how an alert response concluded",
		Options: []Option{
			{Label: "Situation resolved", Result: ResultSuccess},
			{
				Label:  "Monitoring required",
				Result: ResultPartial,
				FollowUp: &FollowUpRule{
					DueIn: 4 * time.Hour,
					Task: TaskTemplate{
						Title:            "Continue monitoring subject",
						Details:          "The situation is stable but needs another look",
						Priority:         queue.SeverityMedium,
						EstimatedMinutes: 10,
						Checklist: []queue.ChecklistItem{
							{Text: "Check on subject condition", Required: true},
							{Text: "Compare against earlier observations", Required: true},
						},
					},
				},
			},
			{
				Label:  "Condition worsened",
				Result: ResultFailed,
				FollowUp: &FollowUpRule{
					DueIn: time.Hour,
					Task: TaskTemplate{
						Title:            "Escalate to medical care",
						Details:          "The subject's condition worsened after the initial response",
						Priority:         queue.SeverityUrgent,
						EstimatedMinutes: 15,
						Checklist: []queue.ChecklistItem{
							{Text: "Contact medical provider", Required: true},
							{Text: "Arrange transport if advised", Required: true},
							{Text: "Notify primary caregiver", Required: true},
						},
					},
				},
			},
		},
		EvidenceTypes: []EvidenceType{EvidencePhoto, EvidenceNotes, EvidenceTimestamp},
	},

	TypeGeneral: {
		Type:        TypeGeneral,
		Title:       "General Task Outcome",
		Description: "Document the outcome of a general care task",
		Options: []Option{
			{Label: "Completed successfully", Result: ResultSuccess},
			{
				Label:  "Partially completed",
				Result: ResultPartial,
				FollowUp: &FollowUpRule{
					DueIn: 24 * time.Hour,
					Task: TaskTemplate{
						Title:            "Complete remaining task items",
						Details:          "Complete the remaining items from the original task",
						Priority:         queue.SeverityMedium,
						EstimatedMinutes: 30,
						Checklist: []queue.ChecklistItem{
							{Text: "Review what was not completed", Required: true},
							{Text: "Complete remaining items", Required: true},
							{Text: "Verify completion", Required: true},
						},
					},
				},
			},
			{
				Label:  "Not completed",
				Result: ResultFailed,
				FollowUp: &FollowUpRule{
					DueIn: 12 * time.Hour,
					Task: TaskTemplate{
						Title:            "Retry incomplete task",
						Details:          "Attempt to complete the task again",
						Priority:         queue.SeverityHigh,
						EstimatedMinutes: 30,
						Checklist: []queue.ChecklistItem{
							{Text: "Understand reason for non-completion", Required: true},
							{Text: "Address any barriers", Required: true},
							{Text: "Retry task completion", Required: true},
						},
					},
				},
			},
			{
				Label:  "Escalated",
				Result: ResultFailed,
				FollowUp: &FollowUpRule{
					DueIn: 2 * time.Hour,
					Task: TaskTemplate{
						Title:            "Handle escalated task",
						Details:          "The task was escalated and requires attention",
						Priority:         queue.SeverityUrgent,
						EstimatedMinutes: 20,
						Checklist: []queue.ChecklistItem{
							{Text: "Review escalation reason", Required: true},
							{Text: "Determine appropriate action", Required: true},
							{Text: "Assign to appropriate person", Required: true},
						},
					},
				},
			},
		},
		EvidenceTypes: []EvidenceType{EvidenceNotes, EvidenceTimestamp},
	},
}
