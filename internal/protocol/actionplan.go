package protocol

import "github.com/linnemanlabs/careops/internal/queue"

// BuildActionPlan is a pure function of the plan type and accumulated
// responses. It never calls out to a collaborator.
func BuildActionPlan(t Type, responses map[string]any) *ActionPlan {
	switch t {
	case TypeFall:
		return fallActionPlan(responses)
	case TypeInjury:
		return injuryActionPlan(responses)
	case TypeChestPain:
		return chestPainActionPlan()
	case TypeConfusion:
		return confusionActionPlan(responses)
	}
	return defaultActionPlan()
}

// EmergencyActionPlan is the plan issued when a critical flag trips.
func EmergencyActionPlan(t Type) *ActionPlan {
	scripts := map[Type]string{
		TypeFall:      "This is a medical emergency. An elderly person has fallen and may have serious injuries. Please send an ambulance immediately.",
		TypeInjury:    "This is a medical emergency. An elderly person has sustained a serious injury. Please send an ambulance immediately.",
		TypeChestPain: "This is a medical emergency. An elderly person is experiencing severe chest pain. This may be a heart attack. Please send an ambulance immediately.",
		TypeConfusion: "This is a medical emergency. An elderly person is experiencing severe confusion or altered mental state. Please send an ambulance immediately.",
	}
	script, ok := scripts[t]
	if !ok {
		script = "This is a medical emergency. Please send an ambulance immediately."
	}
	return &ActionPlan{
		Recommendation: RecommendCallEmergency,
		CallScript:     script,
		UrgencyLevel:   10,
		Timeframe:      "Immediate",
		FollowUps: []FollowUpTask{{
			Title:            "Follow up on emergency response",
			Details:          "Contact family members and track emergency services response",
			Priority:         queue.SeverityUrgent,
			EstimatedMinutes: 15,
			Checklist: []queue.ChecklistItem{
				{Text: "Confirm ambulance arrival", Required: true},
				{Text: "Notify primary family contacts", Required: true},
				{Text: "Gather medical information for hospital", Required: true},
			},
			DueInHours: 1,
		}},
	}
}

func fallActionPlan(responses map[string]any) *ActionPlan {
	pain, _ := asNumber(responses["pain_level_initial"])
	if pain >= 6 || isNo(responses["mobility_status"]) {
		return &ActionPlan{
			Recommendation: RecommendUrgentCare,
			CallScript:     "The elder has fallen and is experiencing significant pain or mobility issues. Please arrange for urgent medical evaluation.",
			UrgencyLevel:   7,
			Timeframe:      "Within 2 hours",
			FollowUps: []FollowUpTask{{
				Title:            "Arrange urgent care visit",
				Details:          "Schedule and transport to urgent care facility",
				Priority:         queue.SeverityHigh,
				EstimatedMinutes: 60,
				Checklist: []queue.ChecklistItem{
					{Text: "Call urgent care to confirm availability", Required: true},
					{Text: "Arrange transportation", Required: true},
					{Text: "Gather insurance and medication information", Required: true},
				},
				DueInHours: 2,
			}},
		}
	}
	return &ActionPlan{
		Recommendation: RecommendMonitor,
		CallScript:     "The elder appears stable after the fall. Continue monitoring for any changes in condition.",
		UrgencyLevel:   4,
		Timeframe:      "Monitor for 24 hours",
		FollowUps: []FollowUpTask{{
			Title:            "Monitor post-fall condition",
			Details:          "Check on elder regularly for next 24 hours",
			Priority:         queue.SeverityMedium,
			EstimatedMinutes: 10,
			Checklist: []queue.ChecklistItem{
				{Text: "Check pain level every 4 hours", Required: true},
				{Text: "Monitor mobility and balance", Required: true},
				{Text: "Watch for signs of delayed injury", Required: true},
			},
			DueInHours: 4,
		}},
	}
}

func injuryActionPlan(responses map[string]any) *ActionPlan {
	pain, _ := asNumber(responses["pain_scale"])
	bleeding, _ := responses["bleeding_severity"].(string)
	if pain >= 7 || bleeding == "Moderate bleeding" {
		return &ActionPlan{
			Recommendation: RecommendUrgentCare,
			CallScript:     "The elder has sustained an injury requiring medical attention. Please arrange for urgent care evaluation.",
			UrgencyLevel:   6,
			Timeframe:      "Within 4 hours",
		}
	}
	return &ActionPlan{
		Recommendation: RecommendMonitor,
		CallScript:     "The injury appears minor. Continue monitoring and provide basic first aid as needed.",
		UrgencyLevel:   3,
		Timeframe:      "Monitor closely",
	}
}

func chestPainActionPlan() *ActionPlan {
	// Non-emergency chest pain still gets an urgent care path.
	return &ActionPlan{
		Recommendation: RecommendUrgentCare,
		CallScript:     "The elder is experiencing chest pain. Given the potential cardiac implications, please arrange for immediate medical evaluation.",
		UrgencyLevel:   8,
		Timeframe:      "Within 1 hour",
		FollowUps: []FollowUpTask{{
			Title:            "Urgent cardiac evaluation",
			Details:          "Ensure immediate medical assessment for chest pain",
			Priority:         queue.SeverityUrgent,
			EstimatedMinutes: 30,
			Checklist: []queue.ChecklistItem{
				{Text: "Contact primary care physician", Required: true},
				{Text: "Prepare cardiac medication list", Required: true},
				{Text: "Monitor vital signs if possible", Required: true},
			},
			DueInHours: 1,
		}},
	}
}

func confusionActionPlan(responses map[string]any) *ActionPlan {
	onset, _ := responses["confusion_onset"].(string)
	if onset == "Suddenly (minutes)" || isYes(responses["medication_changes"]) {
		return &ActionPlan{
			Recommendation: RecommendUrgentCare,
			CallScript:     "The elder is experiencing confusion that may require immediate medical evaluation to rule out serious causes.",
			UrgencyLevel:   7,
			Timeframe:      "Within 2 hours",
		}
	}
	return &ActionPlan{
		Recommendation: RecommendNurseLine,
		CallScript:     "The elder is experiencing confusion. Please contact the nurse line or primary care provider for guidance.",
		UrgencyLevel:   5,
		Timeframe:      "Within 4 hours",
	}
}

func defaultActionPlan() *ActionPlan {
	return &ActionPlan{
		Recommendation: RecommendMonitor,
		CallScript:     "Continue monitoring the situation and contact healthcare provider if symptoms worsen.",
		UrgencyLevel:   3,
		Timeframe:      "Within 24 hours",
	}
}
