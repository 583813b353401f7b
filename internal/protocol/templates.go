package protocol

// Templates returns the template for an alert type, if one exists. Alert
// types are free-form strings from the analysis collaborator; only the four
// protocol types run the state machine.
func TemplateFor(alertType string) (*Template, bool) {
	t, ok := templates[Type(alertType)]
	return t, ok
}

var templates = map[Type]*Template{
	TypeFall:      fallTemplate(),
	TypeInjury:    injuryTemplate(),
	TypeChestPain: chestPainTemplate(),
	TypeConfusion: confusionTemplate(),
}

func fallTemplate() *Template {
	return &Template{
		Type: TypeFall,
		Steps: []Step{
			{
				State: StateSafetyCheck,
				Title: "Immediate Safety Check",
				Questions: []Question{
					{ID: "consciousness", Text: "Is the elder conscious and breathing normally?", Type: QuestionYesNo, Required: true, CriticalFlag: true},
					{ID: "severe_injury", Text: "Is there severe bleeding, head injury, or inability to move?", Type: QuestionYesNo, Required: true, CriticalFlag: true},
					{ID: "pain_level_initial", Text: "On a scale of 1-10, how severe is the pain?", Type: QuestionScale, Required: true},
				},
				Transitions: []Transition{
					{When: Condition{Any: []Clause{
						{Question: "consciousness", Is: OpNo},
						{Question: "severe_injury", Is: OpYes},
						{Question: "pain_level_initial", Is: OpAtLeast, Threshold: 8},
					}}, Next: StateEmergencyServices},
					{Next: StateRapidAssessment},
				},
			},
			{
				State: StateRapidAssessment,
				Title: "Rapid Assessment",
				Questions: []Question{
					{ID: "pain_location", Text: "Where is the pain located?", Type: QuestionMultipleChoice, Required: true,
						Options: []string{"Head/Neck", "Back/Spine", "Hip/Pelvis", "Arm/Shoulder", "Leg/Knee", "Other"}},
					{ID: "mobility_status", Text: "Can the elder move without assistance?", Type: QuestionYesNo, Required: true},
					{ID: "current_medications", Text: "Is the elder taking blood thinners or other medications?", Type: QuestionYesNo, Required: true},
					{ID: "head_injury_check", Text: "Did the elder hit their head during the fall?", Type: QuestionYesNo, Required: true, CriticalFlag: true},
					{ID: "confusion_check", Text: "Is the elder confused or disoriented?", Type: QuestionYesNo, Required: true, CriticalFlag: true},
				},
				Transitions: []Transition{
					{When: Condition{Any: []Clause{
						{Question: "head_injury_check", Is: OpYes},
						{Question: "confusion_check", Is: OpYes},
						{Question: "mobility_status", Is: OpNo},
					}}, Next: StateEmergencyServices},
					{Next: StateActionPlan},
				},
			},
			{
				State: StateActionPlan,
				Title: "Action Plan",
				Questions: []Question{
					{ID: "action_preference", Text: "Based on the assessment, what action would you prefer?", Type: QuestionMultipleChoice, Required: true,
						Options: []string{"Call 911", "Go to Urgent Care", "Call Nurse Line", "Monitor at Home"}},
				},
				Transitions: []Transition{{Next: StateOutcomeCapture}},
			},
			{
				State: StateOutcomeCapture,
				Title: "Outcome Capture",
				Questions: []Question{
					{ID: "action_taken", Text: "What action was taken?", Type: QuestionText, Required: true},
					{ID: "emergency_called", Text: "Were emergency services called?", Type: QuestionYesNo, Required: true},
					{ID: "outcome_notes", Text: "Additional notes about the outcome:", Type: QuestionText},
				},
				Transitions: []Transition{{Next: StateClosed}},
			},
		},
	}
}

func injuryTemplate() *Template {
	return &Template{
		Type: TypeInjury,
		Steps: []Step{
			{
				State: StateSafetyCheck,
				Title: "Immediate Safety Check",
				Questions: []Question{
					{ID: "consciousness", Text: "Is the elder conscious and alert?", Type: QuestionYesNo, Required: true, CriticalFlag: true},
					{ID: "bleeding_severity", Text: "Is there active bleeding?", Type: QuestionMultipleChoice, Required: true, CriticalFlag: true,
						Options: []string{"No bleeding", "Minor bleeding", "Moderate bleeding", "Severe bleeding"}},
					{ID: "breathing_status", Text: "Is breathing normal and unlabored?", Type: QuestionYesNo, Required: true, CriticalFlag: true},
				},
				Transitions: []Transition{
					{When: Condition{Any: []Clause{
						{Question: "consciousness", Is: OpNo},
						{Question: "bleeding_severity", Is: OpEquals, Value: "Severe bleeding"},
						{Question: "breathing_status", Is: OpNo},
					}}, Next: StateEmergencyServices},
					{Next: StateRapidAssessment},
				},
			},
			{
				State: StateRapidAssessment,
				Title: "Rapid Assessment",
				Questions: []Question{
					{ID: "injury_location", Text: "Where is the injury located?", Type: QuestionMultipleChoice, Required: true,
						Options: []string{"Head/Face", "Neck", "Chest", "Abdomen", "Arms", "Legs", "Back"}},
					{ID: "pain_scale", Text: "Pain level (0-10 scale):", Type: QuestionScale, Required: true},
					{ID: "mobility_affected", Text: "Is mobility affected by the injury?", Type: QuestionYesNo, Required: true},
					{ID: "swelling_present", Text: "Is there visible swelling or deformity?", Type: QuestionYesNo, Required: true},
				},
				Transitions: []Transition{
					{When: Condition{Any: []Clause{
						{Question: "pain_scale", Is: OpAtLeast, Threshold: 8},
					}}, Next: StateEmergencyServices},
					{Next: StateActionPlan},
				},
			},
			{
				State: StateActionPlan,
				Title: "Action Plan",
				Questions: []Question{
					{ID: "recommended_action", Text: "Recommended next step:", Type: QuestionMultipleChoice, Required: true,
						Options: []string{"Emergency Room", "Urgent Care", "Primary Care", "Home Care"}},
				},
				Transitions: []Transition{{Next: StateOutcomeCapture}},
			},
			{
				State: StateOutcomeCapture,
				Title: "Outcome Capture",
				Questions: []Question{
					{ID: "action_taken", Text: "Action taken:", Type: QuestionText, Required: true},
					{ID: "emergency_called", Text: "Were emergency services contacted?", Type: QuestionYesNo, Required: true},
					{ID: "follow_up_needed", Text: "Is follow-up care needed?", Type: QuestionYesNo, Required: true},
				},
				Transitions: []Transition{{Next: StateClosed}},
			},
		},
	}
}

func chestPainTemplate() *Template {
	return &Template{
		Type: TypeChestPain,
		Steps: []Step{
			{
				State: StateSafetyCheck,
				Title: "Immediate Safety Check",
				Questions: []Question{
					{ID: "consciousness", Text: "Is the elder conscious and responsive?", Type: QuestionYesNo, Required: true, CriticalFlag: true},
					{ID: "chest_pain_severity", Text: "How severe is the chest pain (0-10)?", Type: QuestionScale, Required: true, CriticalFlag: true},
					{ID: "breathing_difficulty", Text: "Is there difficulty breathing or shortness of breath?", Type: QuestionYesNo, Required: true, CriticalFlag: true},
					{ID: "sweating_nausea", Text: "Is there sweating, nausea, or dizziness?", Type: QuestionYesNo, Required: true, CriticalFlag: true},
				},
				Transitions: []Transition{
					{When: Condition{Any: []Clause{
						{Question: "consciousness", Is: OpNo},
						{Question: "chest_pain_severity", Is: OpAtLeast, Threshold: 7},
						{Question: "breathing_difficulty", Is: OpYes},
						{Question: "sweating_nausea", Is: OpYes},
					}}, Next: StateEmergencyServices},
					{Next: StateRapidAssessment},
				},
			},
			{
				State: StateRapidAssessment,
				Title: "Rapid Assessment",
				Questions: []Question{
					{ID: "pain_duration", Text: "How long has the chest pain been present?", Type: QuestionMultipleChoice, Required: true,
						Options: []string{"Less than 5 minutes", "5-15 minutes", "15-30 minutes", "More than 30 minutes"}},
					{ID: "pain_radiation", Text: "Does the pain radiate to arm, jaw, or back?", Type: QuestionYesNo, Required: true, CriticalFlag: true},
					{ID: "cardiac_history", Text: "Does the elder have a history of heart problems?", Type: QuestionYesNo, Required: true},
					{ID: "current_medications", Text: "Is the elder taking heart medications?", Type: QuestionYesNo, Required: true},
				},
				Transitions: []Transition{
					{When: Condition{Any: []Clause{
						{Question: "pain_radiation", Is: OpYes},
						{Question: "pain_duration", Is: OpEquals, Value: "More than 30 minutes"},
					}}, Next: StateEmergencyServices},
					{Next: StateActionPlan},
				},
			},
			{
				State: StateActionPlan,
				Title: "Action Plan",
				Questions: []Question{
					{ID: "immediate_action", Text: "Immediate action required:", Type: QuestionMultipleChoice, Required: true,
						Options: []string{"Call 911 Immediately", "Go to Emergency Room", "Call Cardiologist", "Monitor Closely"}},
				},
				Transitions: []Transition{{Next: StateOutcomeCapture}},
			},
			{
				State: StateOutcomeCapture,
				Title: "Outcome Capture",
				Questions: []Question{
					{ID: "action_taken", Text: "Action taken:", Type: QuestionText, Required: true},
					{ID: "emergency_called", Text: "Were emergency services called?", Type: QuestionYesNo, Required: true},
					{ID: "symptoms_resolved", Text: "Have symptoms improved or resolved?", Type: QuestionYesNo, Required: true},
				},
				Transitions: []Transition{{Next: StateClosed}},
			},
		},
	}
}

func confusionTemplate() *Template {
	return &Template{
		Type: TypeConfusion,
		Steps: []Step{
			{
				State: StateSafetyCheck,
				Title: "Immediate Safety Check",
				Questions: []Question{
					{ID: "responsiveness", Text: "Is the elder responsive to voice and touch?", Type: QuestionYesNo, Required: true, CriticalFlag: true},
					{ID: "orientation_check", Text: "Does the elder know their name, location, and date?", Type: QuestionMultipleChoice, Required: true, CriticalFlag: true,
						Options: []string{"Knows all three", "Knows two", "Knows one", "Knows none"}},
					{ID: "physical_symptoms", Text: "Are there any physical symptoms (fever, weakness, difficulty speaking)?", Type: QuestionYesNo, Required: true, CriticalFlag: true},
				},
				Transitions: []Transition{
					{When: Condition{Any: []Clause{
						{Question: "responsiveness", Is: OpNo},
						{Question: "orientation_check", Is: OpEquals, Value: "Knows none"},
						{Question: "physical_symptoms", Is: OpYes},
					}}, Next: StateEmergencyServices},
					{Next: StateRapidAssessment},
				},
			},
			{
				State: StateRapidAssessment,
				Title: "Rapid Assessment",
				Questions: []Question{
					{ID: "confusion_onset", Text: "When did the confusion start?", Type: QuestionMultipleChoice, Required: true,
						Options: []string{"Suddenly (minutes)", "Gradually (hours)", "Over days", "Chronic/ongoing"}},
					{ID: "medication_changes", Text: "Have there been recent medication changes?", Type: QuestionYesNo, Required: true},
					{ID: "recent_illness", Text: "Has the elder been ill recently (UTI, infection, etc.)?", Type: QuestionYesNo, Required: true},
					{ID: "safety_concerns", Text: "Are there immediate safety concerns (wandering, agitation)?", Type: QuestionYesNo, Required: true, CriticalFlag: true},
				},
				Transitions: []Transition{
					{When: Condition{Any: []Clause{
						{Question: "safety_concerns", Is: OpYes},
						{Question: "confusion_onset", Is: OpEquals, Value: "Suddenly (minutes)"},
					}}, Next: StateEmergencyServices},
					{Next: StateActionPlan},
				},
			},
			{
				State: StateActionPlan,
				Title: "Action Plan",
				Questions: []Question{
					{ID: "recommended_care", Text: "Recommended level of care:", Type: QuestionMultipleChoice, Required: true,
						Options: []string{"Emergency Room", "Urgent Care", "Primary Care Same Day", "Schedule Appointment"}},
				},
				Transitions: []Transition{{Next: StateOutcomeCapture}},
			},
			{
				State: StateOutcomeCapture,
				Title: "Outcome Capture",
				Questions: []Question{
					{ID: "action_taken", Text: "Action taken:", Type: QuestionText, Required: true},
					{ID: "emergency_called", Text: "Were emergency services called?", Type: QuestionYesNo, Required: true},
					{ID: "safety_measures", Text: "What safety measures were implemented?", Type: QuestionText},
				},
				Transitions: []Transition{{Next: StateClosed}},
			},
		},
	}
}

// stepFor returns the step definition for a state, or nil for terminal
// states that carry no questions.
func (t *Template) stepFor(s State) *Step {
	for i := range t.Steps {
		if t.Steps[i].State == s {
			return &t.Steps[i]
		}
	}
	return nil
}
