package outcome

import (
	"testing"
	"time"

	"github.com/linnemanlabs/careops/internal/queue"
)

func TestTemplateFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		item queue.Item
		want Type
	}{
		{"medication kind", queue.Item{Kind: queue.KindMedication}, TypeMedication},
		{"medication category", queue.Item{Kind: queue.KindTask, Category: "medication"}, TypeMedication},
		{"safety category", queue.Item{Kind: queue.KindTask, Category: "safety"}, TypeSafety},
		{"appointment", queue.Item{Kind: queue.KindTask, Category: "appointment"}, TypeAppointment},
		{"checkin kind", queue.Item{Kind: queue.KindCheckin}, TypeWellness},
		{"fall alert", queue.Item{Kind: queue.KindAlert, Category: "fall"}, TypeTriage},
		{"untyped alert", queue.Item{Kind: queue.KindAlert}, TypeTriage},
		{"plain task", queue.Item{Kind: queue.KindTask}, TypeGeneral},
		{"followup", queue.Item{Kind: queue.KindFollowup, Category: "followup"}, TypeGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TemplateFor(&tt.item); got.Type != tt.want {
				t.Errorf("TemplateFor = %s, want %s", got.Type, tt.want)
			}
		})
	}
}

func TestEveryOptionHasKnownResult(t *testing.T) {
	t.Parallel()

	for _, tpl := range Templates() {
		for _, opt := range tpl.Options {
			if !opt.Result.Valid() {
				t.Errorf("%s option %q has unknown result %q", tpl.Type, opt.Label, opt.Result)
			}
		}
		if tpl.defaultOption(ResultSuccess) == nil {
			t.Errorf("%s has no success option", tpl.Type)
		}
	}
}

func TestMedicationFailureRule(t *testing.T) {
	t.Parallel()

	tpl := templates[TypeMedication]
	opt := tpl.defaultOption(ResultFailed)
	if opt == nil || opt.FollowUp == nil {
		t.Fatal("medication failure has no follow-up rule")
	}
	if opt.FollowUp.DueIn != 4*time.Hour {
		t.Errorf("due in %v, want 4h", opt.FollowUp.DueIn)
	}
	if opt.FollowUp.Task.Priority != queue.SeverityHigh {
		t.Errorf("priority %s, want high", opt.FollowUp.Task.Priority)
	}
}

func TestEvidenceAcceptance(t *testing.T) {
	t.Parallel()

	med := templates[TypeMedication]
	if !med.acceptsEvidence(EvidencePhoto) {
		t.Error("medication rejects photo evidence")
	}
	if med.acceptsEvidence(EvidenceVideo) {
		t.Error("medication accepts video evidence")
	}
}
