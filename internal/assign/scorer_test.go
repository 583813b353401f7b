package assign

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/careops/internal/directory"
	"github.com/linnemanlabs/careops/internal/queue"
)

func medItem() *queue.Item {
	return &queue.Item{
		ID:        "item-1",
		SubjectID: "subject-1",
		Kind:      queue.KindMedication,
		Category:  "medication",
		Severity:  queue.SeverityHigh,
		Title:     "Evening medication check",
	}
}

func TestRecommendRanksSkilledNearbyFirst(t *testing.T) {
	t.Parallel()

	now := time.Now()
	people := []directory.Person{
		{
			ID:                   "neighbor",
			Name:                 "Pat",
			Role:                 directory.RoleCommunity,
			ProximityMinutes:     90,
			RelationshipPriority: 3,
			PerformanceScore:     0.5,
			Active:               true,
		},
		{
			ID:                   "nurse",
			Name:                 "Sam",
			Role:                 directory.RoleProfessional,
			Skills:               []string{"medication", "medical"},
			ProximityMinutes:     10,
			RelationshipPriority: 2,
			PerformanceScore:     0.9,
			Active:               true,
		},
	}

	s := NewScorer(Weights{}, 0.2)
	rec, err := s.Recommend(medItem(), people, now)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if rec.Best.Person.ID != "nurse" {
		t.Fatalf("best = %s, want nurse", rec.Best.Person.ID)
	}
	if rec.Fallback {
		t.Error("unexpected fallback")
	}
	if len(rec.Ranked) != 2 {
		t.Fatalf("ranked len = %d, want 2", len(rec.Ranked))
	}
	if rec.Ranked[0].Score <= rec.Ranked[1].Score {
		t.Errorf("ranking not descending: %.2f then %.2f", rec.Ranked[0].Score, rec.Ranked[1].Score)
	}
	if !strings.Contains(rec.Reasoning, "Sam") {
		t.Errorf("reasoning does not name the winner: %q", rec.Reasoning)
	}
}

func TestRecommendFallsBackToPrimary(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) // a Monday
	weekend := []directory.Window{{Days: []time.Weekday{time.Saturday}, Start: "09:00", End: "17:00"}}
	people := []directory.Person{
		{
			ID:                   "daughter",
			Name:                 "Ana",
			Role:                 directory.RoleFamily,
			ProximityMinutes:     110,
			Availability:         weekend,
			RelationshipPriority: 1,
			Active:               true,
		},
		{
			ID:               "helper",
			Name:             "Kim",
			Role:             directory.RoleCommunity,
			ProximityMinutes: 115,
			Availability:     weekend,
			Active:           true,
		},
	}

	s := NewScorer(Weights{}, 0.6)
	rec, err := s.Recommend(medItem(), people, now)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if !rec.Fallback {
		t.Fatal("expected fallback below the minimum viable score")
	}
	if rec.Best.Person.ID != "daughter" {
		t.Errorf("fallback = %s, want daughter", rec.Best.Person.ID)
	}
	if !strings.Contains(rec.Reasoning, "primary caregiver") {
		t.Errorf("reasoning does not mention the fallback: %q", rec.Reasoning)
	}
}

func TestRecommendNoEligibleAssignee(t *testing.T) {
	t.Parallel()

	s := NewScorer(Weights{}, 0.2)

	_, err := s.Recommend(medItem(), nil, time.Now())
	if !errors.Is(err, ErrNoEligibleAssignee) {
		t.Errorf("empty circle: err = %v, want ErrNoEligibleAssignee", err)
	}

	inactive := []directory.Person{{ID: "gone", Active: false}}
	_, err = s.Recommend(medItem(), inactive, time.Now())
	if !errors.Is(err, ErrNoEligibleAssignee) {
		t.Errorf("inactive circle: err = %v, want ErrNoEligibleAssignee", err)
	}
}

func TestRecommendNoPrimaryBelowMinimum(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	weekend := []directory.Window{{Days: []time.Weekday{time.Saturday}, Start: "09:00", End: "17:00"}}
	people := []directory.Person{
		{ID: "helper", Role: directory.RoleCommunity, ProximityMinutes: 120, Availability: weekend, Active: true},
	}

	s := NewScorer(Weights{}, 0.9)
	_, err := s.Recommend(medItem(), people, now)
	if !errors.Is(err, ErrNoEligibleAssignee) {
		t.Errorf("err = %v, want ErrNoEligibleAssignee", err)
	}
}

func TestRequiredSkills(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		item queue.Item
		want []string
	}{
		{"medication kind", queue.Item{Kind: queue.KindMedication}, []string{"medication"}},
		{"fall alert", queue.Item{Kind: queue.KindAlert, Category: "fall"}, []string{"mobility"}},
		{"chest pain alert", queue.Item{Kind: queue.KindAlert, Category: "chest_pain"}, []string{"medical"}},
		{"confusion alert", queue.Item{Kind: queue.KindAlert, Category: "confusion"}, []string{"cognitive"}},
		{"plain checkin", queue.Item{Kind: queue.KindCheckin, Category: "checkin"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := requiredSkills(&tt.item)
			if len(got) != len(tt.want) {
				t.Fatalf("requiredSkills = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("requiredSkills = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestScoreTermWeighting(t *testing.T) {
	t.Parallel()

	s := NewScorer(Weights{}, 0)
	now := time.Now()

	ideal := directory.Person{
		ID:                   "ideal",
		Skills:               []string{"medication"},
		ProximityMinutes:     0,
		RelationshipPriority: 1,
		PerformanceScore:     1,
		Active:               true,
	}
	c := s.score(medItem(), ideal, now)
	if c.Score < 0.999 || c.Score > 1.001 {
		t.Errorf("ideal candidate score = %.3f, want 1.0", c.Score)
	}

	far := ideal
	far.ProximityMinutes = 240
	fc := s.score(medItem(), far, now)
	if fc.Proximity != 0 {
		t.Errorf("proximity term = %.2f, want 0 beyond the cap", fc.Proximity)
	}
}
