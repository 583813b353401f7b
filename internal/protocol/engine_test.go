package protocol

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/careops/internal/timeline"
	tlmem "github.com/linnemanlabs/careops/internal/timeline/memstore"
)

// mockStore implements Store for testing.
type mockStore struct {
	mu     sync.Mutex
	alerts map[string]*Alert
	plans  map[string]*Plan
}

func newMockStore() *mockStore {
	return &mockStore{
		alerts: make(map[string]*Alert),
		plans:  make(map[string]*Plan),
	}
}

func (m *mockStore) PutAlert(_ context.Context, a *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.alerts[a.ID] = &cp
	return nil
}

func (m *mockStore) GetAlert(_ context.Context, id string) (*Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockStore) PutPlan(_ context.Context, p *Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.plans[p.ID] = &cp
	return nil
}

func (m *mockStore) GetPlan(_ context.Context, id string) (*Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func newFallPlan(t *testing.T, store *mockStore) *Plan {
	t.Helper()
	p := &Plan{
		ID:        ulid.Make().String(),
		AlertID:   ulid.Make().String(),
		SubjectID: "s1",
		Type:      TypeFall,
		State:     StateSafetyCheck,
		Responses: map[string]any{},
		StartedAt: time.Now(),
	}
	if err := store.PutPlan(context.Background(), p); err != nil {
		t.Fatalf("PutPlan: %v", err)
	}
	return p
}

func countEntries(t *testing.T, tl *tlmem.Store, subjectID, refID string) int {
	t.Helper()
	page, err := tl.List(context.Background(), subjectID, timeline.Filter{RefID: refID}, "", 100)
	if err != nil {
		t.Fatalf("timeline list: %v", err)
	}
	return len(page.Entries)
}

func TestAdvance_SafetyCheckToRapidAssessment(t *testing.T) {
	t.Parallel()
	store := newMockStore()
	tl := tlmem.New()
	eng := NewEngine(store, tl, log.Nop())
	p := newFallPlan(t, store)

	res, err := eng.Advance(context.Background(), p.ID, "op-1", map[string]any{
		"consciousness":      "yes",
		"severe_injury":      "no",
		"pain_level_initial": 3,
	})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if res.Plan.State != StateRapidAssessment {
		t.Fatalf("state = %s, want %s", res.Plan.State, StateRapidAssessment)
	}
	if res.Step == nil || res.Step.State != StateRapidAssessment {
		t.Fatal("expected rapid assessment step questions")
	}
	if res.Replayed {
		t.Error("first call should not be a replay")
	}
}

func TestAdvance_CriticalFlagJumpsToEmergency(t *testing.T) {
	t.Parallel()
	store := newMockStore()
	tl := tlmem.New()
	eng := NewEngine(store, tl, log.Nop())
	p := newFallPlan(t, store)

	res, err := eng.Advance(context.Background(), p.ID, "op-1", map[string]any{
		"consciousness":      "yes",
		"severe_injury":      "yes",
		"pain_level_initial": 2,
	})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if res.Plan.State != StateEmergencyServices {
		t.Fatalf("state = %s, want %s", res.Plan.State, StateEmergencyServices)
	}
	if res.Plan.Action == nil || res.Plan.Action.Recommendation != RecommendCallEmergency {
		t.Fatalf("action = %+v, want call_emergency", res.Plan.Action)
	}
	if res.Step != nil {
		t.Error("terminal state should have no pending step")
	}

	// The machine stops here; rapid assessment and action plan never run.
	_, err = eng.Advance(context.Background(), p.ID, "op-2", map[string]any{})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("advance past emergency: err = %v, want ErrInvalidTransition", err)
	}
}

func TestAdvance_PainThresholdEscalates(t *testing.T) {
	t.Parallel()
	store := newMockStore()
	tl := tlmem.New()
	eng := NewEngine(store, tl, log.Nop())
	p := newFallPlan(t, store)

	res, err := eng.Advance(context.Background(), p.ID, "op-1", map[string]any{
		"consciousness":      "yes",
		"severe_injury":      "no",
		"pain_level_initial": 9,
	})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if res.Plan.State != StateEmergencyServices {
		t.Fatalf("state = %s, want emergency for pain >= 8", res.Plan.State)
	}
}

func TestAdvance_Idempotence(t *testing.T) {
	t.Parallel()
	store := newMockStore()
	tl := tlmem.New()
	eng := NewEngine(store, tl, log.Nop())
	p := newFallPlan(t, store)
	ctx := context.Background()

	input := map[string]any{
		"consciousness":      "yes",
		"severe_injury":      "no",
		"pain_level_initial": 3,
	}
	first, err := eng.Advance(ctx, p.ID, "op-1", input)
	if err != nil {
		t.Fatalf("first advance: %v", err)
	}
	second, err := eng.Advance(ctx, p.ID, "op-1", input)
	if err != nil {
		t.Fatalf("replayed advance: %v", err)
	}
	if !second.Replayed {
		t.Error("second call should report a replay")
	}
	if second.Plan.State != first.Plan.State {
		t.Errorf("replay state = %s, want %s", second.Plan.State, first.Plan.State)
	}
	if n := countEntries(t, tl, "s1", p.ID); n != 1 {
		t.Errorf("timeline entries = %d, want exactly 1", n)
	}
}

func TestAdvance_MissingRequiredResponse(t *testing.T) {
	t.Parallel()
	store := newMockStore()
	tl := tlmem.New()
	eng := NewEngine(store, tl, log.Nop())
	p := newFallPlan(t, store)

	_, err := eng.Advance(context.Background(), p.ID, "op-1", map[string]any{
		"consciousness": "yes",
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if n := countEntries(t, tl, "s1", p.ID); n != 0 {
		t.Errorf("rejected advance wrote %d timeline entries", n)
	}
}

func TestAdvance_InputValidation(t *testing.T) {
	t.Parallel()
	store := newMockStore()
	tl := tlmem.New()
	eng := NewEngine(store, tl, log.Nop())
	ctx := context.Background()

	tests := []struct {
		name  string
		input map[string]any
	}{
		{"scale out of range", map[string]any{"consciousness": "yes", "severe_injury": "no", "pain_level_initial": 14}},
		{"scale not numeric", map[string]any{"consciousness": "yes", "severe_injury": "no", "pain_level_initial": "lots"}},
		{"yes_no gibberish", map[string]any{"consciousness": "maybe", "severe_injury": "no", "pain_level_initial": 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFallPlan(t, store)
			_, err := eng.Advance(ctx, p.ID, "op-1", tt.input)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("err = %v, want ErrInvalidTransition", err)
			}
		})
	}
}

func TestAdvance_FullRunToClosed(t *testing.T) {
	t.Parallel()
	store := newMockStore()
	tl := tlmem.New()
	eng := NewEngine(store, tl, log.Nop())
	p := newFallPlan(t, store)
	ctx := context.Background()

	steps := []map[string]any{
		{"consciousness": "yes", "severe_injury": "no", "pain_level_initial": 2},
		{"pain_location": "Leg/Knee", "mobility_status": "yes", "current_medications": "no", "head_injury_check": "no", "confusion_check": "no"},
		{"action_preference": "Monitor at Home"},
		{"action_taken": "Monitored at home", "emergency_called": "no"},
	}
	wantStates := []State{StateRapidAssessment, StateActionPlan, StateOutcomeCapture, StateClosed}

	for i, input := range steps {
		res, err := eng.Advance(ctx, p.ID, ulid.Make().String(), input)
		if err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
		if res.Plan.State != wantStates[i] {
			t.Fatalf("advance %d: state = %s, want %s", i, res.Plan.State, wantStates[i])
		}
	}

	final, err := eng.Rebuild(ctx, p.ID)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if final.State != StateClosed {
		t.Errorf("final state = %s", final.State)
	}
	if final.Action == nil || final.Action.Recommendation != RecommendMonitor {
		t.Errorf("action = %+v, want monitor for a stable fall", final.Action)
	}
	if n := countEntries(t, tl, "s1", p.ID); n != 4 {
		t.Errorf("timeline entries = %d, want 4", n)
	}
}

func TestRebuild_TimelineIsSourceOfTruth(t *testing.T) {
	t.Parallel()
	store := newMockStore()
	tl := tlmem.New()
	eng := NewEngine(store, tl, log.Nop())
	p := newFallPlan(t, store)
	ctx := context.Background()

	if _, err := eng.Advance(ctx, p.ID, "op-1", map[string]any{
		"consciousness":      "yes",
		"severe_injury":      "no",
		"pain_level_initial": 3,
	}); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	// Simulate the record write being lost after the audit write.
	stale := *p
	stale.State = StateSafetyCheck
	stale.Responses = map[string]any{}
	if err := store.PutPlan(ctx, &stale); err != nil {
		t.Fatalf("PutPlan: %v", err)
	}

	rebuilt, err := eng.Rebuild(ctx, p.ID)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if rebuilt.State != StateRapidAssessment {
		t.Fatalf("rebuilt state = %s, want %s", rebuilt.State, StateRapidAssessment)
	}
	if rebuilt.Responses["pain_level_initial"] == nil {
		t.Error("rebuilt plan lost recorded responses")
	}

	// A replayed op against the stale record is still recognized.
	res, err := eng.Advance(ctx, p.ID, "op-1", map[string]any{
		"consciousness":      "yes",
		"severe_injury":      "no",
		"pain_level_initial": 3,
	})
	if err != nil {
		t.Fatalf("replay after stale record: %v", err)
	}
	if !res.Replayed {
		t.Error("expected replay detection from timeline")
	}
}
