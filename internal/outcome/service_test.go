package outcome

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/careops/internal/queue"
	qmem "github.com/linnemanlabs/careops/internal/queue/memstore"
	"github.com/linnemanlabs/careops/internal/timeline"
	tlmem "github.com/linnemanlabs/careops/internal/timeline/memstore"
)

// mockStore implements Store for testing.
type mockStore struct {
	mu     sync.Mutex
	byID   map[string]*Outcome
	byItem map[string]*Outcome
}

func newMockStore() *mockStore {
	return &mockStore{
		byID:   make(map[string]*Outcome),
		byItem: make(map[string]*Outcome),
	}
}

func (m *mockStore) Put(_ context.Context, o *Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byItem[o.ItemID]; ok {
		return ErrAlreadyCaptured
	}
	cp := *o
	m.byID[o.ID] = &cp
	m.byItem[o.ItemID] = &cp
	return nil
}

func (m *mockStore) Get(_ context.Context, id string) (*Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockStore) GetByItem(_ context.Context, itemID string) (*Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byItem[itemID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

type fixture struct {
	svc   *Service
	queue *queue.Service
	store *mockStore
	tl    *tlmem.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tl := tlmem.New()
	qsvc := queue.NewService(qmem.New(), tl, nil, queue.NewMetrics(prometheus.NewRegistry()), log.Nop())
	store := newMockStore()
	svc := NewService(store, qsvc, tl, NewMetrics(prometheus.NewRegistry()), log.Nop())
	return &fixture{svc: svc, queue: qsvc, store: store, tl: tl}
}

// claimedMedItem enqueues a medication item and claims it for the actor.
func claimedMedItem(t *testing.T, f *fixture, actor string) *queue.Item {
	t.Helper()
	ctx := context.Background()
	it, err := f.queue.Enqueue(ctx, &queue.Item{
		SubjectID: "subject-1",
		Kind:      queue.KindMedication,
		Category:  "medication",
		Severity:  queue.SeverityHigh,
		Title:     "Evening medication check",
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	it, err = f.queue.Claim(ctx, it.ID, actor, it.Version)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	return it
}

func countEvents(t *testing.T, f *fixture, subjectID, refID string, et timeline.EventType) int {
	t.Helper()
	page, err := f.tl.List(context.Background(), subjectID,
		timeline.Filter{RefID: refID, EventTypes: []timeline.EventType{et}}, "", 100)
	if err != nil {
		t.Fatalf("List timeline: %v", err)
	}
	return len(page.Entries)
}

func TestCaptureCompletesItem(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	it := claimedMedItem(t, f, "nurse")

	res, err := f.svc.Capture(ctx, &CaptureRequest{
		ItemID:          it.ID,
		ExpectedVersion: it.Version,
		ActorID:         "nurse",
		Result:          ResultSuccess,
	})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if res.Item.Status != queue.StatusCompleted {
		t.Errorf("item status = %s, want completed", res.Item.Status)
	}
	if res.Outcome.ActionTaken != "All doses verified and taken" {
		t.Errorf("action taken = %q", res.Outcome.ActionTaken)
	}
	if res.Outcome.Template != TypeMedication {
		t.Errorf("template = %s, want medication", res.Outcome.Template)
	}
	if len(res.FollowUps) != 0 {
		t.Errorf("success generated %d follow-ups", len(res.FollowUps))
	}
	if n := countEvents(t, f, it.SubjectID, it.ID, timeline.EventOutcomeCaptured); n != 1 {
		t.Errorf("outcome_captured entries = %d, want 1", n)
	}

	got, err := f.svc.ForItem(ctx, it.ID)
	if err != nil {
		t.Fatalf("ForItem: %v", err)
	}
	if got.ID != res.Outcome.ID {
		t.Errorf("stored outcome %s, want %s", got.ID, res.Outcome.ID)
	}
}

func TestFailedMedicationGeneratesFollowUp(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	it := claimedMedItem(t, f, "nurse")
	before := time.Now()

	res, err := f.svc.Capture(ctx, &CaptureRequest{
		ItemID:          it.ID,
		ExpectedVersion: it.Version,
		ActorID:         "nurse",
		Result:          ResultFailed,
		Notes:           "two of three doses not taken",
	})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if len(res.FollowUps) != 1 {
		t.Fatalf("follow-ups = %d, want 1", len(res.FollowUps))
	}

	fu, err := f.queue.Get(ctx, res.FollowUps[0])
	if err != nil {
		t.Fatalf("Get follow-up: %v", err)
	}
	if fu.Status != queue.StatusNew {
		t.Errorf("follow-up status = %s, want new", fu.Status)
	}
	if fu.Kind != queue.KindFollowup {
		t.Errorf("follow-up kind = %s, want followup", fu.Kind)
	}
	if fu.Title != "Follow up on missed medication doses" {
		t.Errorf("follow-up title = %q", fu.Title)
	}
	if fu.EstimatedMinutes != 15 {
		t.Errorf("follow-up estimate = %d, want template's 15", fu.EstimatedMinutes)
	}
	wantDue := before.Add(4 * time.Hour)
	if fu.DueAt.Before(wantDue.Add(-time.Minute)) || fu.DueAt.After(wantDue.Add(time.Minute)) {
		t.Errorf("follow-up due %v, want about %v", fu.DueAt, wantDue)
	}
	if n := countEvents(t, f, it.SubjectID, fu.ID, timeline.EventFollowupCreated); n != 1 {
		t.Errorf("followup_created entries = %d, want 1", n)
	}
}

func TestDoubleCaptureFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	it := claimedMedItem(t, f, "nurse")

	req := &CaptureRequest{
		ItemID:          it.ID,
		ExpectedVersion: it.Version,
		ActorID:         "nurse",
		Result:          ResultSuccess,
	}
	if _, err := f.svc.Capture(ctx, req); err != nil {
		t.Fatalf("first Capture: %v", err)
	}
	if _, err := f.svc.Capture(ctx, req); err == nil {
		t.Fatal("second capture succeeded")
	}
	if n := countEvents(t, f, it.SubjectID, it.ID, timeline.EventOutcomeCaptured); n != 1 {
		t.Errorf("outcome_captured entries = %d, want 1", n)
	}
	if len(f.store.byID) != 1 {
		t.Errorf("stored outcomes = %d, want 1", len(f.store.byID))
	}
}

func TestCaptureRequiresInProgress(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	it, err := f.queue.Enqueue(ctx, &queue.Item{
		SubjectID: "subject-1",
		Kind:      queue.KindTask,
		Severity:  queue.SeverityMedium,
		Title:     "Grocery run",
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	_, err = f.svc.Capture(ctx, &CaptureRequest{
		ItemID:          it.ID,
		ExpectedVersion: it.Version,
		ActorID:         "nurse",
		Result:          ResultSuccess,
	})
	if !errors.Is(err, queue.ErrInvalidStateTransition) {
		t.Errorf("err = %v, want ErrInvalidStateTransition", err)
	}
}

func TestCaptureOwnership(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	it := claimedMedItem(t, f, "nurse")

	_, err := f.svc.Capture(ctx, &CaptureRequest{
		ItemID:          it.ID,
		ExpectedVersion: it.Version,
		ActorID:         "neighbor",
		Result:          ResultSuccess,
	})
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}

	// Administrative override bypasses the ownership check.
	res, err := f.svc.Capture(ctx, &CaptureRequest{
		ItemID:          it.ID,
		ExpectedVersion: it.Version,
		ActorID:         "admin-1",
		Admin:           true,
		Result:          ResultSuccess,
	})
	if err != nil {
		t.Fatalf("admin Capture: %v", err)
	}
	if res.Outcome.RecordedBy != "admin-1" {
		t.Errorf("recorded by %s, want admin-1", res.Outcome.RecordedBy)
	}
}

func TestCaptureValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  CaptureRequest
	}{
		{"unknown result", CaptureRequest{Result: "done"}},
		{"unknown option", CaptureRequest{Result: ResultSuccess, ActionTaken: "Shrugged"}},
		{"option result mismatch", CaptureRequest{Result: ResultSuccess, ActionTaken: "Some doses missed", Notes: "n"}},
		{"missing notes on failure", CaptureRequest{Result: ResultFailed}},
		{"evidence type not accepted", CaptureRequest{
			Result:   ResultSuccess,
			Evidence: []Evidence{{Type: EvidenceVideo, Ref: "clip-1"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			it := claimedMedItem(t, f, "nurse")
			req := tt.req
			req.ItemID = it.ID
			req.ExpectedVersion = it.Version
			req.ActorID = "nurse"

			_, err := f.svc.Capture(context.Background(), &req)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
			cur, gerr := f.queue.Get(context.Background(), it.ID)
			if gerr != nil {
				t.Fatalf("Get: %v", gerr)
			}
			if cur.Status != queue.StatusInProgress {
				t.Errorf("rejected capture moved item to %s", cur.Status)
			}
		})
	}
}
