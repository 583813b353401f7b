package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/careops/internal/timeline"
)

// PlanChecker answers whether a protocol plan id exists. It breaks the
// import cycle with the protocol package.
type PlanChecker interface {
	PlanExists(ctx context.Context, id string) (bool, error)
}

// Service is the business boundary for queue operations. Every lifecycle
// change goes through here so that the audit entry and the store write
// happen together.
type Service struct {
	store   Store
	tl      timeline.Store
	plans   PlanChecker
	metrics *Metrics
	logger  log.Logger
	now     func() time.Time
}

// NewService creates a new queue service. plans may be nil when plan
// references are validated upstream.
func NewService(store Store, tl timeline.Store, plans PlanChecker, metrics *Metrics, logger log.Logger) *Service {
	return &Service{
		store:   store,
		tl:      tl,
		plans:   plans,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// SetPlanChecker installs the plan resolver after construction. The queue
// and protocol services reference each other; the queue is built first.
func (s *Service) SetPlanChecker(p PlanChecker) {
	s.plans = p
}

// Enqueue validates and persists a new item, starting it in status new at
// version 1, and records the creation on the subject's timeline.
func (s *Service) Enqueue(ctx context.Context, it *Item) (*Item, error) {
	if it.SubjectID == "" {
		return nil, fmt.Errorf("queue: enqueue: missing subject id")
	}
	if !it.Kind.Valid() {
		return nil, fmt.Errorf("queue: enqueue: unknown kind %q", it.Kind)
	}
	if !it.Severity.Valid() {
		return nil, fmt.Errorf("queue: enqueue: unknown severity %q", it.Severity)
	}
	if err := s.checkRefs(ctx, it); err != nil {
		return nil, err
	}

	now := s.now()
	it.ID = ulid.Make().String()
	it.Status = StatusNew
	it.Version = 1
	it.EscalationCount = 0
	it.CreatedAt = now
	it.UpdatedAt = now

	if err := s.store.Insert(ctx, it); err != nil {
		return nil, err
	}
	if err := s.record(ctx, it, timeline.EventQueueItemCreated, "", map[string]any{
		"kind":     string(it.Kind),
		"severity": string(it.Severity),
		"title":    it.Title,
	}); err != nil {
		return nil, err
	}

	s.metrics.EnqueuedTotal.WithLabelValues(string(it.Kind), string(it.Severity)).Inc()
	s.logger.Info(ctx, "item enqueued",
		"item_id", it.ID,
		"subject_id", it.SubjectID,
		"kind", it.Kind,
		"severity", it.Severity,
	)
	return it, nil
}

// EnqueueTask stores the task and enqueues its backing queue item. The task
// record keeps the what, the item keeps the scheduling state.
func (s *Service) EnqueueTask(ctx context.Context, t *Task) (*Item, error) {
	if t.ID == "" {
		t.ID = ulid.Make().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	if err := s.store.InsertTask(ctx, t); err != nil {
		return nil, err
	}

	kind := KindTask
	switch t.Category {
	case "medication":
		kind = KindMedication
	case "checkin":
		kind = KindCheckin
	case "followup":
		kind = KindFollowup
	}
	minutes := t.EstimatedMinutes
	if minutes <= 0 {
		minutes = estimateMinutes(t)
	}
	return s.Enqueue(ctx, &Item{
		SubjectID:        t.SubjectID,
		Kind:             kind,
		Category:         t.Category,
		Severity:         t.Priority,
		Title:            t.Title,
		DueAt:            t.DueAt,
		EstimatedMinutes: minutes,
		TaskID:           t.ID,
	})
}

// Get returns the item by id.
func (s *Service) Get(ctx context.Context, id string) (*Item, error) {
	return s.store.Get(ctx, id)
}

// GetTask returns the task by id.
func (s *Service) GetTask(ctx context.Context, id string) (*Task, error) {
	return s.store.GetTask(ctx, id)
}

// Transition moves an item along a valid edge under optimistic concurrency.
// On a version conflict the returned item is the current stored state so
// the caller can re-decide. A move to escalated bumps the escalation count.
func (s *Service) Transition(ctx context.Context, id string, to Status, expected int, actorID string) (*Item, error) {
	it, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.Version != expected {
		s.metrics.ConflictsTotal.Inc()
		return it, ErrConcurrentModification
	}
	if !CanTransition(it.Status, to) {
		s.metrics.InvalidTotal.Inc()
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, it.Status, to)
	}

	from := it.Status
	it.Status = to
	if to == StatusEscalated {
		it.EscalationCount++
	}
	it.UpdatedAt = s.now()

	cur, err := s.store.Update(ctx, it, expected)
	if err != nil {
		if err == ErrConcurrentModification {
			s.metrics.ConflictsTotal.Inc()
		}
		return cur, err
	}
	if err := s.record(ctx, cur, timeline.EventQueueItemTransition, actorID, map[string]any{
		"from":    string(from),
		"to":      string(to),
		"version": cur.Version,
	}); err != nil {
		return nil, err
	}

	s.metrics.TransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	if to == StatusCompleted {
		s.metrics.CompletionTime.WithLabelValues(string(cur.Kind), string(cur.Severity)).
			Observe(s.now().Sub(cur.CreatedAt).Seconds())
	}
	s.logger.Info(ctx, "item transitioned",
		"item_id", id,
		"from", from,
		"to", to,
		"actor_id", actorID,
	)
	return cur, nil
}

// Claim moves a new or escalated item to in_progress and records the
// assignee, under the same version check as any other transition.
func (s *Service) Claim(ctx context.Context, id, personID string, expected int) (*Item, error) {
	it, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.Version != expected {
		s.metrics.ConflictsTotal.Inc()
		return it, ErrConcurrentModification
	}
	if !CanTransition(it.Status, StatusInProgress) {
		s.metrics.InvalidTotal.Inc()
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, it.Status, StatusInProgress)
	}

	from := it.Status
	it.Status = StatusInProgress
	it.AssignedTo = personID
	it.UpdatedAt = s.now()

	cur, err := s.store.Update(ctx, it, expected)
	if err != nil {
		if err == ErrConcurrentModification {
			s.metrics.ConflictsTotal.Inc()
		}
		return cur, err
	}
	if err := s.record(ctx, cur, timeline.EventItemAssigned, personID, map[string]any{
		"from":        string(from),
		"assigned_to": personID,
		"version":     cur.Version,
	}); err != nil {
		return nil, err
	}

	s.metrics.TransitionsTotal.WithLabelValues(string(from), string(StatusInProgress)).Inc()
	s.logger.Info(ctx, "item claimed", "item_id", id, "assigned_to", personID)
	return cur, nil
}

// Snooze parks an in_progress item until the given time. The wake sweep
// returns it to new once the snooze expires.
func (s *Service) Snooze(ctx context.Context, id string, until time.Time, expected int, actorID string) (*Item, error) {
	it, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.Version != expected {
		s.metrics.ConflictsTotal.Inc()
		return it, ErrConcurrentModification
	}
	if !CanTransition(it.Status, StatusSnoozed) {
		s.metrics.InvalidTotal.Inc()
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, it.Status, StatusSnoozed)
	}

	from := it.Status
	it.Status = StatusSnoozed
	it.DueAt = until
	it.UpdatedAt = s.now()

	cur, err := s.store.Update(ctx, it, expected)
	if err != nil {
		return cur, err
	}
	if err := s.record(ctx, cur, timeline.EventQueueItemTransition, actorID, map[string]any{
		"from":  string(from),
		"to":    string(StatusSnoozed),
		"until": until.UTC().Format(time.RFC3339),
	}); err != nil {
		return nil, err
	}
	s.metrics.TransitionsTotal.WithLabelValues(string(from), string(StatusSnoozed)).Inc()
	return cur, nil
}

// WakeSnoozed returns every snoozed item whose snooze has expired to new.
// Called periodically by the server loop.
func (s *Service) WakeSnoozed(ctx context.Context) (int, error) {
	items, err := s.store.List(ctx, "")
	if err != nil {
		return 0, err
	}
	now := s.now()
	woken := 0
	for i := range items {
		it := &items[i]
		if it.Status != StatusSnoozed || it.DueAt.After(now) {
			continue
		}
		if _, err := s.Transition(ctx, it.ID, StatusNew, it.Version, "system"); err != nil {
			s.logger.Error(ctx, err, "failed to wake snoozed item", "item_id", it.ID)
			continue
		}
		woken++
	}
	return woken, nil
}

// Requeue returns a claimed or escalated item to new and clears its
// assignee. System path used when an assignee is deactivated or drops out;
// not reachable from the normal transition table.
func (s *Service) Requeue(ctx context.Context, id, actorID string) (*Item, error) {
	it, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.Status != StatusInProgress && it.Status != StatusEscalated {
		return nil, fmt.Errorf("%w: requeue requires in_progress or escalated, item is %s", ErrInvalidStateTransition, it.Status)
	}

	expected := it.Version
	from := it.Status
	it.Status = StatusNew
	it.AssignedTo = ""
	it.UpdatedAt = s.now()

	cur, err := s.store.Update(ctx, it, expected)
	if err != nil {
		return cur, err
	}
	if err := s.record(ctx, cur, timeline.EventQueueItemTransition, actorID, map[string]any{
		"from":   string(from),
		"to":     string(StatusNew),
		"reason": "requeued",
	}); err != nil {
		return nil, err
	}
	s.metrics.TransitionsTotal.WithLabelValues(string(from), string(StatusNew)).Inc()
	s.logger.Info(ctx, "item requeued", "item_id", id, "actor_id", actorID)
	return cur, nil
}

// AdminReopen returns a completed item to new. This is the only path out of
// completed and it is audited with the administrator's identity.
func (s *Service) AdminReopen(ctx context.Context, id, adminID string) (*Item, error) {
	it, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.Status != StatusCompleted {
		return nil, fmt.Errorf("%w: reopen requires completed, item is %s", ErrInvalidStateTransition, it.Status)
	}

	expected := it.Version
	it.Status = StatusNew
	it.AssignedTo = ""
	it.UpdatedAt = s.now()

	cur, err := s.store.Update(ctx, it, expected)
	if err != nil {
		return cur, err
	}
	if err := s.record(ctx, cur, timeline.EventItemReopenedByAdmin, adminID, map[string]any{
		"version": cur.Version,
	}); err != nil {
		return nil, err
	}

	s.metrics.ReopensTotal.Inc()
	s.logger.Warn(ctx, "completed item reopened by admin", "item_id", id, "admin_id", adminID)
	return cur, nil
}

// List returns the filtered queue view in priority order.
func (s *Service) List(ctx context.Context, f Filter) ([]Item, error) {
	items, err := s.store.List(ctx, f.SubjectID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := items[:0]
	for i := range items {
		if f.Matches(&items[i], now) {
			out = append(out, items[i])
		}
	}
	SortByPriority(out, now)
	return out, nil
}

func (s *Service) checkRefs(ctx context.Context, it *Item) error {
	if it.TaskID != "" {
		if _, err := s.store.GetTask(ctx, it.TaskID); err != nil {
			if err == ErrNotFound {
				return fmt.Errorf("%w: task %s", ErrDanglingRef, it.TaskID)
			}
			return err
		}
	}
	if it.PlanID != "" && s.plans != nil {
		ok, err := s.plans.PlanExists(ctx, it.PlanID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: plan %s", ErrDanglingRef, it.PlanID)
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, it *Item, et timeline.EventType, actorID string, payload map[string]any) error {
	return s.tl.Append(ctx, &timeline.Entry{
		ID:        ulid.Make().String(),
		SubjectID: it.SubjectID,
		EventType: et,
		Timestamp: s.now(),
		ActorID:   actorID,
		RefID:     it.ID,
		Payload:   payload,
	})
}

func estimateMinutes(t *Task) int {
	if n := len(t.Checklist); n > 0 {
		return 5 + 5*n
	}
	return 15
}
