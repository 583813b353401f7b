package assign

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/careops/internal/directory"
	"github.com/linnemanlabs/careops/internal/queue"
	"github.com/linnemanlabs/careops/internal/timeline"
)

// systemActor is the actor id recorded for transitions the escalator makes
// on its own.
const systemActor = "system"

// CircleResolver resolves the active care circle for a subject. The
// directory service satisfies it.
type CircleResolver interface {
	CareCircle(ctx context.Context, subjectID string) ([]directory.Person, error)
}

// Config tunes the escalation timer chain. The thresholds are operational
// policy, not protocol constants, so they come from configuration.
type Config struct {
	// StageOneDelay is how long an unassigned urgent/high item may sit
	// before the primary contact is notified.
	StageOneDelay time.Duration
	// StageTwoDelay is how long after stage one before the full circle
	// is notified and the item is marked escalated.
	StageTwoDelay time.Duration
	// NotifyAttempts bounds delivery retries per notification.
	NotifyAttempts uint
}

func (c Config) withDefaults() Config {
	if c.StageOneDelay <= 0 {
		c.StageOneDelay = 15 * time.Minute
	}
	if c.StageTwoDelay <= 0 {
		c.StageTwoDelay = 45 * time.Minute
	}
	if c.NotifyAttempts == 0 {
		c.NotifyAttempts = 3
	}
	return c
}

// Escalator runs the cancellable two-stage timer chain for unclaimed
// urgent work. Timers are advisory: every fire re-reads the item and
// becomes a no-op if somebody already claimed or resolved it. The chain is
// durable because each stage is derived from a timeline entry, so Resume
// can rebuild pending timers after a restart.
type Escalator struct {
	queue    *queue.Service
	circle   CircleResolver
	notifier Notifier
	tl       timeline.Store
	metrics  *Metrics
	logger   log.Logger
	cfg      Config
	now      func() time.Time

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewEscalator creates an escalator. Call Resume once after construction
// to pick up timer chains that were pending when the process last stopped.
func NewEscalator(q *queue.Service, circle CircleResolver, notifier Notifier, tl timeline.Store, metrics *Metrics, logger log.Logger, cfg Config) *Escalator {
	return &Escalator{
		queue:    q,
		circle:   circle,
		notifier: notifier,
		tl:       tl,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		timers:   make(map[string]*time.Timer),
	}
}

// eligible reports whether an item still qualifies for escalation.
func eligible(it *queue.Item) bool {
	if it.Status != queue.StatusNew || it.AssignedTo != "" {
		return false
	}
	return it.Severity == queue.SeverityUrgent || it.Severity == queue.SeverityHigh
}

// Watch starts the timer chain for a freshly enqueued item. Items that are
// assigned, not urgent/high, or past status new are ignored.
func (e *Escalator) Watch(ctx context.Context, it *queue.Item) error {
	if !eligible(it) {
		return nil
	}
	err := e.tl.Append(ctx, &timeline.Entry{
		ID:        ulid.Make().String(),
		SubjectID: it.SubjectID,
		EventType: timeline.EventEscalationStarted,
		Timestamp: e.now(),
		ActorID:   systemActor,
		RefID:     it.ID,
		Payload: map[string]any{
			"stage_one_delay": e.cfg.StageOneDelay.String(),
			"stage_two_delay": e.cfg.StageTwoDelay.String(),
		},
	})
	if err != nil {
		return fmt.Errorf("assign: record escalation start: %w", err)
	}
	e.metrics.WatchesTotal.Inc()
	e.schedule(it.ID, 1, e.cfg.StageOneDelay)
	e.logger.Info(ctx, "escalation watch started",
		"item_id", it.ID,
		"subject_id", it.SubjectID,
		"severity", it.Severity,
	)
	return nil
}

// Cancel drops any pending timer for the item. Cancellation is advisory:
// a timer that already fired self-checks and no-ops on its own.
func (e *Escalator) Cancel(itemID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.timers[itemID]; ok {
		t.Stop()
		delete(e.timers, itemID)
	}
}

// Resume rebuilds timer chains for items that were pending escalation when
// the process stopped. Remaining time is recomputed from the timestamp of
// the timeline entry that started the wait, never from in-memory state.
func (e *Escalator) Resume(ctx context.Context) error {
	items, err := e.queue.List(ctx, queue.Filter{Statuses: []queue.Status{queue.StatusNew}})
	if err != nil {
		return fmt.Errorf("assign: list pending items: %w", err)
	}
	for i := range items {
		it := &items[i]
		if !eligible(it) {
			continue
		}
		last, ok, err := e.tl.LastByRef(ctx, it.ID)
		if err != nil {
			return fmt.Errorf("assign: read escalation history for %s: %w", it.ID, err)
		}
		switch {
		case ok && last.EventType == timeline.EventEscalationStarted:
			e.schedule(it.ID, 1, e.remaining(last.Timestamp, e.cfg.StageOneDelay))
		case ok && last.EventType == timeline.EventEscalationTriggered:
			e.schedule(it.ID, 2, e.remaining(last.Timestamp, e.cfg.StageTwoDelay))
		default:
			// No chain in flight for this item; start one from stage 1.
			if err := e.Watch(ctx, it); err != nil {
				return err
			}
			continue
		}
		e.logger.Info(ctx, "escalation watch resumed",
			"item_id", it.ID,
			"last_event", string(last.EventType),
		)
	}
	return nil
}

// Stop cancels all pending timers. Fires already in flight self-check and
// find the escalator stopped.
func (e *Escalator) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
}

func (e *Escalator) remaining(started time.Time, delay time.Duration) time.Duration {
	left := delay - e.now().Sub(started)
	if left < 0 {
		return 0
	}
	return left
}

func (e *Escalator) schedule(itemID string, stage int, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	if t, ok := e.timers[itemID]; ok {
		t.Stop()
	}
	e.timers[itemID] = time.AfterFunc(d, func() {
		e.fire(itemID, stage)
	})
}

func (e *Escalator) fire(itemID string, stage int) {
	e.mu.Lock()
	delete(e.timers, itemID)
	stopped := e.stopped
	e.mu.Unlock()
	if stopped {
		return
	}

	ctx := context.Background()
	it, err := e.queue.Get(ctx, itemID)
	if err != nil {
		e.logger.Error(ctx, err, "escalation re-read failed", "item_id", itemID)
		return
	}
	if !eligible(it) {
		// Somebody claimed or resolved the item between the timer being
		// set and it firing.
		e.metrics.StaleTimersTotal.Inc()
		return
	}

	switch stage {
	case 1:
		e.fireStageOne(ctx, it)
	case 2:
		e.fireStageTwo(ctx, it)
	}
}

// fireStageOne notifies the primary contact and arms the stage two timer.
func (e *Escalator) fireStageOne(ctx context.Context, it *queue.Item) {
	people, err := e.circle.CareCircle(ctx, it.SubjectID)
	if err != nil {
		e.logger.Error(ctx, err, "escalation circle lookup failed", "item_id", it.ID)
		return
	}
	primary := primaryContact(people)
	notified := ""
	if primary != nil {
		e.deliver(ctx, it, primary, 1,
			fmt.Sprintf("Unclaimed %s item needs attention: %s", it.Severity, it.Title))
		notified = primary.ID
	} else {
		e.logger.Warn(ctx, "no primary contact for escalation",
			"item_id", it.ID, "subject_id", it.SubjectID)
	}

	err = e.tl.Append(ctx, &timeline.Entry{
		ID:        ulid.Make().String(),
		SubjectID: it.SubjectID,
		EventType: timeline.EventEscalationTriggered,
		Timestamp: e.now(),
		ActorID:   systemActor,
		RefID:     it.ID,
		Payload:   map[string]any{"stage": 1, "notified": notified},
	})
	if err != nil {
		e.logger.Error(ctx, err, "escalation audit write failed", "item_id", it.ID)
		return
	}
	e.metrics.TriggeredTotal.Inc()
	e.schedule(it.ID, 2, e.cfg.StageTwoDelay)
	e.logger.Info(ctx, "escalation triggered", "item_id", it.ID, "notified", notified)
}

// fireStageTwo broadcasts to the whole circle and marks the item escalated.
func (e *Escalator) fireStageTwo(ctx context.Context, it *queue.Item) {
	cur, err := e.queue.Transition(ctx, it.ID, queue.StatusEscalated, it.Version, systemActor)
	if err != nil {
		if err == queue.ErrConcurrentModification {
			// Lost the race to a human action, which is the outcome the
			// chain exists to produce.
			e.metrics.StaleTimersTotal.Inc()
			return
		}
		e.logger.Error(ctx, err, "escalation transition failed", "item_id", it.ID)
		return
	}

	people, err := e.circle.CareCircle(ctx, it.SubjectID)
	if err != nil {
		e.logger.Error(ctx, err, "escalation circle lookup failed", "item_id", it.ID)
		return
	}
	notified := make([]string, 0, len(people))
	for i := range people {
		p := &people[i]
		e.deliver(ctx, cur, p, 2,
			fmt.Sprintf("Escalated %s item is still unclaimed: %s", cur.Severity, cur.Title))
		notified = append(notified, p.ID)
	}

	err = e.tl.Append(ctx, &timeline.Entry{
		ID:        ulid.Make().String(),
		SubjectID: cur.SubjectID,
		EventType: timeline.EventEscalationBroadcast,
		Timestamp: e.now(),
		ActorID:   systemActor,
		RefID:     cur.ID,
		Payload:   map[string]any{"stage": 2, "notified": notified},
	})
	if err != nil {
		e.logger.Error(ctx, err, "escalation audit write failed", "item_id", cur.ID)
		return
	}
	e.metrics.BroadcastsTotal.Inc()
	e.logger.Warn(ctx, "escalation broadcast",
		"item_id", cur.ID,
		"subject_id", cur.SubjectID,
		"notified", len(notified),
	)
}

// deliver sends one notification with bounded exponential backoff. An
// exhausted delivery is recorded on the timeline and logged at error level
// so it surfaces operationally; escalation never fails silently.
func (e *Escalator) deliver(ctx context.Context, it *queue.Item, p *directory.Person, stage int, message string) {
	n := &Notification{
		PersonID:  p.ID,
		Contact:   p.Contact,
		SubjectID: it.SubjectID,
		ItemID:    it.ID,
		Severity:  it.Severity,
		Message:   message,
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, e.notifier.Send(ctx, n)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(e.cfg.NotifyAttempts),
	)
	if err == nil {
		return
	}

	e.metrics.NotifyFailuresTotal.Inc()
	e.logger.Error(ctx, err, "escalation delivery failed",
		"item_id", it.ID,
		"person_id", p.ID,
		"stage", stage,
	)
	appendErr := e.tl.Append(ctx, &timeline.Entry{
		ID:        ulid.Make().String(),
		SubjectID: it.SubjectID,
		EventType: timeline.EventEscalationFailed,
		Timestamp: e.now(),
		ActorID:   systemActor,
		RefID:     it.ID,
		Payload:   map[string]any{"stage": stage, "person_id": p.ID, "error": err.Error()},
	})
	if appendErr != nil {
		e.logger.Error(ctx, appendErr, "escalation failure audit write failed", "item_id", it.ID)
	}
}

// primaryContact picks the best escalation target: the priority one
// caregiver if present, otherwise the lowest-numbered relationship tier.
func primaryContact(people []directory.Person) *directory.Person {
	var best *directory.Person
	for i := range people {
		p := &people[i]
		if p.RelationshipPriority <= 0 {
			continue
		}
		if best == nil || p.RelationshipPriority < best.RelationshipPriority {
			best = p
		}
	}
	if best == nil && len(people) > 0 {
		best = &people[0]
	}
	return best
}
