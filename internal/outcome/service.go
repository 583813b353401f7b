package outcome

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/careops/internal/queue"
	"github.com/linnemanlabs/careops/internal/timeline"
)

// CaptureRequest is one outcome capture attempt.
type CaptureRequest struct {
	ItemID          string     `json:"item_id"`
	ExpectedVersion int        `json:"expected_version"`
	ActorID         string     `json:"actor_id"`
	Result          Result     `json:"result"`
	ActionTaken     string     `json:"action_taken,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	Evidence        []Evidence `json:"evidence,omitempty"`

	// Admin bypasses the ownership check. Set by the caller after a role
	// lookup, never taken from the wire.
	Admin bool `json:"-"`
}

// CaptureResult is what a successful capture produced: the outcome record,
// the completed item, and the ids of any generated follow-up items.
type CaptureResult struct {
	Outcome   *Outcome    `json:"outcome"`
	Item      *queue.Item `json:"item"`
	FollowUps []string    `json:"follow_ups,omitempty"`
}

// Service is the business boundary for outcome capture.
type Service struct {
	store   Store
	queue   *queue.Service
	tl      timeline.Store
	metrics *Metrics
	logger  log.Logger
	now     func() time.Time
}

// NewService creates a new outcome service.
func NewService(store Store, q *queue.Service, tl timeline.Store, metrics *Metrics, logger log.Logger) *Service {
	return &Service{
		store:   store,
		queue:   q,
		tl:      tl,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Capture validates the outcome against the item's template, completes the
// item under the queue's version check, records the write-once outcome and
// enqueues any follow-up task the rule table generates. The completion
// transition is the arbiter against double capture: a second call for the
// same version loses the compare-and-swap.
func (s *Service) Capture(ctx context.Context, req *CaptureRequest) (*CaptureResult, error) {
	it, err := s.queue.Get(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if it.Status != queue.StatusInProgress {
		s.metrics.RejectedTotal.WithLabelValues("state").Inc()
		return nil, fmt.Errorf("%w: item %s is %s, capture requires in_progress",
			queue.ErrInvalidStateTransition, it.ID, it.Status)
	}
	if it.AssignedTo != req.ActorID && !req.Admin {
		s.metrics.RejectedTotal.WithLabelValues("ownership").Inc()
		return nil, fmt.Errorf("%w: item %s is assigned to %s", ErrNotOwner, it.ID, it.AssignedTo)
	}

	tpl := TemplateFor(it)
	opt, err := s.resolveOption(tpl, req)
	if err != nil {
		s.metrics.RejectedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	cur, err := s.queue.Transition(ctx, req.ItemID, queue.StatusCompleted, req.ExpectedVersion, req.ActorID)
	if err != nil {
		if err == queue.ErrConcurrentModification {
			s.metrics.RejectedTotal.WithLabelValues("conflict").Inc()
		}
		return nil, err
	}

	o := &Outcome{
		ID:          ulid.Make().String(),
		ItemID:      cur.ID,
		SubjectID:   cur.SubjectID,
		Template:    tpl.Type,
		Result:      req.Result,
		ActionTaken: opt.Label,
		Notes:       req.Notes,
		Evidence:    req.Evidence,
		RecordedBy:  req.ActorID,
		RecordedAt:  s.now(),
	}
	if err := s.store.Put(ctx, o); err != nil {
		return nil, err
	}

	if err := s.tl.Append(ctx, &timeline.Entry{
		ID:        ulid.Make().String(),
		SubjectID: cur.SubjectID,
		EventType: timeline.EventOutcomeCaptured,
		Timestamp: s.now(),
		ActorID:   req.ActorID,
		RefID:     cur.ID,
		Payload: map[string]any{
			"outcome_id":   o.ID,
			"template":     string(tpl.Type),
			"result":       string(req.Result),
			"action_taken": opt.Label,
		},
	}); err != nil {
		return nil, err
	}

	res := &CaptureResult{Outcome: o, Item: cur}
	if opt.FollowUp != nil {
		id, err := s.enqueueFollowUp(ctx, cur, opt.FollowUp)
		if err != nil {
			return nil, err
		}
		res.FollowUps = append(res.FollowUps, id)
	}

	s.metrics.CapturedTotal.WithLabelValues(string(tpl.Type), string(req.Result)).Inc()
	s.logger.Info(ctx, "outcome captured",
		"item_id", cur.ID,
		"template", tpl.Type,
		"result", req.Result,
		"follow_ups", len(res.FollowUps),
	)
	return res, nil
}

// Get retrieves an outcome by id.
func (s *Service) Get(ctx context.Context, id string) (*Outcome, error) {
	return s.store.Get(ctx, id)
}

// ForItem retrieves the outcome recorded for a queue item.
func (s *Service) ForItem(ctx context.Context, itemID string) (*Outcome, error) {
	return s.store.GetByItem(ctx, itemID)
}

// resolveOption maps the request onto one of the template's options. A
// named option must carry the declared result; a bare result picks the
// template's first option with that result.
func (s *Service) resolveOption(tpl *Template, req *CaptureRequest) (*Option, error) {
	if !req.Result.Valid() {
		return nil, fmt.Errorf("%w: unknown result %q", ErrValidation, req.Result)
	}
	var opt *Option
	if req.ActionTaken != "" {
		opt = tpl.option(req.ActionTaken)
		if opt == nil {
			return nil, fmt.Errorf("%w: %q is not an option of template %s", ErrValidation, req.ActionTaken, tpl.Type)
		}
		if opt.Result != req.Result {
			return nil, fmt.Errorf("%w: option %q records result %s, not %s",
				ErrValidation, opt.Label, opt.Result, req.Result)
		}
	} else {
		opt = tpl.defaultOption(req.Result)
		if opt == nil {
			return nil, fmt.Errorf("%w: template %s has no option for result %s", ErrValidation, tpl.Type, req.Result)
		}
	}
	if req.Notes == "" && req.Result != ResultSuccess {
		return nil, fmt.Errorf("%w: notes are required for %s outcomes", ErrValidation, req.Result)
	}
	for _, ev := range req.Evidence {
		if !tpl.acceptsEvidence(ev.Type) {
			return nil, fmt.Errorf("%w: template %s does not accept %s evidence", ErrValidation, tpl.Type, ev.Type)
		}
	}
	return opt, nil
}

func (s *Service) enqueueFollowUp(ctx context.Context, it *queue.Item, rule *FollowUpRule) (string, error) {
	item, err := s.queue.EnqueueTask(ctx, &queue.Task{
		ParentID:         it.ID,
		SubjectID:        it.SubjectID,
		Title:            rule.Task.Title,
		Details:          rule.Task.Details,
		Category:         "followup",
		Priority:         rule.Task.Priority,
		DueAt:            s.now().Add(rule.DueIn),
		EstimatedMinutes: rule.Task.EstimatedMinutes,
		Checklist:        rule.Task.Checklist,
	})
	if err != nil {
		return "", err
	}
	if err := s.tl.Append(ctx, &timeline.Entry{
		ID:        ulid.Make().String(),
		SubjectID: it.SubjectID,
		EventType: timeline.EventFollowupCreated,
		Timestamp: s.now(),
		RefID:     item.ID,
		Payload: map[string]any{
			"source_item": it.ID,
			"title":       rule.Task.Title,
		},
	}); err != nil {
		return "", err
	}
	s.metrics.FollowupsTotal.Inc()
	return item.ID, nil
}
