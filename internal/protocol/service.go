package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/careops/internal/queue"
	"github.com/linnemanlabs/careops/internal/timeline"
)

// IngestResult is the outcome of accepting an alert.
type IngestResult struct {
	Alert *Alert      `json:"alert"`
	Plan  *Plan       `json:"plan,omitempty"` // set when the alert started a protocol
	Item  *queue.Item `json:"item"`           // the queue item representing the work
}

// Service is the business boundary for alert intake and plan operations.
// Urgent and high alerts with a known protocol type start a plan; every
// other alert becomes a direct check-in task.
type Service struct {
	store   Store
	engine  *Engine
	queue   *queue.Service
	tl      timeline.Store
	metrics *Metrics
	logger  log.Logger
	now     func() time.Time
}

// NewService creates a new protocol service.
func NewService(store Store, engine *Engine, q *queue.Service, tl timeline.Store, metrics *Metrics, logger log.Logger) *Service {
	return &Service{
		store:   store,
		engine:  engine,
		queue:   q,
		tl:      tl,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// IngestAlert accepts an external signal and routes it: a plan plus queue
// item for urgent/high severities with a known protocol, a plain task
// otherwise.
func (s *Service) IngestAlert(ctx context.Context, a *Alert) (*IngestResult, error) {
	if a.SubjectID == "" {
		return nil, fmt.Errorf("protocol: ingest: missing subject id")
	}
	if !a.Severity.Valid() {
		return nil, fmt.Errorf("protocol: ingest: unknown severity %q", a.Severity)
	}
	if a.ID == "" {
		a.ID = ulid.Make().String()
	}
	a.Status = AlertNew
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	if err := s.store.PutAlert(ctx, a); err != nil {
		return nil, err
	}
	if err := s.tl.Append(ctx, &timeline.Entry{
		ID:        ulid.Make().String(),
		SubjectID: a.SubjectID,
		EventType: timeline.EventAlertReceived,
		Timestamp: s.now(),
		RefID:     a.ID,
		Payload: map[string]any{
			"severity": string(a.Severity),
			"type":     a.Type,
		},
	}); err != nil {
		return nil, err
	}
	s.metrics.AlertsTotal.WithLabelValues(string(a.Severity)).Inc()

	tmpl, hasProtocol := TemplateFor(a.Type)
	urgent := a.Severity == queue.SeverityUrgent || a.Severity == queue.SeverityHigh
	if urgent && hasProtocol {
		return s.startPlan(ctx, a, tmpl)
	}
	return s.enqueueCheckin(ctx, a)
}

func (s *Service) startPlan(ctx context.Context, a *Alert, tmpl *Template) (*IngestResult, error) {
	p := &Plan{
		ID:        ulid.Make().String(),
		AlertID:   a.ID,
		SubjectID: a.SubjectID,
		Type:      tmpl.Type,
		State:     StateSafetyCheck,
		Responses: map[string]any{},
		StartedAt: s.now(),
	}
	if err := s.store.PutPlan(ctx, p); err != nil {
		return nil, err
	}
	if err := s.tl.Append(ctx, &timeline.Entry{
		ID:        ulid.Make().String(),
		SubjectID: p.SubjectID,
		EventType: timeline.EventPlanCreated,
		Timestamp: s.now(),
		RefID:     p.ID,
		Payload: map[string]any{
			"alert_id": a.ID,
			"type":     string(p.Type),
		},
	}); err != nil {
		return nil, err
	}

	a.Status = AlertTriaging
	if err := s.store.PutAlert(ctx, a); err != nil {
		return nil, err
	}

	item, err := s.queue.Enqueue(ctx, &queue.Item{
		SubjectID:        a.SubjectID,
		Kind:             queue.KindAlert,
		Category:         a.Type,
		Severity:         a.Severity,
		Title:            fmt.Sprintf("Respond to %s alert", a.Type),
		EstimatedMinutes: 15,
		PlanID:           p.ID,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PlansTotal.WithLabelValues(string(p.Type)).Inc()
	s.logger.Info(ctx, "plan started",
		"plan_id", p.ID,
		"alert_id", a.ID,
		"type", p.Type,
		"severity", a.Severity,
	)
	return &IngestResult{Alert: a, Plan: p, Item: item}, nil
}

func (s *Service) enqueueCheckin(ctx context.Context, a *Alert) (*IngestResult, error) {
	due := s.now().Add(24 * time.Hour)
	if a.Severity == queue.SeverityMedium || a.Severity == queue.SeverityHigh {
		due = s.now().Add(4 * time.Hour)
	}
	item, err := s.queue.EnqueueTask(ctx, &queue.Task{
		ParentID:  a.ID,
		SubjectID: a.SubjectID,
		Title:     fmt.Sprintf("Check on subject: %s", a.Type),
		Details:   fmt.Sprintf("Alert of type %s (severity %s) did not start a guided protocol. Check in and confirm status.", a.Type, a.Severity),
		Category:  "checkin",
		Priority:  a.Severity,
		DueAt:     due,
	})
	if err != nil {
		return nil, err
	}
	return &IngestResult{Alert: a, Item: item}, nil
}

// Advance runs one step of a plan's state machine and applies the side
// effects of reaching a terminal state: follow-up tasks enter the queue and
// the owning alert is closed. Replays skip all side effects.
func (s *Service) Advance(ctx context.Context, planID, opID string, input map[string]any) (*AdvanceResult, error) {
	res, err := s.engine.Advance(ctx, planID, opID, input)
	if err != nil {
		return nil, err
	}
	s.metrics.AdvancesTotal.WithLabelValues(string(res.Plan.State)).Inc()
	if res.Replayed {
		return res, nil
	}

	p := res.Plan
	switch p.State {
	case StateEmergencyServices:
		s.metrics.EmergenciesTotal.Inc()
		if err := s.tl.Append(ctx, &timeline.Entry{
			ID:        ulid.Make().String(),
			SubjectID: p.SubjectID,
			EventType: timeline.EventEmergencyCallStarted,
			Timestamp: s.now(),
			RefID:     p.ID,
			Payload:   map[string]any{"call_script": p.Action.CallScript},
		}); err != nil {
			return nil, err
		}
		if err := s.closeOut(ctx, p); err != nil {
			return nil, err
		}
	case StateClosed:
		if err := s.closeOut(ctx, p); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// closeOut resolves the owning alert and enqueues the action plan's
// follow-up tasks.
func (s *Service) closeOut(ctx context.Context, p *Plan) error {
	s.metrics.PlanDuration.Observe(s.now().Sub(p.StartedAt).Seconds())

	a, err := s.store.GetAlert(ctx, p.AlertID)
	if err == nil {
		a.Status = AlertResolved
		if err := s.store.PutAlert(ctx, a); err != nil {
			return err
		}
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	if p.Action == nil {
		return nil
	}
	for _, ft := range p.Action.FollowUps {
		item, err := s.queue.EnqueueTask(ctx, &queue.Task{
			ParentID:         p.ID,
			SubjectID:        p.SubjectID,
			Title:            ft.Title,
			Details:          ft.Details,
			Category:         "followup",
			Priority:         ft.Priority,
			DueAt:            s.now().Add(time.Duration(ft.DueInHours) * time.Hour),
			EstimatedMinutes: ft.EstimatedMinutes,
			Checklist:        ft.Checklist,
		})
		if err != nil {
			return err
		}
		if err := s.tl.Append(ctx, &timeline.Entry{
			ID:        ulid.Make().String(),
			SubjectID: p.SubjectID,
			EventType: timeline.EventFollowupCreated,
			Timestamp: s.now(),
			RefID:     item.ID,
			Payload: map[string]any{
				"plan_id": p.ID,
				"title":   ft.Title,
			},
		}); err != nil {
			return err
		}
	}
	return nil
}

// CurrentStep returns the rebuilt plan and its pending step.
func (s *Service) CurrentStep(ctx context.Context, planID string) (*Plan, *Step, error) {
	return s.engine.CurrentStep(ctx, planID)
}

// GetAlert returns the alert by id.
func (s *Service) GetAlert(ctx context.Context, id string) (*Alert, error) {
	return s.store.GetAlert(ctx, id)
}

// PlanExists implements queue.PlanChecker.
func (s *Service) PlanExists(ctx context.Context, id string) (bool, error) {
	_, err := s.store.GetPlan(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
