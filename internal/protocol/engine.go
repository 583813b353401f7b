package protocol

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/careops/internal/timeline"
)

// rebuildPageSize bounds a single timeline read while rebuilding. Plans
// have at most a handful of advances, so one page always suffices in
// practice; the loop handles the pathological case anyway.
const rebuildPageSize = 200

// AdvanceResult is the outcome of one advance call.
type AdvanceResult struct {
	Plan     *Plan `json:"plan"`
	Step     *Step `json:"step,omitempty"` // next step's questions, nil when the plan is terminal
	Replayed bool  `json:"replayed"`       // true when the operation id had already been applied
}

// Engine owns plan state machines. The timeline is the source of truth for
// a plan's position: every advance first rebuilds from the audit trail, so
// a crash between the audit write and the record write loses nothing.
type Engine struct {
	store  Store
	tl     timeline.Store
	logger log.Logger
	now    func() time.Time
}

// NewEngine creates a new protocol engine.
func NewEngine(store Store, tl timeline.Store, logger log.Logger) *Engine {
	return &Engine{
		store:  store,
		tl:     tl,
		logger: logger,
		now:    time.Now,
	}
}

// Advance validates input against the current step's schema, applies the
// transition table, appends the audit entry and persists the plan record.
// Retries with the same operation id are no-ops returning the prior result.
func (e *Engine) Advance(ctx context.Context, planID, opID string, input map[string]any) (*AdvanceResult, error) {
	if opID == "" {
		return nil, fmt.Errorf("%w: missing operation id", ErrInvalidTransition)
	}

	p, err := e.Rebuild(ctx, planID)
	if err != nil {
		return nil, err
	}
	tmpl, ok := templates[p.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProtocol, p.Type)
	}

	if applied, ok := p.appliedOps[opID]; ok {
		return &AdvanceResult{
			Plan:     p,
			Step:     tmpl.stepFor(applied),
			Replayed: true,
		}, nil
	}

	if p.State.Terminal() {
		return nil, fmt.Errorf("%w: plan is %s", ErrInvalidTransition, p.State)
	}
	step := tmpl.stepFor(p.State)
	if step == nil {
		return nil, fmt.Errorf("%w: no step for state %s", ErrInvalidTransition, p.State)
	}
	if err := validateInput(step, p.Responses, input); err != nil {
		return nil, err
	}

	merged := make(map[string]any, len(p.Responses)+len(input))
	for k, v := range p.Responses {
		merged[k] = v
	}
	for k, v := range input {
		merged[k] = v
	}

	next := nextState(step, merged)
	from := p.State
	p.State = next
	p.Responses = merged
	switch next {
	case StateEmergencyServices:
		p.Action = EmergencyActionPlan(p.Type)
		p.CompletedAt = e.now()
	case StateActionPlan:
		p.Action = BuildActionPlan(p.Type, merged)
	case StateClosed:
		p.CompletedAt = e.now()
	}

	eventType := timeline.EventPlanStepAdvanced
	switch next {
	case StateEmergencyServices:
		eventType = timeline.EventPlanEmergency
	case StateClosed:
		eventType = timeline.EventPlanCompleted
	}

	// Audit write first. If the record write below fails, the next rebuild
	// recovers this transition from the timeline.
	if err := e.tl.Append(ctx, &timeline.Entry{
		ID:        ulid.Make().String(),
		SubjectID: p.SubjectID,
		EventType: eventType,
		Timestamp: e.now(),
		RefID:     p.ID,
		Payload: map[string]any{
			"op_id":     opID,
			"from":      string(from),
			"to":        string(next),
			"responses": input,
		},
	}); err != nil {
		return nil, err
	}
	if err := e.store.PutPlan(ctx, p); err != nil {
		e.logger.Error(ctx, err, "plan record write failed after audit, will recover from timeline",
			"plan_id", p.ID)
		return nil, err
	}

	e.logger.Info(ctx, "plan advanced",
		"plan_id", p.ID,
		"from", from,
		"to", next,
		"op_id", opID,
	)
	return &AdvanceResult{Plan: p, Step: tmpl.stepFor(next)}, nil
}

// Rebuild returns the plan with its state, responses and applied operation
// set reconstructed from the timeline. The stored record is only trusted
// for identity fields.
func (e *Engine) Rebuild(ctx context.Context, planID string) (*Plan, error) {
	p, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	p.State = StateSafetyCheck
	p.Responses = map[string]any{}
	p.appliedOps = map[string]State{}

	entries, err := e.planEntries(ctx, p)
	if err != nil {
		return nil, err
	}
	// Oldest first.
	for i := len(entries) - 1; i >= 0; i-- {
		en := &entries[i]
		to, _ := en.Payload["to"].(string)
		if to != "" {
			p.State = State(to)
		}
		if opID, _ := en.Payload["op_id"].(string); opID != "" {
			p.appliedOps[opID] = p.State
		}
		if resp, ok := en.Payload["responses"].(map[string]any); ok {
			for k, v := range resp {
				p.Responses[k] = v
			}
		}
	}

	if p.State == StateEmergencyServices {
		p.Action = EmergencyActionPlan(p.Type)
	} else if stateReached(p.State, StateActionPlan) {
		p.Action = BuildActionPlan(p.Type, p.Responses)
	}
	return p, nil
}

// CurrentStep returns the rebuilt plan and the step definition it is
// waiting on (nil for terminal states).
func (e *Engine) CurrentStep(ctx context.Context, planID string) (*Plan, *Step, error) {
	p, err := e.Rebuild(ctx, planID)
	if err != nil {
		return nil, nil, err
	}
	tmpl, ok := templates[p.Type]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownProtocol, p.Type)
	}
	return p, tmpl.stepFor(p.State), nil
}

func (e *Engine) planEntries(ctx context.Context, p *Plan) ([]timeline.Entry, error) {
	var out []timeline.Entry
	cursor := ""
	filter := timeline.Filter{
		RefID: p.ID,
		EventTypes: []timeline.EventType{
			timeline.EventPlanStepAdvanced,
			timeline.EventPlanEmergency,
			timeline.EventPlanCompleted,
		},
	}
	for {
		page, err := e.tl.List(ctx, p.SubjectID, filter, cursor, rebuildPageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Entries...)
		if page.Next == "" {
			return out, nil
		}
		cursor = page.Next
	}
}

var stateOrder = map[State]int{
	StateSafetyCheck:     0,
	StateRapidAssessment: 1,
	StateActionPlan:      2,
	StateOutcomeCapture:  3,
	StateClosed:          4,
}

func stateReached(cur, want State) bool {
	c, ok1 := stateOrder[cur]
	w, ok2 := stateOrder[want]
	return ok1 && ok2 && c >= w
}

func nextState(step *Step, responses map[string]any) State {
	for _, tr := range step.Transitions {
		if tr.When.Holds(responses) {
			return tr.Next
		}
	}
	return StateClosed
}

func validateInput(step *Step, prior, input map[string]any) error {
	for _, q := range step.Questions {
		v, inNew := input[q.ID]
		if !inNew {
			if _, inPrior := prior[q.ID]; q.Required && !inPrior {
				return fmt.Errorf("%w: missing required response %q", ErrInvalidTransition, q.ID)
			}
			continue
		}
		switch q.Type {
		case QuestionYesNo:
			if !isYes(v) && !isNo(v) {
				return fmt.Errorf("%w: %q expects yes/no", ErrInvalidTransition, q.ID)
			}
		case QuestionScale:
			n, ok := asNumber(v)
			if !ok || n < 0 || n > 10 {
				return fmt.Errorf("%w: %q expects a 0-10 scale value", ErrInvalidTransition, q.ID)
			}
		case QuestionMultipleChoice:
			s, ok := v.(string)
			if !ok || !containsOption(q.Options, s) {
				return fmt.Errorf("%w: %q expects one of its options", ErrInvalidTransition, q.ID)
			}
		case QuestionText:
			if _, ok := v.(string); !ok {
				return fmt.Errorf("%w: %q expects text", ErrInvalidTransition, q.ID)
			}
		}
	}
	return nil
}

func containsOption(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}
