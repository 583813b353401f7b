package careapi

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/careops/internal/protocol"
)

func (a *API) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("careops.plan.id", id))

	p, _, err := a.protocols.CurrentStep(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, p)
}

func (a *API) handleGetPlanStep(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("careops.plan.id", id))

	p, step, err := a.protocols.CurrentStep(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	span.SetAttributes(attribute.String("careops.plan.state", string(p.State)))

	a.writeJSON(w, http.StatusOK, map[string]any{
		"plan_id": p.ID,
		"state":   p.State,
		"step":    step, // nil when the plan is terminal
	})
}

type advanceRequest struct {
	OpID  string         `json:"op_id"`
	Input map[string]any `json:"input"`
}

func (a *API) handleAdvancePlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid payload")
		return
	}
	if req.OpID == "" {
		badRequest(w, "op_id is required")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("careops.plan.id", id),
		attribute.String("careops.plan.op_id", req.OpID),
	)

	res, err := a.protocols.Advance(r.Context(), id, req.OpID, req.Input)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	span.SetAttributes(
		attribute.String("careops.plan.state", string(res.Plan.State)),
		attribute.Bool("careops.plan.replayed", res.Replayed),
	)

	a.notifyEmergency(r.Context(), res.Plan)
	a.writeJSON(w, http.StatusOK, res)
}

// notifyEmergency logs an operator-visible record when a plan lands in the
// emergency services state. The call itself is made by a human; the system
// only surfaces the script and the audit trail.
func (a *API) notifyEmergency(ctx context.Context, p *protocol.Plan) {
	if p == nil || p.State != protocol.StateEmergencyServices {
		return
	}
	a.logger.Warn(ctx, "plan escalated to emergency services",
		"plan_id", p.ID,
		"subject_id", p.SubjectID,
	)
}
