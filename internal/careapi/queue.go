package careapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/careops/internal/outcome"
	"github.com/linnemanlabs/careops/internal/queue"
)

func (a *API) handleListQueue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := queue.Filter{
		SubjectID:  q.Get("subject_id"),
		AssignedTo: q.Get("assigned_to"),
		Urgent:     boolParam(q.Get("urgent")),
		DueToday:   boolParam(q.Get("due_today")),
		Medication: boolParam(q.Get("medication")),
		Cognitive:  boolParam(q.Get("cognitive")),
		Safety:     boolParam(q.Get("safety")),
	}
	for _, s := range splitParam(q.Get("status")) {
		f.Statuses = append(f.Statuses, queue.Status(s))
	}
	for _, k := range splitParam(q.Get("kind")) {
		f.Kinds = append(f.Kinds, queue.Kind(k))
	}

	items, err := a.queue.List(r.Context(), f)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// enqueueRequest carries either a bare item or a task to enqueue, never
// both.
type enqueueRequest struct {
	Item *queue.Item `json:"item,omitempty"`
	Task *queue.Task `json:"task,omitempty"`
}

func (a *API) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid payload")
		return
	}
	if (req.Item == nil) == (req.Task == nil) {
		badRequest(w, "exactly one of item or task is required")
		return
	}

	var (
		it  *queue.Item
		err error
	)
	switch {
	case req.Item != nil:
		if req.Item.SubjectID == "" {
			badRequest(w, "subject_id is required")
			return
		}
		if !req.Item.Kind.Valid() {
			badRequest(w, "unknown kind")
			return
		}
		if !req.Item.Severity.Valid() {
			badRequest(w, "unknown severity")
			return
		}
		it, err = a.queue.Enqueue(r.Context(), req.Item)
	default:
		if req.Task.SubjectID == "" {
			badRequest(w, "subject_id is required")
			return
		}
		if req.Task.Title == "" {
			badRequest(w, "title is required")
			return
		}
		if !req.Task.Priority.Valid() {
			badRequest(w, "unknown priority")
			return
		}
		it, err = a.queue.EnqueueTask(r.Context(), req.Task)
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("careops.item.id", it.ID),
		attribute.String("careops.item.kind", string(it.Kind)),
	)

	a.watch(r.Context(), it)
	a.writeJSON(w, http.StatusCreated, it)
}

type transitionRequest struct {
	To              queue.Status `json:"to"`
	ExpectedVersion int          `json:"expected_version"`
	ActorID         string       `json:"actor_id"`
}

func (a *API) handleTransition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid payload")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("careops.item.id", id),
		attribute.String("careops.item.to", string(req.To)),
	)

	it, err := a.queue.Transition(r.Context(), id, req.To, req.ExpectedVersion, req.ActorID)
	if errors.Is(err, queue.ErrConcurrentModification) {
		a.writeJSON(w, http.StatusConflict, conflictBody{Error: err.Error(), Current: it})
		return
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.unwatch(id)
	a.writeJSON(w, http.StatusOK, it)
}

type claimRequest struct {
	PersonID        string `json:"person_id"`
	ExpectedVersion int    `json:"expected_version"`
}

func (a *API) handleClaim(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid payload")
		return
	}
	if req.PersonID == "" {
		badRequest(w, "person_id is required")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("careops.item.id", id),
		attribute.String("careops.item.assigned_to", req.PersonID),
	)

	it, err := a.queue.Claim(r.Context(), id, req.PersonID, req.ExpectedVersion)
	if errors.Is(err, queue.ErrConcurrentModification) {
		a.writeJSON(w, http.StatusConflict, conflictBody{Error: err.Error(), Current: it})
		return
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.unwatch(id)
	a.writeJSON(w, http.StatusOK, it)
}

type snoozeRequest struct {
	Until           time.Time `json:"until"`
	ExpectedVersion int       `json:"expected_version"`
	ActorID         string    `json:"actor_id"`
}

func (a *API) handleSnooze(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req snoozeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid payload")
		return
	}
	if req.Until.IsZero() {
		badRequest(w, "until is required")
		return
	}

	it, err := a.queue.Snooze(r.Context(), id, req.Until, req.ExpectedVersion, req.ActorID)
	if errors.Is(err, queue.ErrConcurrentModification) {
		a.writeJSON(w, http.StatusConflict, conflictBody{Error: err.Error(), Current: it})
		return
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, it)
}

func (a *API) handleRecommend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	it, err := a.queue.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	people, err := a.people.CareCircle(r.Context(), it.SubjectID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	rec, err := a.scorer.Recommend(it, people, time.Now())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.metrics.RecommendationsTotal.WithLabelValues(strconv.FormatBool(rec.Fallback)).Inc()

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("careops.item.id", id),
		attribute.Bool("careops.assign.fallback", rec.Fallback),
	)

	a.writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleCaptureOutcome(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req outcome.CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid payload")
		return
	}
	req.ItemID = id
	if req.ActorID == "" {
		badRequest(w, "actor_id is required")
		return
	}

	// Ownership overrides come from the directory role, not the payload.
	admin, err := a.people.IsAdmin(r.Context(), req.ActorID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	req.Admin = admin

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("careops.item.id", id),
		attribute.String("careops.outcome.result", string(req.Result)),
	)

	res, err := a.outcomes.Capture(r.Context(), &req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.unwatch(id)
	a.writeJSON(w, http.StatusCreated, res)
}

type reopenRequest struct {
	AdminID string `json:"admin_id"`
}

func (a *API) handleReopen(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req reopenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid payload")
		return
	}
	if req.AdminID == "" {
		badRequest(w, "admin_id is required")
		return
	}

	admin, err := a.people.IsAdmin(r.Context(), req.AdminID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if !admin {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}

	it, err := a.queue.AdminReopen(r.Context(), id, req.AdminID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.watch(r.Context(), it)
	a.writeJSON(w, http.StatusOK, it)
}

// boolParam treats "true" and "1" as set; anything else is unset.
func boolParam(v string) bool {
	return v == "true" || v == "1"
}

func splitParam(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
