// Package careapi exposes the care-operations workflow over HTTP: alert
// intake, guided plan advancement, queue operations, assignment
// recommendations, outcome capture, the people directory and the audit
// timeline.
package careapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/careops/internal/assign"
	"github.com/linnemanlabs/careops/internal/directory"
	"github.com/linnemanlabs/careops/internal/outcome"
	"github.com/linnemanlabs/careops/internal/protocol"
	"github.com/linnemanlabs/careops/internal/queue"
	"github.com/linnemanlabs/careops/internal/timeline"
)

// Watcher observes queue items for escalation. Nil means no escalation
// watching.
type Watcher interface {
	Watch(ctx context.Context, it *queue.Item) error
	Cancel(itemID string)
}

// Deps holds the services the API dispatches to.
type Deps struct {
	Protocols *protocol.Service
	Queue     *queue.Service
	People    *directory.Service
	Outcomes  *outcome.Service
	Scorer    *assign.Scorer
	Timeline  timeline.Store
	Metrics   *assign.Metrics

	// Optional.
	Watcher Watcher
	Auth    func(http.Handler) http.Handler
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger    log.Logger
	protocols *protocol.Service
	queue     *queue.Service
	people    *directory.Service
	outcomes  *outcome.Service
	scorer    *assign.Scorer
	tl        timeline.Store
	metrics   *assign.Metrics
	watcher   Watcher
	auth      func(http.Handler) http.Handler
}

// New creates a new API handler.
func New(logger log.Logger, d Deps) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if d.Protocols == nil {
		panic(xerrors.New("protocol service is required"))
	}
	if d.Queue == nil {
		panic(xerrors.New("queue service is required"))
	}
	if d.People == nil {
		panic(xerrors.New("directory service is required"))
	}
	if d.Outcomes == nil {
		panic(xerrors.New("outcome service is required"))
	}
	if d.Scorer == nil {
		panic(xerrors.New("assignment scorer is required"))
	}
	if d.Timeline == nil {
		panic(xerrors.New("timeline store is required"))
	}
	if d.Metrics == nil {
		panic(xerrors.New("assignment metrics are required"))
	}
	return &API{
		logger:    logger,
		protocols: d.Protocols,
		queue:     d.Queue,
		people:    d.People,
		outcomes:  d.Outcomes,
		scorer:    d.Scorer,
		tl:        d.Timeline,
		metrics:   d.Metrics,
		watcher:   d.Watcher,
		auth:      d.Auth,
	}
}

// RegisterRoutes attaches API endpoints to the router. Reads are open;
// mutations go through the auth middleware when one is configured.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/alerts/{id}", a.handleGetAlert)
		r.Get("/plans/{id}", a.handleGetPlan)
		r.Get("/plans/{id}/step", a.handleGetPlanStep)
		r.Get("/queue", a.handleListQueue)
		r.Get("/people/{id}", a.handleGetPerson)
		r.Get("/subjects/{subjectID}/circle", a.handleCareCircle)
		r.Get("/timeline/{subjectID}", a.handleTimeline)

		r.Group(func(r chi.Router) {
			if a.auth != nil {
				r.Use(a.auth)
			}
			r.Post("/alerts", a.handleIngestAlert)
			r.Post("/plans/{id}/advance", a.handleAdvancePlan)
			r.Post("/queue", a.handleEnqueue)
			r.Post("/queue/{id}/transition", a.handleTransition)
			r.Post("/queue/{id}/claim", a.handleClaim)
			r.Post("/queue/{id}/snooze", a.handleSnooze)
			r.Post("/queue/{id}/recommend", a.handleRecommend)
			r.Post("/queue/{id}/outcome", a.handleCaptureOutcome)
			r.Post("/queue/{id}/reopen", a.handleReopen)
			r.Post("/people", a.handleAddPerson)
			r.Delete("/people/{id}", a.handleDeactivatePerson)
		})
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	http.Error(w, `{"error":"`+msg+`"}`, http.StatusBadRequest)
}

// conflictBody carries the current item back to a caller who lost a
// version check, so it can re-read and re-decide without another round
// trip.
type conflictBody struct {
	Error   string      `json:"error"`
	Current *queue.Item `json:"current,omitempty"`
}

// writeError maps service errors onto HTTP statuses. Conflicts that carry
// a current item are handled at the call sites.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, queue.ErrNotFound),
		errors.Is(err, protocol.ErrNotFound),
		errors.Is(err, directory.ErrNotFound),
		errors.Is(err, outcome.ErrNotFound):
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	case errors.Is(err, queue.ErrInvalidStateTransition),
		errors.Is(err, protocol.ErrInvalidTransition),
		errors.Is(err, assign.ErrNoEligibleAssignee):
		a.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, queue.ErrConcurrentModification),
		errors.Is(err, outcome.ErrAlreadyCaptured):
		a.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, outcome.ErrNotOwner):
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
	case errors.Is(err, outcome.ErrValidation),
		errors.Is(err, queue.ErrDanglingRef),
		errors.Is(err, protocol.ErrUnknownProtocol):
		a.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		a.logger.Error(r.Context(), err, "request failed", "path", r.URL.Path)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

// watch hands an item to the escalation watcher, if one is configured.
// Watch errors never fail the request that created the item.
func (a *API) watch(ctx context.Context, it *queue.Item) {
	if a.watcher == nil || it == nil {
		return
	}
	if err := a.watcher.Watch(ctx, it); err != nil {
		a.logger.Error(ctx, err, "escalation watch failed", "item_id", it.ID)
	}
}

func (a *API) unwatch(itemID string) {
	if a.watcher == nil {
		return
	}
	a.watcher.Cancel(itemID)
}
