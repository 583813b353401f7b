package careapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/careops/internal/directory"
)

func (a *API) handleAddPerson(w http.ResponseWriter, r *http.Request) {
	var p directory.Person
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		badRequest(w, "invalid payload")
		return
	}
	if p.SubjectID == "" {
		badRequest(w, "subject_id is required")
		return
	}
	if p.Name == "" {
		badRequest(w, "name is required")
		return
	}

	created, err := a.people.AddPerson(r.Context(), &p)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("careops.person.id", created.ID))

	a.writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := a.people.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, p)
}

func (a *API) handleDeactivatePerson(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	actor := r.URL.Query().Get("actor")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("careops.person.id", id))

	if err := a.people.Deactivate(r.Context(), id, actor); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCareCircle(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	people, err := a.people.CareCircle(r.Context(), subjectID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"people": people})
}
