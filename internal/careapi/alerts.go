package careapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/careops/internal/protocol"
)

func (a *API) handleIngestAlert(w http.ResponseWriter, r *http.Request) {
	var al protocol.Alert
	if err := json.NewDecoder(r.Body).Decode(&al); err != nil {
		badRequest(w, "invalid payload")
		return
	}
	if al.SubjectID == "" {
		badRequest(w, "subject_id is required")
		return
	}
	if !al.Severity.Valid() {
		badRequest(w, "unknown severity")
		return
	}

	res, err := a.protocols.IngestAlert(r.Context(), &al)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("careops.alert.id", res.Alert.ID),
		attribute.String("careops.alert.severity", string(res.Alert.Severity)),
	)

	a.watch(r.Context(), res.Item)
	a.writeJSON(w, http.StatusCreated, res)
}

func (a *API) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("careops.alert.id", id))

	al, err := a.protocols.GetAlert(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, al)
}
