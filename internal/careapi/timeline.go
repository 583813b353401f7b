package careapi

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/careops/internal/timeline"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

func (a *API) handleTimeline(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	q := r.URL.Query()

	limit := defaultPageSize
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(w, "invalid limit")
			return
		}
		limit = min(n, maxPageSize)
	}

	f := timeline.Filter{RefID: q.Get("ref")}
	for _, t := range splitParam(q.Get("event_type")) {
		f.EventTypes = append(f.EventTypes, timeline.EventType(t))
	}
	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(w, "invalid since timestamp")
			return
		}
		f.Since = ts
	}
	if v := q.Get("until"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(w, "invalid until timestamp")
			return
		}
		f.Until = ts
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("careops.timeline.subject_id", subjectID),
		attribute.Int("careops.timeline.limit", limit),
	)

	page, err := a.tl.List(r.Context(), subjectID, f, q.Get("cursor"), limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"entries": page.Entries,
		"next":    page.Next,
	})
}
