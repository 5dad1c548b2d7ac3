package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aetherlink/commandcenter/internal/ccerrors"
	"github.com/aetherlink/commandcenter/internal/eventstore"
	"github.com/aetherlink/commandcenter/internal/ingestion"
)

type eventsHandler struct {
	intake *ingestion.Intake
	events *eventstore.Store
}

func (h *eventsHandler) publish(w http.ResponseWriter, r *http.Request) {
	var in ingestion.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, ccerrors.NewValidation("", "malformed JSON body"))
		return
	}

	evt, err := h.intake.Publish(r.Context(), in, tenantFromCtx(r.Context()), r.RemoteAddr)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "accepted",
		"event_id":    evt.EventID,
		"received_at": evt.ReceivedAt,
	})
}

func (h *eventsHandler) recent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := eventstore.Filters{
		EventType: q.Get("event_type"),
		Source:    q.Get("source"),
		Severity:  eventstore.Severity(q.Get("severity")),
		TenantID:  resolveTenant(r),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, ccerrors.NewValidation("since", "must be RFC3339"))
			return
		}
		filters.Since = t
	}

	limit := eventstore.DefaultQueryLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, ccerrors.NewValidation("limit", "must be an integer"))
			return
		}
		limit = n
	}

	events, err := h.events.Query(r.Context(), filters, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *eventsHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.events.StatsFor(r.Context(), resolveTenant(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
