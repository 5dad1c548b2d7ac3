package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aetherlink/commandcenter/internal/audit"
	"github.com/aetherlink/commandcenter/internal/ccerrors"
	"github.com/aetherlink/commandcenter/internal/delivery"
)

type deliveriesHandler struct {
	queue *delivery.Queue
	audit *audit.Store
}

func (h *deliveriesHandler) list(w http.ResponseWriter, r *http.Request) {
	entries, err := h.queue.List(r.Context(), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": entries})
}

func (h *deliveriesHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *deliveriesHandler) history(w http.ResponseWriter, r *http.Request) {
	completed, err := h.queue.History(r.Context(), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": completed})
}

func (h *deliveriesHandler) replay(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	originalID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, ccerrors.NewValidation("id", "must be an integer"))
		return
	}

	replayed, err := h.queue.Replay(r.Context(), originalID)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.audit.Record(r.Context(), audit.Record{
		Actor:    actorFrom(r),
		Action:   audit.ActionReplay,
		TargetID: raw,
		Metadata: map[string]any{"new_delivery_id": replayed.DeliveryID},
		SourceIP: r.RemoteAddr,
	}); err != nil {
		_ = err
	}

	writeJSON(w, http.StatusOK, replayed)
}

func actorFrom(r *http.Request) string {
	if actor := r.Header.Get("X-User-Roles"); actor != "" {
		return actor
	}
	return "unknown"
}
