package api

import (
	"net/http"

	"github.com/aetherlink/commandcenter/internal/audit"
)

type auditHandler struct {
	audit *audit.Store
}

func (h *auditHandler) list(w http.ResponseWriter, r *http.Request) {
	records, err := h.audit.List(r.Context(), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (h *auditHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.audit.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
