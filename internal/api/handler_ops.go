package api

import (
	"net/http"

	"github.com/aetherlink/commandcenter/internal/ops"
)

type opsHandler struct {
	services *ops.Registry
}

func (h *opsHandler) ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *opsHandler) listServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"services": h.services.List()})
}
