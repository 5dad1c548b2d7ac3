package api

import (
	"encoding/json"
	"net/http"

	"github.com/aetherlink/commandcenter/internal/ccerrors"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// errorResponse is the structured error body the spec's taxonomy maps
// onto — every handler failure takes this shape.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, ccerrors.HTTPStatus(err), errorResponse{Error: err.Error()})
}
