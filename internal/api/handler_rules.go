package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aetherlink/commandcenter/internal/audit"
	"github.com/aetherlink/commandcenter/internal/ccerrors"
	"github.com/aetherlink/commandcenter/internal/evaluator"
	"github.com/aetherlink/commandcenter/internal/rulestore"
)

type rulesHandler struct {
	rules *rulestore.Store
	eval  *evaluator.Evaluator
	audit *audit.Store
}

func (h *rulesHandler) create(w http.ResponseWriter, r *http.Request) {
	var in rulestore.Rule
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, ccerrors.NewValidation("", "malformed JSON body"))
		return
	}
	if in.TenantID == "" {
		in.TenantID = resolveTenant(r)
	}

	rule, err := h.rules.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	h.recordAudit(r, audit.ActionRuleCreate, strconv.FormatInt(rule.RuleID, 10), map[string]any{"name": rule.Name})

	writeJSON(w, http.StatusCreated, rule)
}

func (h *rulesHandler) list(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.List(r.Context(), false)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func (h *rulesHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := ruleIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rule, err := h.rules.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *rulesHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := ruleIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.rules.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	h.recordAudit(r, audit.ActionRuleDelete, strconv.FormatInt(id, 10), nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (h *rulesHandler) setEnabled(w http.ResponseWriter, r *http.Request) {
	id, err := ruleIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	raw := r.URL.Query().Get("enabled")
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		writeError(w, ccerrors.NewValidation("enabled", "must be true or false"))
		return
	}

	rule, err := h.rules.SetEnabled(r.Context(), id, enabled)
	if err != nil {
		writeError(w, err)
		return
	}
	h.recordAudit(r, audit.ActionRuleSetEnabled, strconv.FormatInt(id, 10), map[string]any{"enabled": enabled})
	writeJSON(w, http.StatusOK, rule)
}

func (h *rulesHandler) evaluate(w http.ResponseWriter, r *http.Request) {
	result, err := h.eval.EvaluateOnce(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	h.recordAudit(r, audit.ActionEvaluateRules, "", map[string]any{"result": result})
	writeJSON(w, http.StatusOK, result)
}

func (h *rulesHandler) recordAudit(r *http.Request, action, targetID string, metadata map[string]any) {
	actor := r.Header.Get("X-User-Roles")
	if actor == "" {
		actor = "unknown"
	}
	if _, err := h.audit.Record(r.Context(), audit.Record{
		Actor: actor, Action: action, TargetID: targetID, Metadata: metadata, SourceIP: r.RemoteAddr,
	}); err != nil {
		// Audit failures never block the underlying mutation; the error
		// is discarded and not logged.
		_ = err
	}
}

func ruleIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ccerrors.NewValidation("id", "must be an integer")
	}
	return id, nil
}
