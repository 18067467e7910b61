package handler

import (
	"net/http"
	"strings"

	"github.com/bcnelson/env-manager/internal/domain"
	"github.com/bcnelson/env-manager/internal/service"
)

// EnvHandler handles live environment variable endpoints.
type EnvHandler struct {
	vars *service.VariableService
}

// NewEnvHandler creates a new EnvHandler.
func NewEnvHandler(vars *service.VariableService) *EnvHandler {
	return &EnvHandler{vars: vars}
}

// List lists every live variable with its remark.
func (h *EnvHandler) List(w http.ResponseWriter, r *http.Request) {
	vars, err := h.vars.List(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, vars)
}

// Upsert creates or updates a variable.
func (h *EnvHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req domain.UpsertVariableRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body")
		return
	}

	scope, err := domain.ParseScope(string(req.Scope))
	if err != nil {
		handleError(w, err)
		return
	}
	v := domain.EnvironmentVariable{
		Name:   strings.TrimSpace(req.Name),
		Value:  req.Value,
		Scope:  scope,
		Remark: strings.TrimSpace(req.Remark),
	}

	if err := h.vars.Upsert(r.Context(), v); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// Delete deletes the variable named by the name and source query parameters.
func (h *EnvHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, "name is required")
		return
	}
	scope, err := domain.ParseScope(r.URL.Query().Get("source"))
	if err != nil {
		handleError(w, err)
		return
	}

	if err := h.vars.Delete(r.Context(), name, scope); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Batch writes several variables in one request.
func (h *EnvHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req domain.BatchApplyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body")
		return
	}

	applied, err := h.vars.BatchApply(r.Context(), req.Variables)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.BatchApplyResponse{Applied: applied})
}

// Prune removes remarks of variables that no longer exist.
func (h *EnvHandler) Prune(w http.ResponseWriter, r *http.Request) {
	n, err := h.vars.PruneRemarks(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, domain.PruneResponse{Pruned: n})
}
