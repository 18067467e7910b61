package handler

import (
	"net/http"
	"strconv"

	"github.com/bcnelson/env-manager/internal/domain"
	"github.com/bcnelson/env-manager/internal/service"
)

// SwitchHandler handles group activation endpoints.
type SwitchHandler struct {
	switches *service.SwitchService
}

// NewSwitchHandler creates a new SwitchHandler.
func NewSwitchHandler(switches *service.SwitchService) *SwitchHandler {
	return &SwitchHandler{switches: switches}
}

// Activate makes a group item the live environment.
func (h *SwitchHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req domain.ActivationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body")
		return
	}

	resp, err := h.switches.Activate(r.Context(), req)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Preview returns what an activation would change without writing.
func (h *SwitchHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req domain.ActivationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body")
		return
	}

	plan, err := h.switches.Preview(r.Context(), req)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

// History lists recorded activations.
func (h *SwitchHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := service.DefaultHistoryLimit
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	activations, err := h.switches.History(r.Context(), limit, offset)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, activations)
}
