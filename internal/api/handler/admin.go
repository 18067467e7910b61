package handler

import (
	"net/http"

	"github.com/bcnelson/env-manager/internal/domain"
	"github.com/bcnelson/env-manager/internal/permission"
)

// AdminHandler reports the privilege of the server process.
type AdminHandler struct {
	gate permission.Gate
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(gate permission.Gate) *AdminHandler {
	return &AdminHandler{gate: gate}
}

// Get returns whether system variables can be written.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, domain.AdminStatus{IsAdmin: h.gate.IsAdmin()})
}
