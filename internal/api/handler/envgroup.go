package handler

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/bcnelson/env-manager/internal/domain"
	"github.com/bcnelson/env-manager/internal/engine"
	"github.com/bcnelson/env-manager/internal/storage"
)

// GroupHandler handles variable group endpoints.
type GroupHandler struct {
	store storage.Storage
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(store storage.Storage) *GroupHandler {
	return &GroupHandler{store: store}
}

// List lists all groups.
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.store.ListGroups(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, groups)
}

// Get gets a group by name.
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	// chi matches on the raw path when the name carries an escaped slash.
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(name)
		if err != nil {
			respondError(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid group name")
			return
		}
		name = unescaped
	}
	if name == "" {
		respondError(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, "name is required")
		return
	}

	group, err := h.store.GetGroup(r.Context(), name)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, group)
}

// Save creates a group or replaces an existing one with the same name.
// The body is normalized the same way an editing client does it.
func (h *GroupHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req domain.Group
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body")
		return
	}

	group, err := engine.CollectGroup(req)
	if err != nil {
		handleError(w, err)
		return
	}

	if err := h.store.SaveGroup(r.Context(), group); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, group)
}

// Delete deletes the group named by the name query parameter.
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, "name is required")
		return
	}

	if err := h.store.DeleteGroup(r.Context(), name); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
