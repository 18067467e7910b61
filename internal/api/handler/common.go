package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bcnelson/env-manager/internal/domain"
	"github.com/bcnelson/env-manager/internal/validation"
)

// maxBodyBytes bounds request bodies; a group with many items stays far below it.
const maxBodyBytes = 4 << 20

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, &domain.APIError{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// handleError converts domain errors to HTTP errors.
func handleError(w http.ResponseWriter, err error) {
	var (
		applyErr *domain.ApplyError
		verrs    validation.ValidationErrors
		verr     *validation.ValidationError
	)
	switch {
	// Checked first: a failed batch can wrap a forbidden or not-found cause,
	// and the client must still learn which writes landed.
	case errors.As(err, &applyErr):
		respondJSON(w, http.StatusInternalServerError, &domain.APIError{
			Status:  http.StatusInternalServerError,
			Code:    domain.ErrCodeApplyFailed,
			Message: err.Error(),
			Applied: applyErr.Written,
		})
	case errors.As(err, &verrs):
		respondValidationErrors(w, verrs)
	case errors.As(err, &verr):
		respondValidationErrors(w, validation.ValidationErrors{verr})
	case errors.Is(err, domain.ErrForbidden):
		respondError(w, http.StatusForbidden, domain.ErrCodeForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, domain.ErrCodeResourceNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		respondError(w, http.StatusConflict, domain.ErrCodeInvalidInput, "already exists")
	case errors.Is(err, domain.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "unauthorized")
	default:
		slog.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, domain.ErrCodeInternalError, "internal server error")
	}
}

// decodeJSON decodes JSON from request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidInput
	}
	return nil
}

// respondValidationErrors writes a JSON response for validation errors.
func respondValidationErrors(w http.ResponseWriter, errs validation.ValidationErrors) {
	respondJSON(w, http.StatusBadRequest, &domain.APIError{
		Status:  http.StatusBadRequest,
		Code:    domain.ErrCodeValidationError,
		Message: errs.Error(),
		Details: errs,
	})
}
