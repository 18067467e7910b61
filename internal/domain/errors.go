package domain

import (
	"errors"
	"fmt"
)

// Common errors used throughout the application.
var (
	ErrNotFound      = errors.New("not found")
	ErrItemNotFound  = fmt.Errorf("group item %w", ErrNotFound)
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("administrator privileges required")
	ErrApplyFailed   = errors.New("apply failed")
	ErrRenamePartial = errors.New("rename partially applied")
	ErrInFlight      = errors.New("operation already in progress")
)

// Error codes for API error responses.
const (
	ErrCodeResourceNotFound = "RESOURCE_NOT_FOUND"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeValidationError  = "VALIDATION_ERROR"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeApplyFailed      = "APPLY_FAILED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// APIError represents an error response from the API.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	// Applied lists the writes that went through before a batch failed.
	Applied []AppliedVariable `json:"applied,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// ApplyError reports a batch write that failed part-way. Written holds the
// variables that reached the live environment before the failure, so the
// live state is neither the old nor the new preset.
type ApplyError struct {
	Written []AppliedVariable
	Err     error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("%v after %d of the batch was written: %v (re-read the environment before retrying)",
		ErrApplyFailed, len(e.Written), e.Err)
}

// Unwrap exposes both ErrApplyFailed and the underlying cause.
func (e *ApplyError) Unwrap() []error {
	return []error{ErrApplyFailed, e.Err}
}

// RenameError reports a delete-then-create sequence whose delete succeeded
// but whose create failed. The old variable is gone.
type RenameError struct {
	Deleted EnvironmentVariable
	Err     error
}

func (e *RenameError) Error() string {
	return fmt.Sprintf("%v: %s (%s) was deleted but its replacement could not be written: %v",
		ErrRenamePartial, e.Deleted.Name, e.Deleted.Scope, e.Err)
}

func (e *RenameError) Unwrap() []error {
	return []error{ErrRenamePartial, e.Err}
}
