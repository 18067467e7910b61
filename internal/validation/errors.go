package validation

import (
	"fmt"
	"strings"

	"github.com/bcnelson/env-manager/internal/domain"
)

// maxEchoLength bounds the offending input echoed back in an error.
const maxEchoLength = 64

// ValidationError is one rejected field of a variable or group form.
// Input is the offending input, truncated; variable values are never echoed
// since they may hold credentials.
type ValidationError struct {
	Field   string `json:"field"`
	Input   string `json:"input,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets callers match validation failures with domain.ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return domain.ErrInvalidInput
}

// ValidationErrors collects every rejected field of one form, in form order.
type ValidationErrors []*ValidationError

// Error lists the first few failures.
func (e ValidationErrors) Error() string {
	const shown = 3
	msgs := make([]string, 0, shown)
	for i, ve := range e {
		if i == shown {
			break
		}
		msgs = append(msgs, ve.Error())
	}
	msg := strings.Join(msgs, "; ")
	if len(e) > shown {
		msg += fmt.Sprintf(" (and %d more)", len(e)-shown)
	}
	return msg
}

// Unwrap lets callers match validation failures with domain.ErrInvalidInput.
func (e ValidationErrors) Unwrap() error {
	return domain.ErrInvalidInput
}

// Add records a failure of field. input is echoed back truncated.
func (e *ValidationErrors) Add(field, input, message string) {
	if len(input) > maxEchoLength {
		input = input[:maxEchoLength] + "…"
	}
	*e = append(*e, &ValidationError{Field: field, Input: input, Message: message})
}

// Err returns the collection as an error, or nil when it is empty.
func (e ValidationErrors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
