// Package validation provides validation functions for environment variables
// and variable groups. Variable names follow the rules the Windows environment
// block imposes: no '=' and no NUL, and at most 32767 characters including the
// value.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bcnelson/env-manager/internal/domain"
)

// MaxVariableLength is the Windows limit for a name=value pair.
const MaxVariableLength = 32767

// MaxNameLength bounds group and item names.
const MaxNameLength = 128

// ValidateVariableName validates the name of an environment variable.
func ValidateVariableName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("variable name must not be empty")
	}
	if name != strings.TrimSpace(name) {
		return fmt.Errorf("variable name must not start or end with whitespace")
	}
	if strings.ContainsRune(name, '=') {
		return fmt.Errorf("variable name must not contain '='")
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("variable name must not contain NUL")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("variable name must be valid UTF-8")
	}
	return nil
}

// ValidateVariableValue validates the value of an environment variable.
func ValidateVariableValue(name, value string) error {
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("variable value must not contain NUL")
	}
	if len(name)+1+len(value) > MaxVariableLength {
		return fmt.Errorf("variable %s exceeds %d characters", name, MaxVariableLength)
	}
	return nil
}

// ValidateScope validates a variable scope.
func ValidateScope(scope domain.Scope) error {
	if !scope.Valid() {
		return fmt.Errorf("scope must be %q or %q", domain.ScopeUser, domain.ScopeSystem)
	}
	return nil
}

// ValidateVariable validates a variable and reports every failing field.
func ValidateVariable(v domain.EnvironmentVariable) error {
	var errs ValidationErrors
	if err := ValidateVariableName(v.Name); err != nil {
		errs.Add("name", v.Name, err.Error())
	}
	if err := ValidateVariableValue(v.Name, v.Value); err != nil {
		errs.Add("value", "", err.Error())
	}
	if err := ValidateScope(v.Scope); err != nil {
		errs.Add("source", string(v.Scope), err.Error())
	}
	return errs.Err()
}

// ValidateGroupName validates the name of a group or of a group item.
func ValidateGroupName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("name must be at most %d characters", MaxNameLength)
	}
	if strings.ContainsAny(name, "\x00\r\n") {
		return fmt.Errorf("name must be a single line")
	}
	return nil
}
