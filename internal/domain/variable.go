package domain

import (
	"fmt"
	"strings"
	"time"
)

// Scope says whether a variable belongs to the current user or the machine.
type Scope string

const (
	ScopeUser   Scope = "user"
	ScopeSystem Scope = "system"
)

// ParseScope parses a scope name. An empty string defaults to ScopeUser.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeUser:
		return ScopeUser, nil
	case ScopeSystem:
		return ScopeSystem, nil
	default:
		return "", fmt.Errorf("%w: unknown scope %q", ErrInvalidInput, s)
	}
}

// Valid reports whether s is one of the known scopes.
func (s Scope) Valid() bool {
	return s == ScopeUser || s == ScopeSystem
}

// EnvironmentVariable is a live environment variable, or one entry of a group
// item. Remark is advisory and never reaches the live environment.
type EnvironmentVariable struct {
	Name   string `json:"name" yaml:"name"`
	Value  string `json:"value" yaml:"value"`
	Scope  Scope  `json:"source" yaml:"source"`
	Remark string `json:"remark" yaml:"remark,omitempty"`
}

// Key returns the identity of the variable in the live environment.
func (v EnvironmentVariable) Key() VariableKey {
	return VariableKey{Name: v.Name, Scope: v.Scope}
}

// VariableKey identifies a live variable. Names are unique per scope.
type VariableKey struct {
	Name  string
	Scope Scope
}

// Property is the stored remark of a live variable.
type Property struct {
	Name      string    `json:"name" db:"name"`
	Scope     Scope     `json:"source" db:"scope"`
	Remark    string    `json:"remark" db:"remark"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// AppliedVariable is one write that reached the live environment.
type AppliedVariable struct {
	Name  string `json:"name"`
	Scope Scope  `json:"source"`
	Value string `json:"value"`
}

// AppliedSet is the ordered list of writes performed by an activation.
type AppliedSet []AppliedVariable

// AppliedFrom converts variables into the writes they represent.
func AppliedFrom(vars []EnvironmentVariable) AppliedSet {
	out := make(AppliedSet, 0, len(vars))
	for _, v := range vars {
		out = append(out, AppliedVariable{Name: v.Name, Scope: v.Scope, Value: v.Value})
	}
	return out
}

// UpsertVariableRequest is the request body for creating or updating a variable.
type UpsertVariableRequest struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Scope  Scope  `json:"source"`
	Remark string `json:"remark"`
}

// BatchApplyRequest is the request body for writing several variables at once.
type BatchApplyRequest struct {
	Variables []EnvironmentVariable `json:"variables"`
}

// BatchApplyResponse is returned after a successful batch write.
type BatchApplyResponse struct {
	Applied AppliedSet `json:"applied"`
}

// AdminStatus is the privilege-check response.
type AdminStatus struct {
	IsAdmin bool `json:"isAdmin"`
}

// PruneResponse reports how many orphaned remarks were removed.
type PruneResponse struct {
	Pruned int `json:"pruned"`
}
