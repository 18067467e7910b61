// Package permission decides whether the acting principal may write a scope.
package permission

import (
	"context"
	"fmt"

	"github.com/bcnelson/env-manager/internal/domain"
)

// PrivilegeChecker reports whether the caller has administrator rights.
type PrivilegeChecker interface {
	IsAdmin(ctx context.Context) (bool, error)
}

// Gate holds the administrator flag captured at session start. The flag is
// not re-checked per operation; build a new Gate to pick up a change.
type Gate struct {
	admin bool
}

// NewGate returns a gate for a principal with the given privilege.
func NewGate(admin bool) Gate {
	return Gate{admin: admin}
}

// Detect asks the checker once and returns the resulting gate.
func Detect(ctx context.Context, checker PrivilegeChecker) (Gate, error) {
	admin, err := checker.IsAdmin(ctx)
	if err != nil {
		return Gate{}, fmt.Errorf("checking privileges: %w", err)
	}
	return NewGate(admin), nil
}

// CanWrite reports whether variables of the given scope may be written.
func (g Gate) CanWrite(scope domain.Scope) bool {
	if scope == domain.ScopeSystem {
		return g.admin
	}
	return scope == domain.ScopeUser
}

// IsAdmin returns the cached administrator flag.
func (g Gate) IsAdmin() bool {
	return g.admin
}

// Check returns domain.ErrForbidden when the scope may not be written.
func (g Gate) Check(v domain.EnvironmentVariable) error {
	if !g.CanWrite(v.Scope) {
		return fmt.Errorf("writing %s variable %s: %w", v.Scope, v.Name, domain.ErrForbidden)
	}
	return nil
}
