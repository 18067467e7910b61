// Package envstore reads and writes the live operating-system environment.
package envstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bcnelson/env-manager/internal/domain"
)

// Backend is the live environment. Implementations return domain.ErrNotFound
// for a missing variable and domain.ErrForbidden when the operating system
// refuses the write.
type Backend interface {
	List(ctx context.Context) ([]domain.EnvironmentVariable, error)
	Set(ctx context.Context, scope domain.Scope, name, value string) error
	Delete(ctx context.Context, scope domain.Scope, name string) error
}

// SortVariables orders variables by scope (system first) then name.
func SortVariables(vars []domain.EnvironmentVariable) {
	sort.SliceStable(vars, func(i, j int) bool {
		if vars[i].Scope != vars[j].Scope {
			return vars[i].Scope == domain.ScopeSystem
		}
		return vars[i].Name < vars[j].Name
	})
}

// StaticPrivilege is a fixed privilege answer.
type StaticPrivilege bool

// IsAdmin implements permission.PrivilegeChecker.
func (p StaticPrivilege) IsAdmin(ctx context.Context) (bool, error) {
	return bool(p), nil
}

// ProcessPrivilege reports whether the current process runs elevated.
type ProcessPrivilege struct{}

// IsAdmin implements permission.PrivilegeChecker.
func (ProcessPrivilege) IsAdmin(ctx context.Context) (bool, error) {
	return IsElevated(), nil
}

// Backend kinds accepted by Open.
const (
	KindAuto     = "auto"
	KindRegistry = "registry"
	KindFile     = "file"
)

// ErrNoRegistry is returned when the registry backend is requested on a
// platform without one.
var ErrNoRegistry = errors.New("registry backend is only available on windows")

// Open returns the backend of the given kind. KindAuto picks the registry
// where there is one and the file at filePath otherwise.
func Open(kind, filePath string, logger *slog.Logger) (Backend, error) {
	switch kind {
	case KindAuto:
		if HasRegistry() {
			return newRegistry(logger)
		}
		return NewFile(filePath, logger), nil
	case KindRegistry:
		return newRegistry(logger)
	case KindFile:
		return NewFile(filePath, logger), nil
	default:
		return nil, fmt.Errorf("unknown environment backend %q", kind)
	}
}
