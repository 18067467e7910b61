//go:build windows

package envstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"github.com/bcnelson/env-manager/internal/domain"
)

const (
	userKeyPath   = `Environment`
	systemKeyPath = `SYSTEM\CurrentControlSet\Control\Session Manager\Environment`

	hwndBroadcast    = 0xFFFF
	wmSettingChange  = 0x001A
	smtoAbortIfHung  = 0x0002
	broadcastTimeout = 5000
)

var (
	user32                 = windows.NewLazySystemDLL("user32.dll")
	procSendMessageTimeout = user32.NewProc("SendMessageTimeoutW")
)

// Registry is the Windows environment stored in the registry.
type Registry struct {
	logger *slog.Logger
}

// Ensure Registry implements Backend.
var _ Backend = (*Registry)(nil)

// NewRegistry returns the registry backend.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

func newRegistry(logger *slog.Logger) (Backend, error) {
	return NewRegistry(logger), nil
}

func scopeKey(scope domain.Scope) (registry.Key, string, error) {
	switch scope {
	case domain.ScopeUser:
		return registry.CURRENT_USER, userKeyPath, nil
	case domain.ScopeSystem:
		return registry.LOCAL_MACHINE, systemKeyPath, nil
	default:
		return 0, "", fmt.Errorf("%w: unknown scope %q", domain.ErrInvalidInput, scope)
	}
}

// List reads both environment keys.
func (r *Registry) List(ctx context.Context) ([]domain.EnvironmentVariable, error) {
	var vars []domain.EnvironmentVariable
	for _, scope := range []domain.Scope{domain.ScopeSystem, domain.ScopeUser} {
		scoped, err := r.list(scope)
		if err != nil {
			return nil, err
		}
		vars = append(vars, scoped...)
	}
	SortVariables(vars)
	return vars, nil
}

func (r *Registry) list(scope domain.Scope) ([]domain.EnvironmentVariable, error) {
	root, path, err := scopeKey(scope)
	if err != nil {
		return nil, err
	}
	k, err := registry.OpenKey(root, path, registry.READ)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return nil, nil
		}
		return nil, mapRegistryError(fmt.Sprintf("opening %s environment", scope), err)
	}
	defer k.Close()

	names, err := k.ReadValueNames(0)
	if err != nil {
		return nil, mapRegistryError(fmt.Sprintf("reading %s environment", scope), err)
	}
	vars := make([]domain.EnvironmentVariable, 0, len(names))
	for _, name := range names {
		value, _, err := k.GetStringValue(name)
		if err != nil {
			// Non-string values are not environment variables.
			r.logger.Debug("skipping registry value", "scope", scope, "name", name, "error", err)
			continue
		}
		vars = append(vars, domain.EnvironmentVariable{Name: name, Value: value, Scope: scope})
	}
	return vars, nil
}

// Set writes a variable and notifies running programs.
// Values containing '%' are stored as REG_EXPAND_SZ so references expand.
func (r *Registry) Set(ctx context.Context, scope domain.Scope, name, value string) error {
	root, path, err := scopeKey(scope)
	if err != nil {
		return err
	}
	k, _, err := registry.CreateKey(root, path, registry.SET_VALUE)
	if err != nil {
		return mapRegistryError(fmt.Sprintf("opening %s environment", scope), err)
	}
	defer k.Close()

	if strings.Contains(value, "%") {
		err = k.SetExpandStringValue(name, value)
	} else {
		err = k.SetStringValue(name, value)
	}
	if err != nil {
		return mapRegistryError(fmt.Sprintf("writing %s variable %s", scope, name), err)
	}

	r.broadcast()
	return nil
}

// Delete removes a variable and notifies running programs.
func (r *Registry) Delete(ctx context.Context, scope domain.Scope, name string) error {
	root, path, err := scopeKey(scope)
	if err != nil {
		return err
	}
	k, err := registry.OpenKey(root, path, registry.SET_VALUE)
	if err != nil {
		return mapRegistryError(fmt.Sprintf("opening %s environment", scope), err)
	}
	defer k.Close()

	if err := k.DeleteValue(name); err != nil {
		return mapRegistryError(fmt.Sprintf("deleting %s variable %s", scope, name), err)
	}

	r.broadcast()
	return nil
}

// broadcast sends WM_SETTINGCHANGE("Environment"). The registry write has
// already happened, so a failure is only logged.
func (r *Registry) broadcast() {
	param, err := windows.UTF16PtrFromString("Environment")
	if err != nil {
		return
	}
	ret, _, callErr := procSendMessageTimeout.Call(
		uintptr(hwndBroadcast),
		uintptr(wmSettingChange),
		0,
		uintptr(unsafe.Pointer(param)),
		uintptr(smtoAbortIfHung),
		uintptr(broadcastTimeout),
		0,
	)
	if ret == 0 {
		r.logger.Warn("environment change broadcast failed", "error", callErr)
	}
}

func mapRegistryError(op string, err error) error {
	switch {
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return fmt.Errorf("%s: %w", op, domain.ErrForbidden)
	case errors.Is(err, registry.ErrNotExist):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
