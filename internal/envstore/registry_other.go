//go:build !windows

package envstore

import "log/slog"

func newRegistry(logger *slog.Logger) (Backend, error) {
	return nil, ErrNoRegistry
}
