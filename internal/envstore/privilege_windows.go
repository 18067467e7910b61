//go:build windows

package envstore

import "golang.org/x/sys/windows"

// IsElevated reports whether the process token is elevated.
func IsElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

// HasRegistry reports whether the registry backend is available.
func HasRegistry() bool { return true }
