//go:build unix

package envstore

import "golang.org/x/sys/unix"

// IsElevated reports whether the process runs as root.
func IsElevated() bool {
	return unix.Geteuid() == 0
}

// HasRegistry reports whether the registry backend is available.
func HasRegistry() bool { return false }
