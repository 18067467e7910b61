//go:build !windows && !unix

package envstore

// IsElevated has no privilege model to probe on this platform.
func IsElevated() bool { return false }

// HasRegistry reports whether the registry backend is available.
func HasRegistry() bool { return false }
