//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

package diagnostics

// isTerminal always reports false on platforms without termios; plain
// output is the safe default there.
func isTerminal(fd uintptr) bool { return false }
