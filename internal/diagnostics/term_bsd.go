//go:build darwin || freebsd || netbsd || openbsd

package diagnostics

import "golang.org/x/sys/unix"

const ioctlReadTermios = unix.TIOCGETA
