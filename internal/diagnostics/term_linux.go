//go:build linux

package diagnostics

import "golang.org/x/sys/unix"

const ioctlReadTermios = unix.TCGETS
