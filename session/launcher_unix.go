//go:build !windows

package session

import "syscall"

// The child leads a new session with its stdin (the tty) as controlling
// terminal, as creack/pty does for commands it starts itself.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}
}
