//go:build windows

package session

import "syscall"

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}
