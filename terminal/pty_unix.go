//go:build !windows

package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	ptylib "github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// Open allocates a pseudo-terminal pair sized rows x cols. Zero dimensions
// fall back to 24x80.
func Open(rows, cols uint16) (*PTY, error) {
	if rows == 0 {
		rows = DefaultRows
	}
	if cols == 0 {
		cols = DefaultCols
	}

	ptmx, tty, err := ptylib.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPtyOpen, err)
	}

	master, err := pollable(ptmx)
	if err != nil {
		_ = tty.Close()
		return nil, fmt.Errorf("%w: %w", ErrPtyOpen, err)
	}

	if err := setsize(master, rows, cols); err != nil {
		_ = master.Close()
		_ = tty.Close()
		return nil, fmt.Errorf("%w: %w", ErrPtyOpen, err)
	}

	return newPTY(master, tty, rows, cols), nil
}

// pollable replaces f with a non-blocking duplicate registered with the
// runtime poller, so that Close interrupts a Read blocked on it. f is closed.
// The duplicate is close-on-exec: the child must only ever hold the slave.
func pollable(f *os.File) (*os.File, error) {
	defer f.Close()

	fd, err := unix.FcntlInt(f.Fd(), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	return os.NewFile(uintptr(fd), f.Name()), nil
}

// setsize goes through SyscallConn rather than Fd, which would switch the
// master back to blocking mode.
func setsize(f *os.File, rows, cols uint16) error {
	rc, err := f.SyscallConn()
	if err != nil {
		return err
	}

	var ioctlErr error
	err = rc.Control(func(fd uintptr) {
		ioctlErr = unix.IoctlSetWinsize(int(fd), unix.TIOCSWINSZ, &unix.Winsize{
			Row: rows,
			Col: cols,
		})
	})
	if err != nil {
		return err
	}

	return ioctlErr
}

// Linux kernel return EIO when attempting to read from a master pseudo
// terminal which no longer has an open slave. Report it as end-of-stream.
// See https://github.com/creack/pty/issues/21
func ptyError(err error) error {
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && pathErr.Err == syscall.EIO {
		return io.EOF
	}

	return err
}
