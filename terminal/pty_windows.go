//go:build windows

package terminal

import (
	"errors"
	"fmt"
	"os"
)

var errUnsupported = errors.New("pseudo-terminals require a unix host")

// Open is not available on windows: the attach command relies on tmux.
func Open(rows, cols uint16) (*PTY, error) {
	return nil, fmt.Errorf("%w: %w", ErrPtyOpen, errUnsupported)
}

func setsize(f *os.File, rows, cols uint16) error {
	return errUnsupported
}

func ptyError(err error) error {
	return err
}
