package bridge

import (
	"errors"
	"strconv"
	"strings"
)

const resizePrefix = "resize:"

// ErrResizeIgnored is returned for a resize command whose dimensions cannot be
// parsed. Such a frame is dropped.
var ErrResizeIgnored = errors.New("malformed resize command ignored")

// ParseResize recognizes "resize:<cols>:<rows>" text frames.
//
// isResize reports whether text is a resize command at all. When it is and
// err is nil, cols and rows hold the requested dimensions. A command with a
// malformed remainder is still a resize command: it must be dropped and never
// forwarded to the pty as keystrokes.
func ParseResize(text string) (cols, rows uint16, isResize bool, err error) {
	rest, ok := strings.CutPrefix(text, resizePrefix)
	if !ok {
		return 0, 0, false, nil
	}

	fields := strings.Split(rest, ":")
	if len(fields) != 2 {
		return 0, 0, true, ErrResizeIgnored
	}

	c, err := strconv.ParseUint(fields[0], 10, 16)
	if err != nil {
		return 0, 0, true, errors.Join(ErrResizeIgnored, err)
	}

	r, err := strconv.ParseUint(fields[1], 10, 16)
	if err != nil {
		return 0, 0, true, errors.Join(ErrResizeIgnored, err)
	}

	return uint16(c), uint16(r), true, nil
}
