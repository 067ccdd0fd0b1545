// Package terminal owns the pseudo-terminal pair a connection relays through.
package terminal

import (
	"bufio"
	"errors"
	"io"
	"os"
	"sync"
)

const (
	DefaultRows uint16 = 24
	DefaultCols uint16 = 80
)

var (
	ErrPtyOpen = errors.New("unable to open pty")
	ErrResize  = errors.New("unable to resize pty")
)

// PTY is a master/slave pseudo-terminal pair plus its current dimensions.
//
// The mutex serializes Resize against Close so that a resize never races the
// descriptor being released. Read is deliberately not guarded: Close has to be
// able to interrupt a read that is blocked in the kernel.
type PTY struct {
	master *os.File
	tty    *os.File
	writer *Writer

	mu         sync.RWMutex
	rows, cols uint16
	closed     bool

	ttyOnce sync.Once
	ttyErr  error
}

func newPTY(master, tty *os.File, rows, cols uint16) *PTY {
	return &PTY{
		master: master,
		tty:    tty,
		writer: &Writer{w: bufio.NewWriter(master)},
		rows:   rows,
		cols:   cols,
	}
}

// Reader is the read endpoint of the master side. It returns io.EOF once the
// slave side is gone.
func (p *PTY) Reader() io.Reader {
	return reader{p.master}
}

// Writer is the write endpoint of the master side.
func (p *PTY) Writer() *Writer {
	return p.writer
}

// Tty is the slave side handed to the child process.
func (p *PTY) Tty() *os.File {
	return p.tty
}

// Size returns the last applied dimensions.
func (p *PTY) Size() (rows, cols uint16) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.rows, p.cols
}

// Resize applies new dimensions. Failures are wrapped in ErrResize.
func (p *PTY) Resize(rows, cols uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrResize
	}

	if err := setsize(p.master, rows, cols); err != nil {
		return errors.Join(ErrResize, err)
	}

	p.rows, p.cols = rows, cols

	return nil
}

// CloseTty releases this process's copy of the slave side. The child keeps
// its own descriptors, so this is done right after spawning.
func (p *PTY) CloseTty() error {
	p.ttyOnce.Do(func() {
		p.ttyErr = p.tty.Close()
	})

	return p.ttyErr
}

// Close releases the local device pair. It does not signal the child; the
// child sees a hangup on its controlling terminal and detaches on its own.
func (p *PTY) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	ttyErr := p.CloseTty()
	masterErr := p.master.Close()

	return errors.Join(masterErr, ttyErr)
}

// Writer writes to the master side through a buffer that is flushed
// explicitly after every frame.
type Writer struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.w.Write(p)
}

func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.w.Flush()
}

type reader struct {
	f *os.File
}

func (r reader) Read(p []byte) (int, error) {
	n, err := r.f.Read(p)
	return n, ptyError(err)
}
