//go:build !windows

package terminal

import (
	"bufio"
	"io"
	"testing"
	"time"

	ptylib "github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_DefaultSize(t *testing.T) {
	p, err := Open(0, 0)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	rows, cols := p.Size()
	assert.Equal(t, DefaultRows, rows)
	assert.Equal(t, DefaultCols, cols)

	h, w, err := ptylib.Getsize(p.Tty())
	require.NoError(t, err)
	assert.Equal(t, 24, h)
	assert.Equal(t, 80, w)
}

func TestPTY_Resize(t *testing.T) {
	p, err := Open(24, 80)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	require.NoError(t, p.Resize(40, 120))

	rows, cols := p.Size()
	assert.Equal(t, uint16(40), rows)
	assert.Equal(t, uint16(120), cols)

	h, w, err := ptylib.Getsize(p.Tty())
	require.NoError(t, err)
	assert.Equal(t, 40, h)
	assert.Equal(t, 120, w)

	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Resize(10, 10), ErrResize)
}

func TestPTY_ReadWrite(t *testing.T) {
	p, err := Open(24, 80)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	// slave -> master
	_, err = p.Tty().Write([]byte("output"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := p.Reader().Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "output", string(buf[:n]))

	// master -> slave, line discipline hands over a full line
	_, err = p.Writer().Write([]byte("input\n"))
	require.NoError(t, err)
	require.NoError(t, p.Writer().Flush())

	line, err := bufio.NewReader(p.Tty()).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "input\n", line)
}

func TestPTY_WriterBuffersUntilFlush(t *testing.T) {
	p, err := Open(24, 80)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	w := p.Writer()
	_, err = w.Write([]byte("ls\n"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	line, err := bufio.NewReader(p.Tty()).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ls\n", line)
}

func TestPTY_CloseUnblocksReader(t *testing.T) {
	p, err := Open(24, 80)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Reader().Read(make([]byte, 32))
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close(), "close is idempotent")

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reader still blocked after close")
	}
}

func TestPTY_EOFWhenSlaveClosed(t *testing.T) {
	p, err := Open(24, 80)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	require.NoError(t, p.CloseTty())

	_, err = p.Reader().Read(make([]byte, 32))
	assert.ErrorIs(t, err, io.EOF)
}
