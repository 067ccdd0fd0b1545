package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	uio "github.com/owenthereal/webterm/io"
)

// DefaultChunkSize is the largest pty read forwarded as one binary frame.
const DefaultChunkSize = 4096

var (
	errQueueClosed    = errors.New("transfer queue closed")
	errTerminalClosed = errors.New("terminal closed")
)

// Conn is the websocket surface the relay uses. *websocket.Conn implements it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// FlushWriter is the pty write endpoint. Bytes reach the pty on Flush.
type FlushWriter interface {
	io.Writer
	Flush() error
}

// Resizer changes the pty window size.
type Resizer interface {
	Resize(rows, cols uint16) error
}

// Relay moves bytes between a pty and a websocket.
//
// PumpPTY is the only producer of Queue and Forward its only consumer, so
// chunks reach the client in the order they were read. Inbound is the only
// caller of Writer and Resizer.
type Relay struct {
	Conn      Conn
	Reader    io.Reader
	Writer    FlushWriter
	Resizer   Resizer
	Queue     *Queue
	ChunkSize int
	Logger    *slog.Logger

	inst *instruments
}

// PumpPTY reads the pty into the queue until EOF, a read error or ctx is
// done. The producer side of the queue is closed on return.
func (r *Relay) PumpPTY(ctx context.Context) error {
	defer r.Queue.CloseProducer()

	size := r.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}

	err := uio.ReadChunks(ctx, r.Reader, size, r.Queue.Push)
	if errors.Is(err, uio.ErrStopped) {
		return errQueueClosed
	}
	return err
}

// Forward sends queued chunks as binary frames. It stops on the first send
// failure, when ctx is done, or with errTerminalClosed once the queue is
// closed and drained.
func (r *Relay) Forward(ctx context.Context) error {
	for {
		chunk, ok := r.Queue.Pop(ctx)
		if !ok {
			if err := ctx.Err(); err != nil {
				return err
			}
			return errTerminalClosed
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if err := r.Conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			return err
		}
		r.instruments().bytesOut.Add(float64(len(chunk)))
	}
}

// Inbound applies client frames to the pty until the peer closes, the
// transport fails or a pty write fails.
func (r *Relay) Inbound() error {
	for {
		mt, data, err := r.Conn.ReadMessage()
		if err != nil {
			return err
		}

		switch mt {
		case websocket.BinaryMessage:
			if err := r.writePTY(data); err != nil {
				return err
			}
		case websocket.TextMessage:
			cols, rows, isResize, err := ParseResize(string(data))
			if isResize {
				r.resize(cols, rows, err)
				continue
			}

			if err := r.writePTY(data); err != nil {
				return err
			}
		}
	}
}

func (r *Relay) resize(cols, rows uint16, parseErr error) {
	if parseErr != nil {
		r.logger().Debug("resize dropped", "error", parseErr)
		return
	}

	if err := r.Resizer.Resize(rows, cols); err != nil {
		r.logger().Debug("resize failed", "rows", rows, "cols", cols, "error", err)
		return
	}
	r.instruments().resizes.Add(1)
}

func (r *Relay) writePTY(data []byte) error {
	if _, err := r.Writer.Write(data); err != nil {
		return err
	}
	if err := r.Writer.Flush(); err != nil {
		return err
	}
	r.instruments().bytesIn.Add(float64(len(data)))

	return nil
}

func (r *Relay) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

func (r *Relay) instruments() *instruments {
	if r.inst == nil {
		return discardInstruments
	}
	return r.inst
}
