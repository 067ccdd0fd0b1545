package io

import (
	"context"
	"errors"
	"io"
)

// ErrStopped is returned by ReadChunks when emit declines a chunk.
var ErrStopped = errors.New("chunk consumer stopped")

// ReadChunks reads r in chunks of at most size bytes and hands each one to
// emit until r fails, ctx is done or emit returns false. Every chunk is a
// fresh slice the consumer may keep.
func ReadChunks(ctx context.Context, r io.Reader, size int, emit func([]byte) bool) error {
	reader := NewContextReader(ctx, r)
	for {
		// a read abandoned on cancel still owns its buffer
		buf := make([]byte, size)
		n, err := reader.Read(buf)
		if n > 0 && !emit(buf[:n:n]) {
			return ErrStopped
		}

		if err != nil {
			return err
		}
	}
}

// NewContextReader returns a reader whose Read returns ctx.Err() as soon as
// ctx is done, even while the underlying Read is still blocked.
//
// The blocked Read is left running in its own goroutine and finishes when the
// underlying reader does (for a PTY master: when it is closed). The buffer
// handed to an abandoned Read must not be reused by the caller.
func NewContextReader(ctx context.Context, r io.Reader) io.Reader {
	return contextReader{
		Reader: r,
		ctx:    ctx,
	}
}

type contextReader struct {
	io.Reader
	ctx context.Context
}

type readResult struct {
	n   int
	err error
}

func (r contextReader) Read(p []byte) (n int, err error) {
	c := make(chan readResult, 1)

	go func(ctx context.Context, reader io.Reader) {
		defer close(c)

		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := reader.Read(p)
		c <- readResult{n, err}
	}(r.ctx, r.Reader)

	select {
	case rr, ok := <-c:
		if !ok {
			return 0, r.ctx.Err()
		}
		return rr.n, rr.err
	case <-r.ctx.Done():
		return 0, r.ctx.Err()
	}
}
