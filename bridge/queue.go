package bridge

import (
	"context"
	"sync"
)

// DefaultQueueSize is the number of chunks buffered between the pty reader
// and the websocket sender.
const DefaultQueueSize = 100

// Queue is a bounded FIFO of byte chunks with exactly one producer and one
// consumer. Push blocks while the queue is full; that is the only
// backpressure between a slow client and the pty.
type Queue struct {
	ch   chan []byte
	done chan struct{}

	producerOnce sync.Once
	consumerOnce sync.Once
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}

	return &Queue{
		ch:   make(chan []byte, capacity),
		done: make(chan struct{}),
	}
}

// Push enqueues chunk, blocking while the queue is full. It returns false once
// the consumer side is closed.
func (q *Queue) Push(chunk []byte) bool {
	select {
	case <-q.done:
		return false
	default:
	}

	select {
	case q.ch <- chunk:
		return true
	case <-q.done:
		return false
	}
}

// Pop dequeues the next chunk. It returns false when the producer side is
// closed and drained, or when ctx is done.
func (q *Queue) Pop(ctx context.Context) ([]byte, bool) {
	select {
	case chunk, ok := <-q.ch:
		return chunk, ok
	case <-ctx.Done():
		return nil, false
	}
}

// CloseProducer marks the end of the stream. Queued chunks can still be popped.
func (q *Queue) CloseProducer() {
	q.producerOnce.Do(func() {
		close(q.ch)
	})
}

// CloseConsumer releases a producer blocked in Push.
func (q *Queue) CloseConsumer() {
	q.consumerOnce.Do(func() {
		close(q.done)
	})
}

// Len is the number of queued chunks.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap is the capacity of the queue.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
