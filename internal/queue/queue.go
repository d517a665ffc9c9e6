// Package queue provides the durable, at-least-once delivery channel that
// carries sync job ids from the scheduler to the worker. Durability of the
// work itself lives in the job rows; the queue only transports ids, so a
// dropped or duplicated message is always recoverable (pending rows are
// re-enqueued on startup, and the worker's claim step rejects redelivery).
package queue

import (
	"context"
	"errors"
)

var (
	ErrClosed = errors.New("queue is closed")
	ErrFull   = errors.New("queue is full")
)

// Queue carries opaque job ids from producer to consumer in FIFO order with
// at-least-once delivery.
type Queue interface {
	// Enqueue appends an id. It returns ErrFull when the queue is at
	// capacity and ErrClosed after Close.
	Enqueue(ctx context.Context, id string) error

	// Dequeue blocks until an id is available, the context is cancelled, or
	// the queue is closed. ok is false in the latter two cases.
	Dequeue(ctx context.Context) (id string, ok bool)

	// Close releases the queue. Blocked Dequeue calls return with ok=false.
	Close() error
}
