package queue

import (
	"context"
	"sync"
	"time"
)

const defaultCapacity = 4096

type memoryQueue struct {
	pollInterval time.Duration
	capacity     int

	mu     sync.Mutex
	items  []string
	closed bool
}

// NewMemoryQueue returns an in-process FIFO queue. It survives nothing by
// itself; crash recovery relies on pending job rows being re-enqueued at
// startup.
func NewMemoryQueue(capacity int) Queue {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &memoryQueue{
		pollInterval: 10 * time.Millisecond,
		capacity:     capacity,
		items:        []string{},
	}
}

func (q *memoryQueue) Enqueue(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	if len(q.items) >= q.capacity {
		return ErrFull
	}
	q.items = append(q.items, id)
	return nil
}

func (q *memoryQueue) Dequeue(ctx context.Context) (string, bool) {
	for {
		// Cancellation wins over a non-empty backlog: a stopping worker must
		// take no further items, only finish the one it already holds.
		if ctx.Err() != nil {
			return "", false
		}

		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return "", false
		}

		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(q.pollInterval):
		}
	}
}

func (q *memoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
