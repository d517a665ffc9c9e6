package queue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"
)

// postgresQueue is a durable queue backed by a single Postgres table shared by
// all engines, partitioned by queue name. Pops are delete-returning with
// SKIP LOCKED so concurrent consumers never double-deliver a live row;
// redelivery can still happen around crashes, which the worker tolerates.
type postgresQueue struct {
	db           *gorm.DB
	name         string
	pollInterval time.Duration

	mu     sync.Mutex
	closed bool
}

type queueRow struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Queue     string    `gorm:"column:queue;index"`
	Payload   string    `gorm:"column:payload"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (queueRow) TableName() string {
	return "sync_queue"
}

// NewPostgresQueue returns a durable queue named name on top of db.
func NewPostgresQueue(db *gorm.DB, name string) Queue {
	return &postgresQueue{
		db:           db,
		name:         name,
		pollInterval: 500 * time.Millisecond,
	}
}

func (q *postgresQueue) Enqueue(ctx context.Context, id string) error {
	if q.isClosed() {
		return ErrClosed
	}
	row := queueRow{Queue: q.name, Payload: id, CreatedAt: time.Now()}
	if err := q.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to enqueue on %s: %w", q.name, err)
	}
	return nil
}

func (q *postgresQueue) Dequeue(ctx context.Context) (string, bool) {
	for {
		if q.isClosed() {
			return "", false
		}

		var payloads []string
		err := q.db.WithContext(ctx).Raw(`
			DELETE FROM sync_queue
			WHERE id = (
				SELECT id FROM sync_queue
				WHERE queue = ?
				ORDER BY id
				LIMIT 1
				FOR UPDATE SKIP LOCKED)
			RETURNING payload`, q.name).Scan(&payloads).Error
		if err == nil && len(payloads) > 0 {
			return payloads[0], true
		}
		if err != nil && ctx.Err() == nil {
			log.Printf("Failed to dequeue from %s (will retry): %v", q.name, err)
		}

		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(q.pollInterval):
		}
	}
}

func (q *postgresQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

func (q *postgresQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
