package queue

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMemoryQueue_FIFO(t *testing.T) {
	q := NewMemoryQueue(8)
	defer q.Close()

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(ctx, id); err != nil {
			t.Fatalf("enqueue %q: %v", id, err)
		}
	}

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.Dequeue(ctx)
		if !ok {
			t.Fatal("expected an item, queue reported empty/closed")
		}
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}

func TestMemoryQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewMemoryQueue(8)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = q.Enqueue(context.Background(), "late")
	}()

	got, ok := q.Dequeue(ctx)
	if !ok || got != "late" {
		t.Fatalf("expected to receive %q, got %q (ok=%v)", "late", got, ok)
	}
}

func TestMemoryQueue_DequeueReturnsOnCancel(t *testing.T) {
	q := NewMemoryQueue(8)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok := q.Dequeue(ctx); ok {
		t.Fatal("expected dequeue to return ok=false on cancelled context")
	}
}

func TestMemoryQueue_CancelWinsOverBacklog(t *testing.T) {
	q := NewMemoryQueue(8)
	defer q.Close()

	if err := q.Enqueue(context.Background(), "queued-before-shutdown"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A stopping worker must not take another item, even with a backlog.
	if got, ok := q.Dequeue(ctx); ok {
		t.Fatalf("expected ok=false on cancelled context, got %q", got)
	}

	// The item stays queued for the next consumer.
	if got, ok := q.Dequeue(context.Background()); !ok || got != "queued-before-shutdown" {
		t.Fatalf("expected the backlog item to survive, got %q (ok=%v)", got, ok)
	}
}

func TestMemoryQueue_Full(t *testing.T) {
	q := NewMemoryQueue(1)
	defer q.Close()

	ctx := context.Background()
	if err := q.Enqueue(ctx, "a"); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, "b"); !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}
}

func TestMemoryQueue_Closed(t *testing.T) {
	q := NewMemoryQueue(8)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "a"); err != nil {
		t.Fatalf("enqueue before close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := q.Enqueue(ctx, "b"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}

	// Items enqueued before close drain first, then dequeue reports closed.
	if got, ok := q.Dequeue(ctx); !ok || got != "a" {
		t.Fatalf("expected to drain %q, got %q (ok=%v)", "a", got, ok)
	}
	if _, ok := q.Dequeue(ctx); ok {
		t.Fatal("expected dequeue on a drained closed queue to report ok=false")
	}
}

func TestPostgresQueue_DequeueLogsQueryErrors(t *testing.T) {
	// An empty sqlite database has no sync_queue table, so every dequeue
	// query fails; the failure must surface in the log, not vanish into the
	// poll loop.
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	q := NewPostgresQueue(db, "account_permission_sync")
	defer q.Close()

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, ok := q.Dequeue(ctx); ok {
		t.Fatal("expected no item from a failing dequeue")
	}

	if !strings.Contains(buf.String(), "Failed to dequeue from account_permission_sync") {
		t.Errorf("expected the query error to be logged, got %q", buf.String())
	}
}

func TestBuild_Schemes(t *testing.T) {
	for _, dsn := range []string{"", "memory://", "mem://", "inmem://"} {
		q, err := Build(nil, dsn, "test")
		if err != nil {
			t.Fatalf("Build(%q): %v", dsn, err)
		}
		if _, ok := q.(*memoryQueue); !ok {
			t.Errorf("Build(%q): expected memory queue, got %T", dsn, q)
		}
	}

	q, err := Build(nil, "postgres://ignored", "test")
	if err != nil {
		t.Fatalf("Build(postgres): %v", err)
	}
	if _, ok := q.(*postgresQueue); !ok {
		t.Errorf("expected postgres queue, got %T", q)
	}

	if _, err := Build(nil, "redis://localhost", "test"); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}
