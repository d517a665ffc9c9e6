package queue

import (
	"fmt"
	"net/url"
	"strings"

	"gorm.io/gorm"
)

// Build constructs the queue named name from a DSN. Supported schemes:
//
//	memory://           in-process FIFO (default)
//	postgres://         durable table on the application database
//
// The postgres scheme reuses db rather than opening a second pool; the DSN
// host/path are ignored.
func Build(db *gorm.DB, dsn, name string) (Queue, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return NewMemoryQueue(0), nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid queue DSN: %w", err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "", "memory", "mem", "inmem":
		return NewMemoryQueue(0), nil
	case "postgres", "postgresql":
		return NewPostgresQueue(db, name), nil
	default:
		return nil, fmt.Errorf("unsupported queue scheme: %s", parsed.Scheme)
	}
}
