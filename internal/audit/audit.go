// Package audit records sync outcomes for observability. Recording is
// best-effort: a sink failure is logged and never allowed to fail the sync
// that produced the event.
package audit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codelens/permsync-worker/internal/models"
)

// Actor/target types used by the sync engines.
const (
	ActorTypeSystem = "system"

	TargetTypeAccount = "account"
	TargetTypeRepo    = "repo"
	TargetTypeUser    = "user"
)

// Event is one auditable action.
type Event struct {
	Action     string
	ActorID    string
	ActorType  string
	TargetID   string
	TargetType string
	OrgID      int
	Metadata   string
}

type Sink interface {
	Record(ctx context.Context, event Event) error
}

// Store persists events to the audit_logs table.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Record(ctx context.Context, event Event) error {
	if event.OrgID == 0 {
		// Single-tenant deployments never set an org.
		event.OrgID = 1
	}
	row := models.AuditLog{
		ID:         uuid.NewString(),
		Action:     event.Action,
		ActorID:    event.ActorID,
		ActorType:  event.ActorType,
		TargetID:   event.TargetID,
		TargetType: event.TargetType,
		OrgID:      event.OrgID,
		CreatedAt:  time.Now(),
	}
	if event.Metadata != "" {
		row.Metadata = &event.Metadata
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// Record writes event to sink, swallowing and logging any error.
func Record(ctx context.Context, sink Sink, event Event) {
	if sink == nil {
		return
	}
	if err := sink.Record(ctx, event); err != nil {
		log.Printf("Failed to record audit event %s for %s %s: %v",
			event.Action, event.TargetType, event.TargetID, err)
	}
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Record(ctx context.Context, event Event) error {
	return nil
}
