package models

import "time"

// AuditLog records a completed or failed permission sync for observability.
type AuditLog struct {
	ID         string    `gorm:"column:id;primaryKey"`
	Action     string    `gorm:"column:action;index"`
	ActorID    string    `gorm:"column:actor_id"`
	ActorType  string    `gorm:"column:actor_type"`
	TargetID   string    `gorm:"column:target_id"`
	TargetType string    `gorm:"column:target_type"`
	OrgID      int       `gorm:"column:org_id"`
	Metadata   *string   `gorm:"column:metadata"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

// TableName specifies the table name for GORM
func (AuditLog) TableName() string {
	return "audit_logs"
}
