package models

import "time"

// Repo is an internally known repository discovered from a code host
// connection. ExternalID is the host-side identifier (e.g. the numeric
// GitHub repository id), unique per provider.
type Repo struct {
	ID                 string     `gorm:"column:id;primaryKey"`
	Name               string     `gorm:"column:name"`
	DisplayName        *string    `gorm:"column:display_name"` // "owner/name" on GitHub-like hosts
	Provider           string     `gorm:"column:provider;index"`
	ExternalID         string     `gorm:"column:external_id;index"`
	PermissionSyncedAt *time.Time `gorm:"column:permission_synced_at"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (Repo) TableName() string {
	return "repos"
}
