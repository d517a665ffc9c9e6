package models

import "time"

// User is an internal identity that may aggregate several linked Accounts.
type User struct {
	ID                 string     `gorm:"column:id;primaryKey"`
	Email              *string    `gorm:"column:email"`
	PermissionSyncedAt *time.Time `gorm:"column:permission_synced_at"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}
