package models

import "time"

// Account is a single linked code host identity (one row per provider login).
// A User may have several Accounts, at most one per provider.
type Account struct {
	ID                 string     `gorm:"column:id;primaryKey"`
	UserID             string     `gorm:"column:user_id;index"`
	Provider           string     `gorm:"column:provider;index"`
	ProviderAccountID  string     `gorm:"column:provider_account_id;index"`
	AccessToken        *string    `gorm:"column:access_token"`
	PermissionSyncedAt *time.Time `gorm:"column:permission_synced_at"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (Account) TableName() string {
	return "accounts"
}
