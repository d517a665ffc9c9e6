package models

import "time"

// Connection holds the credentials a code host connection was configured
// with. Repos are linked to the connections that discovered them; repo-driven
// permission sync borrows the first connection that carries a token.
type Connection struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Provider  string    `gorm:"column:provider"`
	Token     *string   `gorm:"column:token"`
	HostURL   *string   `gorm:"column:host_url"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (Connection) TableName() string {
	return "connections"
}

// RepoConnection links a Repo to a Connection that discovered it.
type RepoConnection struct {
	RepoID       string `gorm:"column:repo_id;primaryKey"`
	ConnectionID string `gorm:"column:connection_id;primaryKey"`
}

// TableName specifies the table name for GORM
func (RepoConnection) TableName() string {
	return "repo_connections"
}
