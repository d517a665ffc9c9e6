package models

// UserToRepoPermission grants a User visibility of a Repo. Rows are only ever
// replaced as a whole set per subject inside a sync transaction, never patched
// incrementally: repo-driven sync replaces by repo_id, user-driven sync by
// user_id.
type UserToRepoPermission struct {
	UserID string `gorm:"column:user_id;primaryKey"`
	RepoID string `gorm:"column:repo_id;primaryKey"`
}

// TableName specifies the table name for GORM
func (UserToRepoPermission) TableName() string {
	return "user_to_repo_permissions"
}

// AccountToRepoPermission grants a linked Account visibility of a Repo.
// Same replace-only discipline as UserToRepoPermission, keyed by account_id.
type AccountToRepoPermission struct {
	AccountID string `gorm:"column:account_id;primaryKey"`
	RepoID    string `gorm:"column:repo_id;primaryKey"`
}

// TableName specifies the table name for GORM
func (AccountToRepoPermission) TableName() string {
	return "account_to_repo_permissions"
}
