package models

import "time"

type SyncJobStatus string

const (
	JobStatusPending    SyncJobStatus = "pending"
	JobStatusInProgress SyncJobStatus = "in_progress"
	JobStatusCompleted  SyncJobStatus = "completed"
	JobStatusFailed     SyncJobStatus = "failed"
)

// CanTransition reports whether from -> to is a valid job status transition.
// The only valid paths are pending -> in_progress -> {completed, failed};
// anything else is a programming error, not a runtime condition.
func CanTransition(from, to SyncJobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusInProgress
	case JobStatusInProgress:
		return to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// SyncJob is one permission sync attempt for a single subject. The same row
// shape backs three tables (account_permission_sync_jobs,
// repo_permission_sync_jobs, user_permission_sync_jobs); the repository layer
// binds a SyncJob to its table. Rows are kept after completion as an audit
// trail, never deleted.
type SyncJob struct {
	ID           string        `gorm:"column:id;primaryKey"`
	SubjectID    string        `gorm:"column:subject_id;index"`
	Status       SyncJobStatus `gorm:"column:status;index"`
	ErrorMessage *string       `gorm:"column:error_message"`
	CreatedAt    time.Time     `gorm:"column:created_at"`
	CompletedAt  *time.Time    `gorm:"column:completed_at"`
}

// Job table names, one per subject type.
const (
	AccountSyncJobTable = "account_permission_sync_jobs"
	RepoSyncJobTable    = "repo_permission_sync_jobs"
	UserSyncJobTable    = "user_permission_sync_jobs"
)
