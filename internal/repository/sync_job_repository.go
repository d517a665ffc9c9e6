package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codelens/permsync-worker/internal/models"
)

var (
	// ErrJobNotFound is returned when a job id has no backing row. This is a
	// data integrity error: ids are only handed out after the row committed.
	ErrJobNotFound = errors.New("sync job not found")

	// ErrJobNotPending is returned when a claim finds the job in any state
	// other than pending. Redelivered queue messages land here.
	ErrJobNotPending = errors.New("sync job is not pending")

	// ErrJobNotInProgress is returned when a terminal transition is attempted
	// on a job that was never claimed.
	ErrJobNotInProgress = errors.New("sync job is not in progress")
)

// SyncJobRepository manages the sync job rows for one subject type. The same
// implementation backs all three engines; jobTable and subjectTable bind it to
// a concrete pair of tables.
type SyncJobRepository struct {
	db           *gorm.DB
	jobTable     string
	subjectTable string
}

func NewAccountSyncJobRepository(db *gorm.DB) *SyncJobRepository {
	return &SyncJobRepository{db: db, jobTable: models.AccountSyncJobTable, subjectTable: "accounts"}
}

func NewRepoSyncJobRepository(db *gorm.DB) *SyncJobRepository {
	return &SyncJobRepository{db: db, jobTable: models.RepoSyncJobTable, subjectTable: "repos"}
}

func NewUserSyncJobRepository(db *gorm.DB) *SyncJobRepository {
	return &SyncJobRepository{db: db, jobTable: models.UserSyncJobTable, subjectTable: "users"}
}

// CreateBatch inserts one pending job row per subject id and returns the
// created jobs. The insert commits before any job id reaches the queue, so a
// worker can never dequeue an id whose row does not exist yet.
func (r *SyncJobRepository) CreateBatch(ctx context.Context, subjectIDs []string) ([]models.SyncJob, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}

	now := time.Now()
	jobs := make([]models.SyncJob, 0, len(subjectIDs))
	for _, subjectID := range subjectIDs {
		jobs = append(jobs, models.SyncJob{
			ID:        uuid.NewString(),
			SubjectID: subjectID,
			Status:    models.JobStatusPending,
			CreatedAt: now,
		})
	}

	result := r.db.WithContext(ctx).Table(r.jobTable).Create(&jobs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create sync jobs: %w", result.Error)
	}
	return jobs, nil
}

// ListPending returns all pending jobs, oldest first. Used on startup to
// re-enqueue rows whose enqueue was lost to a crash or a queue failure.
func (r *SyncJobRepository) ListPending(ctx context.Context) ([]models.SyncJob, error) {
	var jobs []models.SyncJob
	result := r.db.WithContext(ctx).Table(r.jobTable).
		Where("status = ?", models.JobStatusPending).
		Order("created_at ASC").
		Find(&jobs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query pending jobs: %w", result.Error)
	}
	return jobs, nil
}

// Claim transitions the job pending -> in_progress and returns it. The guard
// on the current status makes queue redelivery safe: a second delivery of the
// same id finds the job already claimed and gets ErrJobNotPending.
func (r *SyncJobRepository) Claim(ctx context.Context, jobID string) (*models.SyncJob, error) {
	result := r.db.WithContext(ctx).Table(r.jobTable).
		Where("id = ? AND status = ?", jobID, models.JobStatusPending).
		Update("status", models.JobStatusInProgress)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to claim job %s: %w", jobID, result.Error)
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Table(r.jobTable).Where("id = ?", jobID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to look up job %s: %w", jobID, err)
		}
		if count == 0 {
			return nil, fmt.Errorf("job %s: %w", jobID, ErrJobNotFound)
		}
		return nil, fmt.Errorf("job %s: %w", jobID, ErrJobNotPending)
	}

	var job models.SyncJob
	if err := r.db.WithContext(ctx).Table(r.jobTable).Where("id = ?", jobID).First(&job).Error; err != nil {
		return nil, fmt.Errorf("failed to load claimed job %s: %w", jobID, err)
	}
	return &job, nil
}

// Complete marks the job completed and stamps the subject's
// permission_synced_at in the same transaction.
func (r *SyncJobRepository) Complete(ctx context.Context, jobID, subjectID string) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Table(r.jobTable).
			Where("id = ? AND status = ?", jobID, models.JobStatusInProgress).
			Updates(map[string]interface{}{
				"status":       models.JobStatusCompleted,
				"completed_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("job %s: %w", jobID, ErrJobNotInProgress)
		}

		return tx.Table(r.subjectTable).
			Where("id = ?", subjectID).
			Update("permission_synced_at", now).Error
	})
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}
	return nil
}

// Fail marks the job failed with the error message. The subject's
// permission_synced_at is left untouched; the failed row's completed_at is
// what keeps the subject out of the scheduler until the backoff window ends.
func (r *SyncJobRepository) Fail(ctx context.Context, jobID string, errMsg string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Table(r.jobTable).
		Where("id = ? AND status = ?", jobID, models.JobStatusInProgress).
		Updates(map[string]interface{}{
			"status":        models.JobStatusFailed,
			"completed_at":  now,
			"error_message": errMsg,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to fail job %s: %w", jobID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("job %s: %w", jobID, ErrJobNotInProgress)
	}
	return nil
}
