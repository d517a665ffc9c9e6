package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/codelens/permsync-worker/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).First(&user, "id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", result.Error)
	}
	return &user, nil
}

// ListEligible returns the ids of users due for a permission sync. A user is
// in scope only when at least one of their linked accounts belongs to a
// supported provider; the job predicates mirror AccountRepository.ListEligible.
func (r *UserRepository) ListEligible(ctx context.Context, providers []string, threshold time.Time) ([]string, error) {
	if len(providers) == 0 {
		return nil, nil
	}

	var ids []string
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where(`EXISTS (
			SELECT 1 FROM accounts a
			WHERE a.user_id = users.id AND a.provider IN ?)`, providers).
		Where("permission_synced_at IS NULL OR permission_synced_at < ?", threshold).
		Where(`NOT EXISTS (
			SELECT 1 FROM user_permission_sync_jobs j
			WHERE j.subject_id = users.id
			  AND (j.status IN ('pending', 'in_progress')
			       OR (j.status = 'failed' AND j.completed_at > ?)))`, threshold).
		Pluck("id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query eligible users: %w", result.Error)
	}
	return ids, nil
}
