package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codelens/permsync-worker/internal/models"
)

// PermissionRepository maintains the permission edge tables. Every write is a
// whole-set replace inside one transaction: existing edges for the subject are
// deleted and the freshly computed set inserted, so a revoked grant can never
// survive a sync and readers never observe a partial set.
type PermissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// ReplaceAccountGrants replaces the account -> repo edges for one account.
// An empty repoIDs set clears all edges, which is a valid outcome.
func (r *PermissionRepository) ReplaceAccountGrants(ctx context.Context, accountID string, repoIDs []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", accountID).
			Delete(&models.AccountToRepoPermission{}).Error; err != nil {
			return err
		}
		if len(repoIDs) == 0 {
			return nil
		}

		edges := make([]models.AccountToRepoPermission, 0, len(repoIDs))
		for _, repoID := range repoIDs {
			edges = append(edges, models.AccountToRepoPermission{AccountID: accountID, RepoID: repoID})
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edges).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace grants for account %s: %w", accountID, err)
	}
	return nil
}

// ReplaceRepoGrants replaces the user -> repo edges for one repo.
func (r *PermissionRepository) ReplaceRepoGrants(ctx context.Context, repoID string, userIDs []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("repo_id = ?", repoID).
			Delete(&models.UserToRepoPermission{}).Error; err != nil {
			return err
		}
		if len(userIDs) == 0 {
			return nil
		}

		edges := make([]models.UserToRepoPermission, 0, len(userIDs))
		for _, userID := range userIDs {
			edges = append(edges, models.UserToRepoPermission{UserID: userID, RepoID: repoID})
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edges).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace grants for repo %s: %w", repoID, err)
	}
	return nil
}

// ReplaceUserGrants replaces the user -> repo edges for one user.
func (r *PermissionRepository) ReplaceUserGrants(ctx context.Context, userID string, repoIDs []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).
			Delete(&models.UserToRepoPermission{}).Error; err != nil {
			return err
		}
		if len(repoIDs) == 0 {
			return nil
		}

		edges := make([]models.UserToRepoPermission, 0, len(repoIDs))
		for _, repoID := range repoIDs {
			edges = append(edges, models.UserToRepoPermission{UserID: userID, RepoID: repoID})
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edges).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace grants for user %s: %w", userID, err)
	}
	return nil
}
