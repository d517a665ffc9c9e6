package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/codelens/permsync-worker/internal/models"
)

var ErrAccountNotFound = errors.New("account not found")

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, accountID string) (*models.Account, error) {
	var account models.Account
	result := r.db.WithContext(ctx).First(&account, "id = ?", accountID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", result.Error)
	}
	return &account, nil
}

// ListEligible returns the ids of accounts due for a permission sync: the
// provider is supported, the last successful sync is missing or older than
// threshold, there is no pending or in-progress job, and no failed job
// completed inside the backoff window (completed_at > threshold).
func (r *AccountRepository) ListEligible(ctx context.Context, providers []string, threshold time.Time) ([]string, error) {
	if len(providers) == 0 {
		return nil, nil
	}

	var ids []string
	result := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("provider IN ?", providers).
		Where("permission_synced_at IS NULL OR permission_synced_at < ?", threshold).
		Where(`NOT EXISTS (
			SELECT 1 FROM account_permission_sync_jobs j
			WHERE j.subject_id = accounts.id
			  AND (j.status IN ('pending', 'in_progress')
			       OR (j.status = 'failed' AND j.completed_at > ?)))`, threshold).
		Pluck("id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query eligible accounts: %w", result.Error)
	}
	return ids, nil
}

// ResolveProviderAccounts maps external account ids back to internal user ids
// via the linked accounts for the given provider. External ids with no linked
// account are simply absent from the result.
func (r *AccountRepository) ResolveProviderAccounts(ctx context.Context, provider string, providerAccountIDs []string) ([]string, error) {
	if len(providerAccountIDs) == 0 {
		return nil, nil
	}

	var userIDs []string
	result := r.db.WithContext(ctx).Model(&models.Account{}).
		Distinct("user_id").
		Where("provider = ? AND provider_account_id IN ?", provider, providerAccountIDs).
		Pluck("user_id", &userIDs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to resolve provider accounts: %w", result.Error)
	}
	return userIDs, nil
}

// ListForUser returns all linked accounts for a user.
func (r *AccountRepository) ListForUser(ctx context.Context, userID string) ([]models.Account, error) {
	var accounts []models.Account
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("provider ASC").
		Find(&accounts)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list accounts for user: %w", result.Error)
	}
	return accounts, nil
}
