package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/codelens/permsync-worker/internal/models"
)

var (
	ErrRepoNotFound = errors.New("repo not found")

	// ErrNoCredentials is returned when none of a repo's connections carries
	// a usable token.
	ErrNoCredentials = errors.New("no connection with credentials found for repo")
)

// Credentials are the resolved auth material for talking to a repo's host.
type Credentials struct {
	Token   string
	HostURL string
}

type RepoRepository struct {
	db *gorm.DB
}

func NewRepoRepository(db *gorm.DB) *RepoRepository {
	return &RepoRepository{db: db}
}

// GetByID retrieves a repo by ID
func (r *RepoRepository) GetByID(ctx context.Context, repoID string) (*models.Repo, error) {
	var repo models.Repo
	result := r.db.WithContext(ctx).First(&repo, "id = ?", repoID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRepoNotFound
		}
		return nil, fmt.Errorf("failed to get repo: %w", result.Error)
	}
	return &repo, nil
}

// ListEligible returns the ids of repos due for a permission sync, applying
// the same predicates as the account and user variants.
func (r *RepoRepository) ListEligible(ctx context.Context, providers []string, threshold time.Time) ([]string, error) {
	if len(providers) == 0 {
		return nil, nil
	}

	var ids []string
	result := r.db.WithContext(ctx).Model(&models.Repo{}).
		Where("provider IN ?", providers).
		Where("permission_synced_at IS NULL OR permission_synced_at < ?", threshold).
		Where(`NOT EXISTS (
			SELECT 1 FROM repo_permission_sync_jobs j
			WHERE j.subject_id = repos.id
			  AND (j.status IN ('pending', 'in_progress')
			       OR (j.status = 'failed' AND j.completed_at > ?)))`, threshold).
		Pluck("id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query eligible repos: %w", result.Error)
	}
	return ids, nil
}

// ResolveExternalIDs maps code-host repository ids onto internal repo ids for
// one provider. External ids that were never discovered internally are
// silently dropped.
func (r *RepoRepository) ResolveExternalIDs(ctx context.Context, provider string, externalIDs []string) ([]string, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}

	var ids []string
	result := r.db.WithContext(ctx).Model(&models.Repo{}).
		Where("provider = ? AND external_id IN ?", provider, externalIDs).
		Pluck("id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to resolve external repo ids: %w", result.Error)
	}
	return ids, nil
}

// ResolveCredentials finds the first connection linked to the repo that has a
// token and returns its credentials, oldest connection first.
func (r *RepoRepository) ResolveCredentials(ctx context.Context, repoID string) (*Credentials, error) {
	var connections []models.Connection
	result := r.db.WithContext(ctx).Model(&models.Connection{}).
		Joins("JOIN repo_connections rc ON rc.connection_id = connections.id").
		Where("rc.repo_id = ?", repoID).
		Order("connections.created_at ASC").
		Find(&connections)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query connections for repo: %w", result.Error)
	}

	for _, conn := range connections {
		if conn.Token == nil || *conn.Token == "" {
			continue
		}
		creds := &Credentials{Token: *conn.Token}
		if conn.HostURL != nil {
			creds.HostURL = *conn.HostURL
		}
		return creds, nil
	}
	return nil, fmt.Errorf("repo %s: %w", repoID, ErrNoCredentials)
}
