package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/codelens/permsync-worker/internal/codehost"
	"github.com/codelens/permsync-worker/internal/models"
)

// AccountStore provides the linked-account rows the account strategy needs.
type AccountStore interface {
	GetByID(ctx context.Context, accountID string) (*models.Account, error)
	ListEligible(ctx context.Context, providers []string, threshold time.Time) ([]string, error)
}

// RepoResolver maps code-host repository ids onto internal repo ids.
type RepoResolver interface {
	ResolveExternalIDs(ctx context.Context, provider string, externalIDs []string) ([]string, error)
}

// AccountGrantWriter replaces the account -> repo permission edges.
type AccountGrantWriter interface {
	ReplaceAccountGrants(ctx context.Context, accountID string, repoIDs []string) error
}

// AccountStrategy syncs the repos a single linked account can see: list the
// private repositories visible to the account's token, intersect with
// internally known repos, grant exactly that set.
type AccountStrategy struct {
	accounts AccountStore
	repos    RepoResolver
	grants   AccountGrantWriter
	hosts    codehost.Registry
}

func NewAccountStrategy(accounts AccountStore, repos RepoResolver, grants AccountGrantWriter, hosts codehost.Registry) *AccountStrategy {
	return &AccountStrategy{
		accounts: accounts,
		repos:    repos,
		grants:   grants,
		hosts:    hosts,
	}
}

func (s *AccountStrategy) SubjectType() string {
	return "account"
}

func (s *AccountStrategy) SelectEligible(ctx context.Context, threshold time.Time) ([]string, error) {
	return s.accounts.ListEligible(ctx, s.hosts.Providers(), threshold)
}

func (s *AccountStrategy) Reconcile(ctx context.Context, accountID string) ([]string, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	client, ok := s.hosts.ClientFor(account.Provider)
	if !ok {
		return nil, fmt.Errorf("provider %s does not support permission syncing", account.Provider)
	}
	if account.AccessToken == nil || *account.AccessToken == "" {
		return nil, fmt.Errorf("account %s has no %s access token", accountID, account.Provider)
	}

	// Only private repos need an edge; public visibility is handled outside
	// the permission model.
	externalIDs, err := client.ListPrivateRepos(ctx, codehost.Identity{Token: *account.AccessToken})
	if err != nil {
		return nil, err
	}

	return s.repos.ResolveExternalIDs(ctx, account.Provider, externalIDs)
}

func (s *AccountStrategy) ApplyGrants(ctx context.Context, accountID string, grants []string) error {
	return s.grants.ReplaceAccountGrants(ctx, accountID, grants)
}
