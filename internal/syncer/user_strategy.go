package syncer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/codelens/permsync-worker/internal/codehost"
	"github.com/codelens/permsync-worker/internal/models"
)

// UserStore provides the user rows the user strategy needs.
type UserStore interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	ListEligible(ctx context.Context, providers []string, threshold time.Time) ([]string, error)
}

// LinkedAccountStore lists the code host accounts linked to a user.
type LinkedAccountStore interface {
	ListForUser(ctx context.Context, userID string) ([]models.Account, error)
}

// UserGrantWriter replaces the user -> repo permission edges for one user.
type UserGrantWriter interface {
	ReplaceUserGrants(ctx context.Context, userID string, repoIDs []string) error
}

// UserStrategy syncs the repos a user can see across all of their linked
// accounts: for each supported provider identity, list private and internal
// repositories (internal visibility matters here; public never needs an
// edge), map onto internal repos and grant the union.
type UserStrategy struct {
	users    UserStore
	accounts LinkedAccountStore
	repos    RepoResolver
	grants   UserGrantWriter
	hosts    codehost.Registry
}

func NewUserStrategy(users UserStore, accounts LinkedAccountStore, repos RepoResolver, grants UserGrantWriter, hosts codehost.Registry) *UserStrategy {
	return &UserStrategy{
		users:    users,
		accounts: accounts,
		repos:    repos,
		grants:   grants,
		hosts:    hosts,
	}
}

func (s *UserStrategy) SubjectType() string {
	return "user"
}

func (s *UserStrategy) SelectEligible(ctx context.Context, threshold time.Time) ([]string, error) {
	return s.users.ListEligible(ctx, s.hosts.Providers(), threshold)
}

func (s *UserStrategy) Reconcile(ctx context.Context, userID string) ([]string, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	accounts, err := s.accounts.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var repoIDs []string
	for _, account := range accounts {
		client, ok := s.hosts.ClientFor(account.Provider)
		if !ok {
			continue
		}
		if account.AccessToken == nil || *account.AccessToken == "" {
			return nil, fmt.Errorf("user %s has no access token for linked %s account", userID, account.Provider)
		}

		externalIDs, err := client.ListPrivateAndInternalRepos(ctx, codehost.Identity{Token: *account.AccessToken})
		if err != nil {
			return nil, err
		}

		ids, err := s.repos.ResolveExternalIDs(ctx, account.Provider, externalIDs)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			repoIDs = append(repoIDs, id)
		}
	}

	sort.Strings(repoIDs)
	return repoIDs, nil
}

func (s *UserStrategy) ApplyGrants(ctx context.Context, userID string, grants []string) error {
	return s.grants.ReplaceUserGrants(ctx, userID, grants)
}
