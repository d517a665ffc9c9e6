package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codelens/permsync-worker/internal/codehost"
	"github.com/codelens/permsync-worker/internal/models"
	"github.com/codelens/permsync-worker/internal/repository"
)

// RepoStore provides the repo rows and connection credentials the repo
// strategy needs.
type RepoStore interface {
	GetByID(ctx context.Context, repoID string) (*models.Repo, error)
	ListEligible(ctx context.Context, providers []string, threshold time.Time) ([]string, error)
	ResolveCredentials(ctx context.Context, repoID string) (*repository.Credentials, error)
}

// UserResolver maps code-host account ids onto internal user ids via linked
// accounts.
type UserResolver interface {
	ResolveProviderAccounts(ctx context.Context, provider string, providerAccountIDs []string) ([]string, error)
}

// RepoGrantWriter replaces the user -> repo permission edges for one repo.
type RepoGrantWriter interface {
	ReplaceRepoGrants(ctx context.Context, repoID string, userIDs []string) error
}

// RepoStrategy syncs who can see a single repo: list its collaborators on the
// code host, map them onto internal users via linked accounts, grant exactly
// that set. Collaborators with no linked account simply gain no edge.
type RepoStrategy struct {
	repos  RepoStore
	users  UserResolver
	grants RepoGrantWriter
	hosts  codehost.Registry
}

func NewRepoStrategy(repos RepoStore, users UserResolver, grants RepoGrantWriter, hosts codehost.Registry) *RepoStrategy {
	return &RepoStrategy{
		repos:  repos,
		users:  users,
		grants: grants,
		hosts:  hosts,
	}
}

func (s *RepoStrategy) SubjectType() string {
	return "repo"
}

func (s *RepoStrategy) SelectEligible(ctx context.Context, threshold time.Time) ([]string, error) {
	return s.repos.ListEligible(ctx, s.hosts.Providers(), threshold)
}

func (s *RepoStrategy) Reconcile(ctx context.Context, repoID string) ([]string, error) {
	repo, err := s.repos.GetByID(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to load repo: %w", err)
	}

	client, ok := s.hosts.ClientFor(repo.Provider)
	if !ok {
		return nil, fmt.Errorf("provider %s does not support permission syncing", repo.Provider)
	}

	credentials, err := s.repos.ResolveCredentials(ctx, repoID)
	if err != nil {
		return nil, err
	}

	owner, name, err := splitDisplayName(repo)
	if err != nil {
		return nil, err
	}

	collaboratorIDs, err := client.ListCollaborators(ctx, codehost.Identity{
		Token:   credentials.Token,
		BaseURL: credentials.HostURL,
	}, owner, name)
	if err != nil {
		return nil, err
	}

	return s.users.ResolveProviderAccounts(ctx, repo.Provider, collaboratorIDs)
}

func (s *RepoStrategy) ApplyGrants(ctx context.Context, repoID string, grants []string) error {
	return s.grants.ReplaceRepoGrants(ctx, repoID, grants)
}

// splitDisplayName splits "owner/name". Display names are set during
// connection sync; a missing one is a data error worth failing the job over.
func splitDisplayName(repo *models.Repo) (string, string, error) {
	if repo.DisplayName == nil || *repo.DisplayName == "" {
		return "", "", fmt.Errorf("repo %s has no display name", repo.ID)
	}

	parts := strings.SplitN(*repo.DisplayName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repo %s has malformed display name %q", repo.ID, *repo.DisplayName)
	}
	return parts[0], parts[1], nil
}
