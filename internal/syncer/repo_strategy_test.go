package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codelens/permsync-worker/internal/codehost"
	"github.com/codelens/permsync-worker/internal/models"
	"github.com/codelens/permsync-worker/internal/repository"
)

type mockRepoStore struct {
	getByID            func(ctx context.Context, repoID string) (*models.Repo, error)
	listEligible       func(ctx context.Context, providers []string, threshold time.Time) ([]string, error)
	resolveCredentials func(ctx context.Context, repoID string) (*repository.Credentials, error)
}

func (m *mockRepoStore) GetByID(ctx context.Context, repoID string) (*models.Repo, error) {
	if m.getByID != nil {
		return m.getByID(ctx, repoID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockRepoStore) ListEligible(ctx context.Context, providers []string, threshold time.Time) ([]string, error) {
	if m.listEligible != nil {
		return m.listEligible(ctx, providers, threshold)
	}
	return nil, nil
}

func (m *mockRepoStore) ResolveCredentials(ctx context.Context, repoID string) (*repository.Credentials, error) {
	if m.resolveCredentials != nil {
		return m.resolveCredentials(ctx, repoID)
	}
	return &repository.Credentials{Token: "conn-token"}, nil
}

type mockUserResolver struct {
	linked map[string]string // provider account id -> internal user id
	err    error
}

func (m *mockUserResolver) ResolveProviderAccounts(ctx context.Context, provider string, providerAccountIDs []string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	var ids []string
	for _, providerAccountID := range providerAccountIDs {
		if id, ok := m.linked[providerAccountID]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func githubRepoRow(id, displayName string) *models.Repo {
	return &models.Repo{
		ID:          id,
		Name:        "widgets",
		DisplayName: &displayName,
		Provider:    "github",
		ExternalID:  "101",
	}
}

func TestRepoStrategy_Reconcile_MapsCollaboratorsToUsers(t *testing.T) {
	// Collaborator C1 has a linked account, C2 does not: only the user
	// behind C1 ends up in the grant set, C2 is silently excluded.
	repos := &mockRepoStore{
		getByID: func(ctx context.Context, repoID string) (*models.Repo, error) {
			return githubRepoRow(repoID, "acme/widgets"), nil
		},
		resolveCredentials: func(ctx context.Context, repoID string) (*repository.Credentials, error) {
			return &repository.Credentials{Token: "conn-token", HostURL: "https://ghe.example.com/api/v3"}, nil
		},
	}
	users := &mockUserResolver{linked: map[string]string{"C1": "user-1"}}
	host := &mockHostClient{
		listCollaborators: func(ctx context.Context, identity codehost.Identity, owner, name string) ([]string, error) {
			if identity.Token != "conn-token" {
				t.Errorf("expected connection token, got %q", identity.Token)
			}
			if identity.BaseURL != "https://ghe.example.com/api/v3" {
				t.Errorf("expected host URL from credentials, got %q", identity.BaseURL)
			}
			if owner != "acme" || name != "widgets" {
				t.Errorf("expected acme/widgets, got %s/%s", owner, name)
			}
			return []string{"C1", "C2"}, nil
		},
	}

	strategy := NewRepoStrategy(repos, users, newMockGrantWriter(), codehost.Registry{"github": host})
	grants, err := strategy.Reconcile(context.Background(), "repo-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(grants) != 1 || grants[0] != "user-1" {
		t.Errorf("expected grant set {user-1}, got %v", grants)
	}
}

func TestRepoStrategy_Reconcile_NoCredentials(t *testing.T) {
	repos := &mockRepoStore{
		getByID: func(ctx context.Context, repoID string) (*models.Repo, error) {
			return githubRepoRow(repoID, "acme/widgets"), nil
		},
		resolveCredentials: func(ctx context.Context, repoID string) (*repository.Credentials, error) {
			return nil, repository.ErrNoCredentials
		},
	}
	strategy := NewRepoStrategy(repos, &mockUserResolver{}, newMockGrantWriter(), codehost.Registry{"github": &mockHostClient{}})

	_, err := strategy.Reconcile(context.Background(), "repo-1")
	if !errors.Is(err, repository.ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestRepoStrategy_Reconcile_MissingDisplayName(t *testing.T) {
	repos := &mockRepoStore{
		getByID: func(ctx context.Context, repoID string) (*models.Repo, error) {
			repo := githubRepoRow(repoID, "acme/widgets")
			repo.DisplayName = nil
			return repo, nil
		},
	}
	strategy := NewRepoStrategy(repos, &mockUserResolver{}, newMockGrantWriter(), codehost.Registry{"github": &mockHostClient{}})

	if _, err := strategy.Reconcile(context.Background(), "repo-1"); err == nil {
		t.Fatal("expected error for repo without display name")
	}
}

func TestRepoStrategy_Reconcile_MalformedDisplayName(t *testing.T) {
	repos := &mockRepoStore{
		getByID: func(ctx context.Context, repoID string) (*models.Repo, error) {
			return githubRepoRow(repoID, "no-slash-here"), nil
		},
	}
	strategy := NewRepoStrategy(repos, &mockUserResolver{}, newMockGrantWriter(), codehost.Registry{"github": &mockHostClient{}})

	if _, err := strategy.Reconcile(context.Background(), "repo-1"); err == nil {
		t.Fatal("expected error for malformed display name")
	}
}

func TestRepoStrategy_Reconcile_ProviderErrorPropagates(t *testing.T) {
	repos := &mockRepoStore{
		getByID: func(ctx context.Context, repoID string) (*models.Repo, error) {
			return githubRepoRow(repoID, "acme/widgets"), nil
		},
	}
	providerErr := errors.New("api unavailable")
	host := &mockHostClient{
		listCollaborators: func(ctx context.Context, identity codehost.Identity, owner, name string) ([]string, error) {
			return nil, providerErr
		},
	}
	strategy := NewRepoStrategy(repos, &mockUserResolver{}, newMockGrantWriter(), codehost.Registry{"github": host})

	_, err := strategy.Reconcile(context.Background(), "repo-1")
	if !errors.Is(err, providerErr) {
		t.Fatalf("expected provider error to propagate, got %v", err)
	}
}

func TestRepoStrategy_ApplyGrants(t *testing.T) {
	grants := newMockGrantWriter()
	strategy := NewRepoStrategy(&mockRepoStore{}, &mockUserResolver{}, grants, codehost.Registry{})

	if err := strategy.ApplyGrants(context.Background(), "repo-1", []string{"user-1", "user-2"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := grants.replaced["repo-1"]; len(got) != 2 {
		t.Errorf("expected grants replaced for repo-1, got %v", got)
	}
}
