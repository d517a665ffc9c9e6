// Package codehost contains the API clients used to fetch authoritative
// access lists from external code hosts. One Client per provider; providers
// without a client are excluded from permission sync scheduling entirely.
package codehost

import (
	"context"
	"net/http"
	"sort"

	"golang.org/x/oauth2"
)

// Identity is the auth material for one call: an OAuth/PAT token plus an
// optional API base URL override (self-hosted instances).
type Identity struct {
	Token   string
	BaseURL string
}

// Client lists host-side access data. All ids returned are the host's own
// identifiers, stringified; mapping them onto internal rows is the caller's
// job.
type Client interface {
	// ListPrivateRepos returns the ids of private repositories visible to
	// the identity's owner.
	ListPrivateRepos(ctx context.Context, identity Identity) ([]string, error)

	// ListPrivateAndInternalRepos additionally includes internal-visibility
	// repositories. Public repositories never need a permission edge.
	ListPrivateAndInternalRepos(ctx context.Context, identity Identity) ([]string, error)

	// ListCollaborators returns the ids of users with read access to
	// owner/name.
	ListCollaborators(ctx context.Context, identity Identity, owner, name string) ([]string, error)
}

// Registry maps provider names to clients.
type Registry map[string]Client

func (r Registry) ClientFor(provider string) (Client, bool) {
	c, ok := r[provider]
	return c, ok
}

// Providers returns the supported provider names, sorted for stable queries.
func (r Registry) Providers() []string {
	providers := make([]string, 0, len(r))
	for provider := range r {
		providers = append(providers, provider)
	}
	sort.Strings(providers)
	return providers
}

// httpClient builds an HTTP client that sends the identity's bearer token.
func httpClient(ctx context.Context, identity Identity) *http.Client {
	source := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: identity.Token,
		TokenType:   "Bearer",
	})
	return oauth2.NewClient(ctx, source)
}
