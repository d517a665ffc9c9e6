package codehost

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

const githubDefaultBaseURL = "https://api.github.com"

// GitHub implements Client against the GitHub REST API.
type GitHub struct {
	// BaseURL is the API root, e.g. https://api.github.com or
	// https://ghe.example.com/api/v3. Identity.BaseURL overrides it per call.
	BaseURL string
}

type githubRepo struct {
	ID         int64  `json:"id"`
	Visibility string `json:"visibility"`
}

type githubUser struct {
	ID int64 `json:"id"`
}

func (g *GitHub) ListPrivateRepos(ctx context.Context, identity Identity) ([]string, error) {
	repos, err := g.listRepos(ctx, identity, "private")
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(repos))
	for _, repo := range repos {
		ids = append(ids, strconv.FormatInt(repo.ID, 10))
	}
	return ids, nil
}

func (g *GitHub) ListPrivateAndInternalRepos(ctx context.Context, identity Identity) ([]string, error) {
	// The visibility filter only accepts all/public/private, so internal
	// repos (GitHub Enterprise) are found by listing everything and dropping
	// the public ones.
	repos, err := g.listRepos(ctx, identity, "all")
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(repos))
	for _, repo := range repos {
		if repo.Visibility == "public" {
			continue
		}
		ids = append(ids, strconv.FormatInt(repo.ID, 10))
	}
	return ids, nil
}

func (g *GitHub) ListCollaborators(ctx context.Context, identity Identity, owner, name string) ([]string, error) {
	path := fmt.Sprintf("/repos/%s/%s/collaborators", url.PathEscape(owner), url.PathEscape(name))

	var ids []string
	for page := 1; ; page++ {
		endpoint := fmt.Sprintf("%s%s?affiliation=all&per_page=%d&page=%d",
			g.baseURL(identity), path, perPage, page)

		var users []githubUser
		if err := getJSON(ctx, httpClient(ctx, identity), endpoint, &users); err != nil {
			return nil, fmt.Errorf("github: list collaborators for %s/%s: %w", owner, name, err)
		}

		for _, user := range users {
			ids = append(ids, strconv.FormatInt(user.ID, 10))
		}
		if len(users) < perPage {
			return ids, nil
		}
	}
}

func (g *GitHub) listRepos(ctx context.Context, identity Identity, visibility string) ([]githubRepo, error) {
	var repos []githubRepo
	for page := 1; ; page++ {
		endpoint := fmt.Sprintf("%s/user/repos?visibility=%s&per_page=%d&page=%d",
			g.baseURL(identity), visibility, perPage, page)

		var batch []githubRepo
		if err := getJSON(ctx, httpClient(ctx, identity), endpoint, &batch); err != nil {
			return nil, fmt.Errorf("github: list repos: %w", err)
		}

		repos = append(repos, batch...)
		if len(batch) < perPage {
			return repos, nil
		}
	}
}

func (g *GitHub) baseURL(identity Identity) string {
	if identity.BaseURL != "" {
		return identity.BaseURL
	}
	if g.BaseURL != "" {
		return g.BaseURL
	}
	return githubDefaultBaseURL
}

const perPage = 100

// getJSON performs a GET and decodes the JSON response, capturing error
// bodies for diagnostics.
func getJSON(ctx context.Context, client *http.Client, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
