package codehost

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

const gitlabDefaultBaseURL = "https://gitlab.com/api/v4"

// GitLab implements Client against the GitLab REST API (v4).
type GitLab struct {
	// BaseURL is the API root, e.g. https://gitlab.com/api/v4.
	// Identity.BaseURL overrides it per call.
	BaseURL string
}

type gitlabProject struct {
	ID int64 `json:"id"`
}

type gitlabMember struct {
	ID          int64 `json:"id"`
	AccessLevel int   `json:"access_level"`
}

func (g *GitLab) ListPrivateRepos(ctx context.Context, identity Identity) ([]string, error) {
	return g.listProjects(ctx, identity, []string{"private"})
}

func (g *GitLab) ListPrivateAndInternalRepos(ctx context.Context, identity Identity) ([]string, error) {
	return g.listProjects(ctx, identity, []string{"private", "internal"})
}

// ListCollaborators returns all members (direct and inherited) with at least
// guest access to the project owner/name.
func (g *GitLab) ListCollaborators(ctx context.Context, identity Identity, owner, name string) ([]string, error) {
	projectPath := url.PathEscape(owner + "/" + name)

	var ids []string
	for page := 1; ; page++ {
		endpoint := fmt.Sprintf("%s/projects/%s/members/all?per_page=%d&page=%d",
			g.baseURL(identity), projectPath, perPage, page)

		var members []gitlabMember
		if err := getJSON(ctx, httpClient(ctx, identity), endpoint, &members); err != nil {
			return nil, fmt.Errorf("gitlab: list members for %s/%s: %w", owner, name, err)
		}

		for _, member := range members {
			ids = append(ids, strconv.FormatInt(member.ID, 10))
		}
		if len(members) < perPage {
			return ids, nil
		}
	}
}

// listProjects unions the authenticated user's member projects across the
// requested visibilities. The API takes one visibility per query, so each
// visibility is a separate paginated listing.
func (g *GitLab) listProjects(ctx context.Context, identity Identity, visibilities []string) ([]string, error) {
	seen := make(map[int64]struct{})
	var ids []string

	for _, visibility := range visibilities {
		for page := 1; ; page++ {
			endpoint := fmt.Sprintf("%s/projects?membership=true&visibility=%s&per_page=%d&page=%d",
				g.baseURL(identity), visibility, perPage, page)

			var projects []gitlabProject
			if err := getJSON(ctx, httpClient(ctx, identity), endpoint, &projects); err != nil {
				return nil, fmt.Errorf("gitlab: list %s projects: %w", visibility, err)
			}

			for _, project := range projects {
				if _, ok := seen[project.ID]; ok {
					continue
				}
				seen[project.ID] = struct{}{}
				ids = append(ids, strconv.FormatInt(project.ID, 10))
			}
			if len(projects) < perPage {
				break
			}
		}
	}
	return ids, nil
}

func (g *GitLab) baseURL(identity Identity) string {
	if identity.BaseURL != "" {
		return identity.BaseURL
	}
	if g.BaseURL != "" {
		return g.BaseURL
	}
	return gitlabDefaultBaseURL
}
