package codehost

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGitLab_ListPrivateAndInternalRepos_UnionsVisibilities(t *testing.T) {
	var visibilities []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/projects" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("membership"); got != "true" {
			t.Errorf("expected membership=true, got %q", got)
		}

		visibility := r.URL.Query().Get("visibility")
		visibilities = append(visibilities, visibility)
		switch visibility {
		case "private":
			json.NewEncoder(w).Encode([]gitlabProject{{ID: 10}, {ID: 11}})
		case "internal":
			// 11 appears in both listings; the union must dedupe it.
			json.NewEncoder(w).Encode([]gitlabProject{{ID: 11}, {ID: 12}})
		default:
			t.Errorf("unexpected visibility %q", visibility)
		}
	}))
	defer srv.Close()

	client := &GitLab{BaseURL: srv.URL}
	ids, err := client.ListPrivateAndInternalRepos(context.Background(), Identity{Token: "t"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(visibilities) != 2 {
		t.Fatalf("expected two listings, got %v", visibilities)
	}
	want := []string{"10", "11", "12"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("expected %v, got %v", want, ids)
			break
		}
	}
}

func TestGitLab_ListPrivateRepos_SingleVisibility(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("visibility"); got != "private" {
			t.Errorf("expected visibility=private, got %q", got)
		}
		json.NewEncoder(w).Encode([]gitlabProject{{ID: 7}})
	}))
	defer srv.Close()

	client := &GitLab{BaseURL: srv.URL}
	ids, err := client.ListPrivateRepos(context.Background(), Identity{Token: "t"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(ids) != 1 || ids[0] != "7" {
		t.Errorf("unexpected ids: %v", ids)
	}
}

func TestGitLab_ListCollaborators_EscapesProjectPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The owner/name pair travels as one URL-encoded path segment.
		if r.URL.EscapedPath() != "/projects/acme%2Fwidgets/members/all" {
			t.Errorf("unexpected path %s", r.URL.EscapedPath())
		}
		json.NewEncoder(w).Encode([]gitlabMember{{ID: 21, AccessLevel: 30}})
	}))
	defer srv.Close()

	client := &GitLab{BaseURL: srv.URL}
	ids, err := client.ListCollaborators(context.Background(), Identity{Token: "t"}, "acme", "widgets")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(ids) != 1 || ids[0] != "21" {
		t.Errorf("unexpected ids: %v", ids)
	}
}

func TestGitLab_APIErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"401 Unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := &GitLab{BaseURL: srv.URL}
	_, err := client.ListPrivateRepos(context.Background(), Identity{Token: "bad"})
	if err == nil {
		t.Fatal("expected error for non-2xx response, got nil")
	}
}
