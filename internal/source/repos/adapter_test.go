package repos

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, searchBody string, readmes map[string]string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/search/repositories", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, searchBody)
	})
	mux.HandleFunc("/repos/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/repos/"), "/readme")
		readme, ok := readmes[name]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, readme)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestAdapter(t *testing.T, srv *httptest.Server) *Adapter {
	t.Helper()
	return New(Config{
		Token:        "test-token",
		Organization: "acme",
		MaxResults:   3,
		BaseURL:      srv.URL,
	}, nil)
}

func TestSearchFormatsRepositories(t *testing.T) {
	t.Parallel()

	searchBody := `{
		"total_count": 12,
		"items": [
			{
				"full_name": "acme/deploy-tool",
				"description": "Blue/green deploy automation",
				"html_url": "https://github.com/acme/deploy-tool",
				"language": "Go",
				"stargazers_count": 42,
				"topics": ["deploy", "infra"],
				"updated_at": "2026-07-01T00:00:00Z"
			},
			{
				"full_name": "acme/retry",
				"html_url": "https://github.com/acme/retry",
				"stargazers_count": 7
			}
		]
	}`
	srv := newTestServer(t, searchBody, map[string]string{
		"acme/deploy-tool": "# deploy-tool\n\nAutomates blue/green rollouts.",
	})
	a := newTestAdapter(t, srv)

	text, err := a.Search(t.Context(), "deploy automation")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, want := range []string{
		"Found 12 repositories (showing 2):",
		"1. acme/deploy-tool [Go] (42 stars)",
		"Blue/green deploy automation",
		"Topics: deploy, infra",
		"README: # deploy-tool Automates blue/green rollouts.",
		"2. acme/retry (7 stars)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("result missing %q:\n%s", want, text)
		}
	}
}

func TestSearchScopesQueryToOrganization(t *testing.T) {
	t.Parallel()

	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/search/repositories", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		fmt.Fprint(w, `{"total_count": 0, "items": []}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	a := New(Config{Organization: "acme", BaseURL: srv.URL}, nil)
	text, err := a.Search(t.Context(), "retry logic")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery != "retry logic org:acme" {
		t.Errorf("query = %q, want org-scoped query", gotQuery)
	}
	if text != msgNoResults {
		t.Errorf("empty search = %q, want no-results message", text)
	}
}

func TestSearchRateLimitIsAnError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/search/repositories", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	a := New(Config{BaseURL: srv.URL}, nil)
	_, err := a.Search(t.Context(), "anything")
	if err == nil {
		t.Fatal("rate limited response returned no error")
	}
	if !strings.Contains(err.Error(), "rate limit") {
		t.Errorf("error %q should mention rate limit for the retry layer", err)
	}
}

func TestSearchSurvivesMissingReadme(t *testing.T) {
	t.Parallel()

	searchBody := `{"total_count": 1, "items": [
		{"full_name": "acme/undocumented", "html_url": "https://github.com/acme/undocumented"}
	]}`
	srv := newTestServer(t, searchBody, nil)
	a := newTestAdapter(t, srv)

	text, err := a.Search(t.Context(), "anything")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if strings.Contains(text, "README:") {
		t.Errorf("README section present for repo without one:\n%s", text)
	}
	if !strings.Contains(text, "acme/undocumented") {
		t.Errorf("repository missing from result:\n%s", text)
	}
}
