// Package repos implements the code-host source adapter. It searches
// repositories through the GitHub REST API and enriches each match
// with a README excerpt.
package repos

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/triadhq/triad/internal/source"
)

// msgNoResults is matched by the code sufficiency phrases, so an empty
// search never counts as an answer.
const msgNoResults = "No relevant repositories found."

const (
	defaultBaseURL    = "https://api.github.com"
	defaultMaxResults = 3
	requestTimeout    = 15 * time.Second
	readmeExcerptLen  = 500
	maxResponseSize   = 1 << 20
)

// Config configures the GitHub adapter.
type Config struct {
	// Token is the API token. Optional: unauthenticated search works
	// with a much lower rate limit.
	Token string

	// Organization scopes every search to one org when set.
	Organization string

	// MaxResults caps how many repositories are returned per query.
	MaxResults int

	// BaseURL overrides the API endpoint, for GitHub Enterprise and
	// tests. Empty selects api.github.com.
	BaseURL string
}

// Adapter searches the code host.
type Adapter struct {
	client     *http.Client
	baseURL    string
	token      string
	org        string
	maxResults int
	logger     *slog.Logger
}

// New creates a code adapter.
func New(cfg Config, logger *slog.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		client:     &http.Client{Timeout: requestTimeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      cfg.Token,
		org:        cfg.Organization,
		maxResults: cfg.MaxResults,
		logger:     logger,
	}
}

// Name implements source.Adapter.
func (a *Adapter) Name() string { return source.NameCode }

type repository struct {
	FullName    string   `json:"full_name"`
	Description string   `json:"description"`
	HTMLURL     string   `json:"html_url"`
	Language    string   `json:"language"`
	Stars       int      `json:"stargazers_count"`
	Topics      []string `json:"topics"`
	UpdatedAt   string   `json:"updated_at"`
}

type searchResponse struct {
	TotalCount int          `json:"total_count"`
	Items      []repository `json:"items"`
}

// Search implements source.Adapter.
func (a *Adapter) Search(ctx context.Context, query string) (string, error) {
	q := query
	if a.org != "" {
		q = fmt.Sprintf("%s org:%s", query, a.org)
	}

	endpoint := fmt.Sprintf("%s/search/repositories?q=%s&per_page=%d",
		a.baseURL, url.QueryEscape(q), a.maxResults)

	var result searchResponse
	if err := a.getJSON(ctx, endpoint, &result); err != nil {
		return "", fmt.Errorf("searching repositories: %w", err)
	}
	if len(result.Items) == 0 {
		return msgNoResults, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d repositories (showing %d):\n", result.TotalCount, len(result.Items))
	for i, repo := range result.Items {
		fmt.Fprintf(&b, "\n%d. %s", i+1, repo.FullName)
		if repo.Language != "" {
			fmt.Fprintf(&b, " [%s]", repo.Language)
		}
		fmt.Fprintf(&b, " (%d stars)", repo.Stars)
		if repo.Description != "" {
			fmt.Fprintf(&b, "\n   %s", repo.Description)
		}
		if len(repo.Topics) > 0 {
			fmt.Fprintf(&b, "\n   Topics: %s", strings.Join(repo.Topics, ", "))
		}
		fmt.Fprintf(&b, "\n   URL: %s", repo.HTMLURL)

		// README fetch is best-effort; a repository without one still
		// counts as a result.
		if readme := a.readmeExcerpt(ctx, repo.FullName); readme != "" {
			fmt.Fprintf(&b, "\n   README: %s", readme)
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// readmeExcerpt fetches the start of a repository's README.
func (a *Adapter) readmeExcerpt(ctx context.Context, fullName string) string {
	endpoint := fmt.Sprintf("%s/repos/%s/readme", a.baseURL, fullName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ""
	}
	a.setHeaders(req)
	req.Header.Set("Accept", "application/vnd.github.raw+json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Debug("readme fetch failed", "repo", fullName, "error", err)
		return ""
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, readmeExcerptLen))
	if err != nil {
		return ""
	}
	text := strings.Join(strings.Fields(string(data)), " ")
	if len(data) == readmeExcerptLen {
		text += "..."
	}
	return text
}

// getJSON performs an authenticated GET and decodes the JSON body.
func (a *Adapter) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	a.setHeaders(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling api: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusTooManyRequests:
		// Surfaced verbatim so the retry layer recognizes it.
		return fmt.Errorf("api rate limit exceeded (status %d)", resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (a *Adapter) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
}
