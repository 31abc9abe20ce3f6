package wiki

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/triadhq/triad/internal/source"
)

// msgNoResults is the empty-result text. The wiki sufficiency phrases
// match it, so an empty index never counts as an answer.
const msgNoResults = "No relevant information found in the wiki documentation."

// excerptLength caps how much of each chunk is quoted in the result.
const excerptLength = 800

// Searcher is the part of *Store the adapter needs.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]Hit, error)
}

// Adapter exposes the wiki store as a source adapter.
type Adapter struct {
	store  Searcher
	topK   int
	logger *slog.Logger
}

// NewAdapter creates the wiki adapter. topK <= 0 selects 5.
func NewAdapter(store Searcher, topK int, logger *slog.Logger) *Adapter {
	if topK <= 0 {
		topK = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{store: store, topK: topK, logger: logger}
}

// Name implements source.Adapter.
func (a *Adapter) Name() string { return source.NameWiki }

// Search implements source.Adapter.
func (a *Adapter) Search(ctx context.Context, query string) (string, error) {
	hits, err := a.store.Search(ctx, query, a.topK)
	if err != nil {
		return "", fmt.Errorf("searching wiki: %w", err)
	}
	if len(hits) == 0 {
		return msgNoResults, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d relevant wiki pages:\n", len(hits))
	for i, h := range hits {
		fmt.Fprintf(&b, "\n%d. %s", i+1, h.Title)
		if h.Space != "" {
			fmt.Fprintf(&b, " (space: %s)", h.Space)
		}
		fmt.Fprintf(&b, "\n   Relevance: %.2f", h.Similarity)
		if h.URL != "" {
			fmt.Fprintf(&b, "\n   URL: %s", h.URL)
		}
		fmt.Fprintf(&b, "\n   %s\n", excerpt(h.Content))
	}
	return b.String(), nil
}

// excerpt trims a chunk for display, cutting at a word boundary.
func excerpt(content string) string {
	content = strings.TrimSpace(content)
	if len(content) <= excerptLength {
		return content
	}
	cut := content[:excerptLength]
	if idx := strings.LastIndexByte(cut, ' '); idx > excerptLength/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}
