package wiki

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
)

const (
	// chunkSize is the target chunk length in bytes. Pages are split
	// on paragraph boundaries so a chunk stays self-contained.
	chunkSize = 2000

	crawlDepth      = 3
	crawlDelay      = 200 * time.Millisecond
	defaultMaxPages = 200
)

// Adder is the part of *Store the crawler needs.
type Adder interface {
	Add(ctx context.Context, doc Document) error
}

// Crawler walks a wiki site and indexes every readable page.
type Crawler struct {
	store  Adder
	logger *slog.Logger
}

// NewCrawler creates a crawler writing into store.
func NewCrawler(store Adder, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{store: store, logger: logger}
}

// Crawl fetches pages reachable from baseURL on the same host,
// extracts their readable content, and indexes it in chunks. It
// returns the number of pages indexed. maxPages <= 0 selects the
// default cap.
func (c *Crawler) Crawl(ctx context.Context, baseURL string, maxPages int) (int, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return 0, fmt.Errorf("parsing base URL: %w", err)
	}
	if base.Host == "" {
		return 0, fmt.Errorf("base URL %q has no host", baseURL)
	}
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(base.Hostname()),
		colly.MaxDepth(crawlDepth),
	)
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 2,
		Delay:       crawlDelay,
	}); err != nil {
		return 0, fmt.Errorf("configuring crawl limits: %w", err)
	}

	var (
		mu      sync.Mutex
		indexed int
		errs    []error
	)

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		mu.Lock()
		full := indexed >= maxPages
		mu.Unlock()
		if full || ctx.Err() != nil {
			return
		}
		link := e.Attr("href")
		if strings.HasPrefix(link, "#") || strings.HasPrefix(link, "mailto:") {
			return
		}
		_ = e.Request.Visit(link)
	})

	collector.OnResponse(func(r *colly.Response) {
		if ctx.Err() != nil {
			return
		}
		if ct := r.Headers.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
			return
		}
		mu.Lock()
		if indexed >= maxPages {
			mu.Unlock()
			return
		}
		mu.Unlock()

		page, err := extractPage(r.Body, r.Request.URL)
		if err != nil {
			c.logger.Warn("skipping unreadable page", "url", r.Request.URL, "error", err)
			return
		}
		if strings.TrimSpace(page.text) == "" {
			return
		}

		if err := c.indexPage(ctx, page, r.Request.URL.String()); err != nil {
			c.logger.Error("indexing page failed", "url", r.Request.URL, "error", err)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			return
		}

		mu.Lock()
		indexed++
		n := indexed
		mu.Unlock()
		c.logger.Info("indexed page", "url", r.Request.URL, "title", page.title, "pages", n)
	})

	if err := collector.Visit(base.String()); err != nil {
		return 0, fmt.Errorf("starting crawl at %s: %w", baseURL, err)
	}
	collector.Wait()

	if indexed == 0 && len(errs) > 0 {
		return 0, fmt.Errorf("crawl indexed nothing: %w", errs[0])
	}
	return indexed, nil
}

type extracted struct {
	title string
	space string
	text  string
}

// extractPage pulls the readable text out of an HTML page, falling
// back to a bare goquery text scrape when readability rejects the
// document (navigation-heavy wiki index pages often trip it up).
func extractPage(body []byte, pageURL *url.URL) (extracted, error) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return extracted{
			title: strings.TrimSpace(article.Title),
			space: spaceFromPath(pageURL.Path),
			text:  article.TextContent,
		}, nil
	}

	doc, qerr := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if qerr != nil {
		return extracted{}, fmt.Errorf("parsing html: %w", qerr)
	}
	doc.Find("script, style, nav, header, footer").Remove()
	return extracted{
		title: strings.TrimSpace(doc.Find("title").First().Text()),
		space: spaceFromPath(pageURL.Path),
		text:  strings.TrimSpace(doc.Find("body").Text()),
	}, nil
}

// spaceFromPath derives the wiki space from the first URL path
// segment, e.g. /engineering/deploys -> engineering.
func spaceFromPath(path string) string {
	for seg := range strings.SplitSeq(strings.Trim(path, "/"), "/") {
		if seg != "" {
			return seg
		}
	}
	return ""
}

// indexPage chunks the page text and stores each chunk. Chunk IDs are
// derived from the URL so re-crawling upserts instead of duplicating.
func (c *Crawler) indexPage(ctx context.Context, page extracted, pageURL string) error {
	for i, chunk := range chunkText(page.text, chunkSize) {
		id := uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "%s#%d", pageURL, i))
		doc := Document{
			ID:      id.String(),
			Title:   page.title,
			Space:   page.space,
			URL:     pageURL,
			Content: chunk,
		}
		if err := c.store.Add(ctx, doc); err != nil {
			return fmt.Errorf("storing chunk %d of %s: %w", i, pageURL, err)
		}
	}
	return nil
}

// chunkText splits text into chunks of roughly size bytes, preferring
// paragraph boundaries and never splitting inside a paragraph unless a
// single paragraph alone exceeds the size.
func chunkText(text string, size int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for para := range strings.SplitSeq(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(para)+2 > size {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if len(para) > size {
			// Oversized paragraph: hard-split on the size boundary.
			for len(para) > size {
				chunks = append(chunks, para[:size])
				para = para[size:]
			}
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
