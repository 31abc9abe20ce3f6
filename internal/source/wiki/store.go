// Package wiki implements the documentation source: a pgvector-backed
// page store with semantic search, plus the crawler that fills it from
// a wiki site.
package wiki

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// searchTimeout bounds one embed-plus-vector-search round trip.
const searchTimeout = 10 * time.Second

// Document is one indexed wiki page chunk.
type Document struct {
	ID      string
	Title   string
	Space   string
	URL     string
	Content string
}

// Hit is a search result with its cosine similarity in [0, 1].
type Hit struct {
	Document
	Similarity float64
}

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store persists wiki page chunks with their embeddings and serves
// similarity search. Safe for concurrent use.
type Store struct {
	db       DB
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewStore creates a wiki store.
func NewStore(db DB, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, embedder: embedder, logger: logger}
}

// embed generates the embedding vector for one text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("generating embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding returned")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// Add upserts one document chunk, embedding its content.
func (s *Store) Add(ctx context.Context, doc Document) error {
	embedding, err := s.embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embedding document %q: %w", doc.ID, err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO wiki_documents (id, title, space, url, content, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		     title = EXCLUDED.title,
		     space = EXCLUDED.space,
		     url = EXCLUDED.url,
		     content = EXCLUDED.content,
		     embedding = EXCLUDED.embedding,
		     updated_at = now()`,
		doc.ID, doc.Title, doc.Space, doc.URL, doc.Content, embedding,
	)
	if err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.ID, err)
	}

	s.logger.Debug("indexed document", "id", doc.ID, "title", doc.Title, "length", len(doc.Content))
	return nil
}

// Search returns the topK most similar chunks to query, best first.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Hit, error) {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	embedding, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, title, space, url, content,
		        1 - (embedding <=> $1) AS similarity
		 FROM wiki_documents
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		embedding, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Title, &h.Space, &h.URL, &h.Content, &h.Similarity); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating hits: %w", err)
	}
	return hits, nil
}
