// Package assistant is the top-level query orchestrator: it loads the
// session's per-backend histories, routes the query, merges the
// results, and persists the new turns.
package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/triadhq/triad/internal/merger"
	"github.com/triadhq/triad/internal/router"
	"github.com/triadhq/triad/internal/session"
	"github.com/triadhq/triad/internal/source"
)

// historyLimit caps how many turns per backend are replayed into a
// query.
const historyLimit = 20

// Router routes one query across the backends.
type Router interface {
	Route(ctx context.Context, query string, hist router.Histories) []router.Result
}

// Merger merges routed results into the final answer.
type Merger interface {
	Merge(ctx context.Context, query string, results []router.Result) merger.Answer
}

// Sessions is the slice of *session.Store the assistant needs.
type Sessions interface {
	Get(ctx context.Context, id uuid.UUID) (*session.Session, error)
	Create(ctx context.Context, title string) (*session.Session, error)
	AppendTurns(ctx context.Context, sessionID uuid.UUID, backend string, turns []session.Turn) error
	Turns(ctx context.Context, sessionID uuid.UUID, backend string, limit int32) ([]session.Turn, error)
	ClearTurns(ctx context.Context, sessionID uuid.UUID) error
}

// Assistant answers queries within persistent sessions.
type Assistant struct {
	router   Router
	merger   Merger
	sessions Sessions
	logger   *slog.Logger
}

// New creates an Assistant.
func New(r Router, m Merger, sessions Sessions, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{router: r, merger: m, sessions: sessions, logger: logger}
}

// StartSession creates a new session titled after the first query.
func (a *Assistant) StartSession(ctx context.Context, firstQuery string) (*session.Session, error) {
	return a.sessions.Create(ctx, firstQuery)
}

// ClearHistory wipes every backend's history for the session at once.
func (a *Assistant) ClearHistory(ctx context.Context, sessionID uuid.UUID) error {
	return a.sessions.ClearTurns(ctx, sessionID)
}

// HandleQuery answers one user query within a session.
//
// Each consulted backend records its own exchange in its own history,
// so a follow-up question reaches every backend with the context of
// what that backend previously said. The merged answer goes into the
// transcript history. Persistence failures are logged but do not
// discard an already-computed answer.
func (a *Assistant) HandleQuery(ctx context.Context, sessionID uuid.UUID, query string) (merger.Answer, error) {
	if _, err := a.sessions.Get(ctx, sessionID); err != nil {
		return merger.Answer{}, fmt.Errorf("loading session: %w", err)
	}

	hist, err := a.loadHistories(ctx, sessionID)
	if err != nil {
		return merger.Answer{}, err
	}

	results := a.router.Route(ctx, query, hist)
	answer := a.merger.Merge(ctx, query, results)

	a.persistTurns(ctx, sessionID, query, results, answer)

	a.logger.Info("answered query",
		"session", sessionID,
		"consulted", len(results),
		"sources_used", answer.SourcesUsed,
	)
	return answer, nil
}

// loadHistories preloads every backend's recent turns into memory so
// routing never blocks on the database mid-flight.
func (a *Assistant) loadHistories(ctx context.Context, sessionID uuid.UUID) (*session.History, error) {
	hist := session.NewHistory()
	for _, backend := range source.Priority() {
		turns, err := a.sessions.Turns(ctx, sessionID, backend, historyLimit)
		if err != nil {
			return nil, fmt.Errorf("loading history for backend %q: %w", backend, err)
		}
		hist.Append(backend, turns...)
	}
	return hist, nil
}

func (a *Assistant) persistTurns(ctx context.Context, sessionID uuid.UUID, query string, results []router.Result, answer merger.Answer) {
	for _, res := range results {
		if res.Text == "" {
			// Failed backend: nothing worth replaying next turn.
			continue
		}
		turns := []session.Turn{
			{Role: session.RoleUser, Content: query},
			{Role: session.RoleAssistant, Content: res.Text},
		}
		if err := a.sessions.AppendTurns(ctx, sessionID, res.Source, turns); err != nil {
			a.logger.Error("persisting backend turns failed",
				"session", sessionID, "backend", res.Source, "error", err)
		}
	}

	transcript := []session.Turn{
		{Role: session.RoleUser, Content: query},
		{Role: session.RoleAssistant, Content: answer.Text},
	}
	if err := a.sessions.AppendTurns(ctx, sessionID, session.TranscriptBackend, transcript); err != nil {
		a.logger.Error("persisting transcript failed", "session", sessionID, "error", err)
	}
}
