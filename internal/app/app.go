// Package app assembles the application: configuration, tracing, the
// database pool, the AI provider, the three source backends, and the
// orchestration pipeline on top of them.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/triadhq/triad/internal/assistant"
	"github.com/triadhq/triad/internal/config"
	"github.com/triadhq/triad/internal/log"
	"github.com/triadhq/triad/internal/session"
	"github.com/triadhq/triad/internal/source/wiki"
)

// App is the application container. Fields are populated by Setup and
// released by Close.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	SessionStore *session.Store
	WikiStore    *wiki.Store
	Crawler      *wiki.Crawler

	Assistant *assistant.Assistant
	Flow      *assistant.Flow

	otelCleanup func()
}

// Close releases all resources. Safe to call on a partially
// initialized App.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down")
	}

	if a.DBPool != nil {
		a.DBPool.Close()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
