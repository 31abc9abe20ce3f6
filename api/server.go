// Package api exposes the assistant over HTTP.
//
// Endpoints:
//
//	POST /api/query                       answer a query (genkit.Handler over the query flow)
//	GET  /api/sessions                    list sessions
//	POST /api/sessions                    create a session
//	GET  /api/sessions/{id}               fetch one session
//	DELETE /api/sessions/{id}             delete a session and its history
//	DELETE /api/sessions/{id}/history     clear all backend histories, keep the session
//	GET  /health                          liveness probe
//	GET  /ready                           readiness probe (pings the database)
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/triadhq/triad/internal/assistant"
	"github.com/triadhq/triad/internal/log"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:3400"

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout guards against slow-header clients.
	ReadHeaderTimeout = 10 * time.Second

	ReadTimeout  = 30 * time.Second
	WriteTimeout = 120 * time.Second
	IdleTimeout  = 120 * time.Second
)

// Server is the HTTP server for the REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
}

// NewServer creates a server with all routes registered. queryFlow is
// obtained from assistant.DefineFlow; pinger is the database pool.
func NewServer(store SessionStore, pinger Pinger, queryFlow *assistant.Flow, logger log.Logger) *Server {
	mux := http.NewServeMux()

	NewHealthHandler(pinger, logger).RegisterRoutes(mux)
	NewSessionHandler(store, logger).RegisterRoutes(mux)
	NewQueryHandler(queryFlow, logger).RegisterRoutes(mux)

	return &Server{mux: mux, logger: logger}
}

// Handler returns the handler with middleware applied, recovery
// outermost.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
	)
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
