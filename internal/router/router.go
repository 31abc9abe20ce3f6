// Package router decides which source backends to consult for a query
// and collects their results.
//
// Two interchangeable policies are supported, fixed per deployment:
//
//   - Sequential fallback: backends are tried in declared priority
//     order and routing stops at the first sufficient result. A
//     query-classification pre-step may promote the structured-data
//     backend to the front when the query uses counting or aggregation
//     vocabulary.
//   - Parallel fan-out: every backend is invoked concurrently and the
//     join waits for all of them (or their individual timeouts) before
//     the merger runs. No partial or streaming merge.
//
// In both policies each backend is invoked at most once per query, a
// failure in one backend never aborts the others, and results carry
// the sufficiency verdict so the merger only uses what actually
// answered the question.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/triadhq/triad/internal/session"
	"github.com/triadhq/triad/internal/source"
)

// Policy identifiers.
const (
	PolicySequential = "sequential"
	PolicyParallel   = "parallel"
)

// ErrNoBackends indicates a router was constructed without entries.
var ErrNoBackends = errors.New("router needs at least one backend")

// Backend is one invocable source, usually an LLM reasoning loop
// wrapped around a source.Adapter. Ask must honor ctx cancellation and
// must not be re-entered concurrently for the same session (the router
// guarantees at most one invocation per backend per query).
type Backend interface {
	// Name returns the backend identifier (source.NameWiki etc.).
	Name() string

	// Ask answers the query using the given read-only dialogue history.
	Ask(ctx context.Context, query string, history []session.Turn) (string, error)
}

// Entry pairs a backend with its sufficiency classifier.
type Entry struct {
	Backend    Backend
	Classifier source.Classifier
}

// Result is the outcome of consulting one backend. Ephemeral: it
// exists only for the duration of one routing decision.
type Result struct {
	Source     string
	Text       string
	Sufficient bool
}

// Histories provides read-only access to per-backend dialogue history.
// *session.History satisfies it.
type Histories interface {
	Turns(backend string) []session.Turn
}

// Config holds router construction parameters.
type Config struct {
	// Policy is PolicySequential or PolicyParallel.
	Policy string

	// BackendTimeout bounds each backend invocation. Zero disables the
	// per-backend timeout (the caller's ctx still applies).
	BackendTimeout time.Duration

	Logger *slog.Logger
}

// Router routes queries across the configured backends.
type Router struct {
	entries []Entry
	policy  string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Router over entries, which must be given in fixed
// source-priority order. A deployment that omits a backend simply
// leaves its entry out; absence and permanent insufficiency are
// indistinguishable downstream.
func New(entries []Entry, cfg Config) (*Router, error) {
	if len(entries) == 0 {
		return nil, ErrNoBackends
	}
	switch cfg.Policy {
	case PolicySequential, PolicyParallel:
	default:
		return nil, fmt.Errorf("unknown policy %q", cfg.Policy)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		entries: entries,
		policy:  cfg.Policy,
		timeout: cfg.BackendTimeout,
		logger:  logger,
	}, nil
}

// Route consults backends according to the configured policy and
// returns one Result per consulted backend, in source-priority order.
// Backend errors never propagate: they degrade to insufficient results.
func (r *Router) Route(ctx context.Context, query string, hist Histories) []Result {
	if r.policy == PolicyParallel {
		return r.routeParallel(ctx, query, hist)
	}
	return r.routeSequential(ctx, query, hist)
}

// invoke runs one backend with the per-backend timeout and converts
// any failure into an insufficient result.
func (r *Router) invoke(ctx context.Context, e Entry, query string, hist Histories) Result {
	name := e.Backend.Name()

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := e.Backend.Ask(callCtx, query, hist.Turns(name))
	if err != nil {
		// Transient failure, timeout, or missing configuration: the
		// backend simply contributed nothing this turn.
		r.logger.Warn("backend failed, treating as insufficient",
			"backend", name,
			"elapsed", time.Since(start),
			"error", err,
		)
		return Result{Source: name}
	}

	sufficient := e.Classifier.Sufficient(text)
	r.logger.Debug("backend answered",
		"backend", name,
		"length", len(text),
		"sufficient", sufficient,
		"elapsed", time.Since(start),
	)
	return Result{Source: name, Text: text, Sufficient: sufficient}
}
