// Package agent wraps each source adapter in a small LLM reasoning
// loop: the model gets the backend's search capability as a tool,
// decides how to use it, and turns the raw retrieval output into a
// conversational answer. One Agent per backend, each with its own
// system prompt and its own slice of the session history.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/triadhq/triad/internal/session"
	"github.com/triadhq/triad/internal/source"
)

// DefaultMaxTurns bounds tool-call rounds per query.
const DefaultMaxTurns = 3

// Config holds per-agent construction parameters.
type Config struct {
	// Model is the model name, e.g. "googleai/gemini-2.5-flash".
	Model string

	// MaxTurns bounds tool-call rounds. <= 0 selects DefaultMaxTurns.
	MaxTurns int

	// RequestsPerMinute throttles model calls. <= 0 disables the
	// limiter.
	RequestsPerMinute int

	// Retry overrides the retry behavior. Zero value selects
	// DefaultRetryConfig.
	Retry RetryConfig

	Logger *slog.Logger
}

// Agent answers queries for one backend. It implements router.Backend.
type Agent struct {
	g        *genkit.Genkit
	name     string
	tool     ai.ToolRef
	model    string
	system   string
	maxTurns int
	limiter  *rate.Limiter
	retry    RetryConfig
	logger   *slog.Logger
}

// New creates an agent around adapter, registering the adapter's
// search capability as a model tool.
func New(g *genkit.Genkit, adapter source.Adapter, cfg Config) (*Agent, error) {
	name := adapter.Name()
	spec, ok := toolSpecs[name]
	if !ok {
		return nil, fmt.Errorf("no tool definition for backend %q", name)
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	retryCfg := cfg.Retry
	if retryCfg.MaxRetries == 0 && retryCfg.InitialInterval == 0 {
		retryCfg = DefaultRetryConfig()
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tool := genkit.DefineTool(g, spec.toolName, spec.toolDescription,
		func(ctx *ai.ToolContext, input struct {
			Query string `json:"query" jsonschema_description:"The search query or question to run against this source"`
		}) (string, error) {
			return adapter.Search(ctx, input.Query)
		},
	)

	return &Agent{
		g:        g,
		name:     name,
		tool:     tool,
		model:    cfg.Model,
		system:   spec.systemPrompt,
		maxTurns: maxTurns,
		limiter:  limiter,
		retry:    retryCfg,
		logger:   logger.With("backend", name),
	}, nil
}

// Name implements router.Backend.
func (a *Agent) Name() string { return a.name }

// Ask implements router.Backend.
func (a *Agent) Ask(ctx context.Context, query string, history []session.Turn) (string, error) {
	messages := make([]*ai.Message, 0, len(history)+1)
	for _, turn := range history {
		switch turn.Role {
		case session.RoleAssistant:
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(turn.Content)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(turn.Content)))
		}
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(query)))

	resp, err := a.generateWithRetry(ctx,
		ai.WithModelName(a.model),
		ai.WithSystem(a.system),
		ai.WithMessages(messages...),
		ai.WithTools(a.tool),
		ai.WithMaxTurns(a.maxTurns),
	)
	if err != nil {
		return "", fmt.Errorf("backend %s: %w", a.name, err)
	}
	return resp.Text(), nil
}

type toolSpec struct {
	toolName        string
	toolDescription string
	systemPrompt    string
}

var toolSpecs = map[string]toolSpec{
	source.NameWiki: {
		toolName: "searchWiki",
		toolDescription: "Search the team's wiki documentation for pages relevant to a question. " +
			"Returns the most similar pages with title, space, URL, relevance score, and an excerpt.",
		systemPrompt: "You answer questions from the team's wiki documentation.\n" +
			"Use the searchWiki tool to find relevant pages, then answer from what it returns.\n" +
			"Cite page titles and URLs. If the search results do not cover the question,\n" +
			"say that no relevant information was found instead of guessing.",
	},
	source.NameCode: {
		toolName: "searchCode",
		toolDescription: "Search the organization's code repositories. " +
			"Returns matching repositories with description, language, stars, topics, and a README excerpt.",
		systemPrompt: "You answer questions about the organization's code repositories.\n" +
			"Use the searchCode tool to find repositories, then answer from what it returns.\n" +
			"Name the repositories and link them. If nothing matches, say that no relevant\n" +
			"repositories were found instead of guessing.",
	},
	source.NameData: {
		toolName: "queryDatabase",
		toolDescription: "Answer a question from the relational database. " +
			"Generates and runs a read-only SQL query and returns the resulting rows as a table.",
		systemPrompt: "You answer questions from the organization's database.\n" +
			"Use the queryDatabase tool with the user's question, then summarize the rows it\n" +
			"returns. Quote exact numbers. If the tool reports it could not answer, relay\n" +
			"that message instead of inventing data.",
	},
}
