package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/triadhq/triad/db"
	"github.com/triadhq/triad/internal/agent"
	"github.com/triadhq/triad/internal/assistant"
	"github.com/triadhq/triad/internal/config"
	"github.com/triadhq/triad/internal/log"
	"github.com/triadhq/triad/internal/merger"
	"github.com/triadhq/triad/internal/router"
	"github.com/triadhq/triad/internal/session"
	"github.com/triadhq/triad/internal/source"
	"github.com/triadhq/triad/internal/source/repos"
	"github.com/triadhq/triad/internal/source/sqldb"
	"github.com/triadhq/triad/internal/source/wiki"
)

// Setup creates and initializes the application. On error, everything
// already initialized is released; on success the caller owns Close.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	a.SessionStore = session.NewStore(pool, logger)
	a.WikiStore = wiki.NewStore(pool, embedder, logger)
	a.Crawler = wiki.NewCrawler(a.WikiStore, logger)

	entries, err := provideBackends(a)
	if err != nil {
		return nil, err
	}

	rt, err := router.New(entries, router.Config{
		Policy:         cfg.Router.Policy,
		BackendTimeout: time.Duration(cfg.Router.BackendTimeoutSeconds) * time.Second,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating router: %w", err)
	}

	var synth merger.Synthesizer
	if cfg.Merger.Strategy == config.StrategySynthesize {
		synth = agent.NewSynthesizer(g, qualifiedModel(cfg))
	}
	mg, err := merger.New(cfg.Merger.Strategy, synth, logger)
	if err != nil {
		return nil, fmt.Errorf("creating merger: %w", err)
	}

	a.Assistant = assistant.New(rt, mg, a.SessionStore, logger)
	a.Flow = assistant.DefineFlow(g, a.Assistant)

	return a, nil
}

// provideBackends builds the enabled backend entries in fixed source
// priority order, each wrapped in its agent and paired with its
// sufficiency classifier.
func provideBackends(a *App) ([]router.Entry, error) {
	cfg := a.Config
	agentCfg := agent.Config{
		Model:    qualifiedModel(cfg),
		MaxTurns: cfg.Router.MaxTurns,
		Logger:   a.Logger,
	}

	var entries []router.Entry
	add := func(adapter source.Adapter, bc config.BackendConfig) error {
		ag, err := agent.New(a.Genkit, adapter, agentCfg)
		if err != nil {
			return err
		}
		entries = append(entries, router.Entry{
			Backend: ag,
			Classifier: source.Classifier{
				MinLength:       bc.MinLength,
				NegativePhrases: bc.NegativePhrases,
			},
		})
		return nil
	}

	if cfg.Wiki.Enabled {
		adapter := wiki.NewAdapter(a.WikiStore, cfg.Wiki.TopK, a.Logger)
		if err := add(adapter, cfg.Wiki.BackendConfig); err != nil {
			return nil, fmt.Errorf("creating wiki backend: %w", err)
		}
	}
	if cfg.Code.Enabled {
		adapter := repos.New(repos.Config{
			Token:        cfg.Code.Token,
			Organization: cfg.Code.Organization,
			MaxResults:   cfg.Code.MaxResults,
		}, a.Logger)
		if err := add(adapter, cfg.Code.BackendConfig); err != nil {
			return nil, fmt.Errorf("creating code backend: %w", err)
		}
	}
	if cfg.Data.Enabled {
		gen := sqldb.NewLLMGenerator(a.Genkit, qualifiedModel(cfg))
		schema := sqldb.NewSchema(a.DBPool)
		adapter := sqldb.New(a.DBPool, gen, schema, cfg.Data.MaxRows, a.Logger)
		if err := add(adapter, cfg.Data.BackendConfig); err != nil {
			return nil, fmt.Errorf("creating data backend: %w", err)
		}
	}
	if len(entries) == 0 {
		return nil, errors.New("no backends enabled")
	}
	return entries, nil
}

// qualifiedModel returns the provider-qualified model name, e.g.
// "googleai/gemini-2.5-flash".
func qualifiedModel(cfg *config.Config) string {
	switch cfg.Provider {
	case config.ProviderOllama:
		return "ollama/" + cfg.ModelName
	case config.ProviderOpenAI:
		return "openai/" + cfg.ModelName
	default:
		return "googleai/" + cfg.ModelName
	}
}

// provideOtelShutdown sets up OTLP trace export to a local collector
// before Genkit initialization, so its TracerProvider is ready when
// the first flow runs. Returns a cleanup that flushes spans.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if !cfg.Otel.Enabled {
		return func() {}
	}

	agentHost := cfg.Otel.AgentHost
	if agentHost == "" {
		agentHost = "localhost:4318"
	}

	// Setenv is safe here: Setup runs once, before any goroutines.
	if cfg.Otel.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.Otel.ServiceName)
	}
	if cfg.Otel.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Otel.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(agentHost),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)
	logger.Debug("tracing enabled", "collector", agentHost, "service", cfg.Otel.ServiceName)

	shutdown := tracing.TracerProvider().Shutdown
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the configured AI provider.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama has no model auto-discovery.
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized genkit", "provider", "ollama", "model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized genkit", "provider", "openai", "model", cfg.ModelName)

	default:
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized genkit", "provider", "gemini", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider
// plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		// Ollama embedders are keyed by server address.
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideDBPool runs migrations and opens the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}
