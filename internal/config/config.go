// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.triad/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, model, embedder
//   - Storage: PostgreSQL connection
//   - Backends: wiki, code, and data source settings including the
//     per-backend sufficiency heuristics
//   - Router/Merger: routing policy and merge strategy
//   - Server: HTTP API address
//   - Otel: trace export to a local collector
//
// Security: sensitive fields (password, tokens) are masked in
// MarshalJSON and never logged.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidRouterPolicy indicates an unknown routing policy.
	ErrInvalidRouterPolicy = errors.New("invalid router policy")

	// ErrInvalidMergeStrategy indicates an unknown merge strategy.
	ErrInvalidMergeStrategy = errors.New("invalid merge strategy")

	// ErrInvalidMinLength indicates a negative sufficiency threshold.
	ErrInvalidMinLength = errors.New("invalid sufficiency min length")

	// ErrInvalidMaxTurns indicates an out-of-range reasoning iteration cap.
	ErrInvalidMaxTurns = errors.New("invalid max turns")

	// ErrNoBackends indicates that every backend is disabled.
	ErrNoBackends = errors.New("no backends enabled")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Router policy identifiers used in Config.Router.Policy.
const (
	PolicySequential = "sequential"
	PolicyParallel   = "parallel"
)

// Merge strategy identifiers used in Config.Merger.Strategy.
const (
	StrategyConcat     = "concat"
	StrategySynthesize = "synthesize"
)

// BackendConfig configures one source backend, including its
// sufficiency heuristic. The phrase lists and length thresholds are
// tuned empirically and deliberately configurable; they are
// approximations, not contracts.
type BackendConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// MinLength is the minimum trimmed answer length for a result to
	// count as sufficient.
	MinLength int `mapstructure:"min_length" json:"min_length"`

	// NegativePhrases mark a result insufficient when any of them
	// occurs as a case-insensitive substring. For the data backend the
	// list holds error phrases: their presence means the query failed
	// rather than "nothing was found" (same check, inverted reading).
	NegativePhrases []string `mapstructure:"negative_phrases" json:"negative_phrases"`
}

// WikiConfig configures the wiki document backend.
type WikiConfig struct {
	BackendConfig `mapstructure:",squash"`

	// BaseURL is the wiki root used by the index command.
	BaseURL string `mapstructure:"base_url" json:"base_url"`

	// TopK is the number of document hits retrieved per search.
	TopK int `mapstructure:"top_k" json:"top_k"`
}

// CodeConfig configures the code-host backend.
type CodeConfig struct {
	BackendConfig `mapstructure:",squash"`

	// Token authenticates against the code host. SENSITIVE: masked in MarshalJSON.
	Token string `mapstructure:"token" json:"token"`

	// Organization limits repository search scope (empty = the
	// authenticated user's repositories).
	Organization string `mapstructure:"organization" json:"organization"`

	// MaxResults is the number of repositories returned per search.
	MaxResults int `mapstructure:"max_results" json:"max_results"`
}

// DataConfig configures the structured-data backend.
type DataConfig struct {
	BackendConfig `mapstructure:",squash"`

	// MaxRows caps the number of rows fetched per statement.
	MaxRows int `mapstructure:"max_rows" json:"max_rows"`
}

// RouterConfig configures routing behavior.
type RouterConfig struct {
	// Policy selects sequential-fallback or parallel fan-out.
	// Fixed per deployment; not switched mid-session.
	Policy string `mapstructure:"policy" json:"policy"`

	// BackendTimeoutSeconds bounds each adapter invocation.
	BackendTimeoutSeconds int `mapstructure:"backend_timeout_seconds" json:"backend_timeout_seconds"`

	// MaxTurns caps the reasoning/tool-call loop per backend invocation.
	MaxTurns int `mapstructure:"max_turns" json:"max_turns"`
}

// MergerConfig configures result merging.
type MergerConfig struct {
	// Strategy selects labeled concatenation or LLM synthesis.
	// Synthesis falls back to concatenation when the model call fails.
	Strategy string `mapstructure:"strategy" json:"strategy"`
}

// OtelConfig configures trace export to a local OTLP collector.
type OtelConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	AgentHost   string `mapstructure:"agent_host" json:"agent_host"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider" json:"provider"`
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	OllamaHost    string `mapstructure:"ollama_host" json:"ollama_host"`

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Source backends
	Wiki WikiConfig `mapstructure:"wiki" json:"wiki"`
	Code CodeConfig `mapstructure:"code" json:"code"`
	Data DataConfig `mapstructure:"data" json:"data"`

	// Orchestration
	Router RouterConfig `mapstructure:"router" json:"router"`
	Merger MergerConfig `mapstructure:"merger" json:"merger"`

	// HTTP API
	ServerAddr string `mapstructure:"server_addr" json:"server_addr"`

	// Observability
	Otel OtelConfig `mapstructure:"otel" json:"otel"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".triad")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
// The sufficiency defaults mirror the empirically tuned values
// documented in the backend packages.
func setDefaults(v *viper.Viper) {
	// AI defaults
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("embedder_model", "gemini-embedding-001")
	v.SetDefault("ollama_host", "http://localhost:11434")

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "triad")
	v.SetDefault("postgres_password", "triad_dev_password")
	v.SetDefault("postgres_db_name", "triad")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Wiki backend
	v.SetDefault("wiki.enabled", true)
	v.SetDefault("wiki.top_k", 5)
	v.SetDefault("wiki.min_length", 100)
	v.SetDefault("wiki.negative_phrases", []string{
		"no relevant information",
		"not found",
		"did not return",
		"no specific information",
		"could not find",
		"not seem related",
		"refine the search",
		"provide more details",
	})

	// Code backend
	v.SetDefault("code.enabled", true)
	v.SetDefault("code.max_results", 3)
	v.SetDefault("code.min_length", 50)
	v.SetDefault("code.negative_phrases", []string{
		"no relevant repositories",
		"not found",
		"no repositories matched",
		"code search is not available",
	})

	// Data backend: the phrase list is error-sensed; these phrases
	// mark a failed query, not an empty one.
	v.SetDefault("data.enabled", true)
	v.SetDefault("data.max_rows", 100)
	v.SetDefault("data.min_length", 50)
	v.SetDefault("data.negative_phrases", []string{
		"database query error",
		"only read-only",
		"could not generate",
		"database search is not available",
	})

	// Orchestration
	v.SetDefault("router.policy", PolicySequential)
	v.SetDefault("router.backend_timeout_seconds", 60)
	v.SetDefault("router.max_turns", 3)
	v.SetDefault("merger.strategy", StrategySynthesize)

	// HTTP API
	v.SetDefault("server_addr", "127.0.0.1:3400")

	// Otel
	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.agent_host", "localhost:4318")
	v.SetDefault("otel.service_name", "triad")
	v.SetDefault("otel.environment", "dev")
}

// bindEnvVariables binds environment variables explicitly.
// API keys for the model providers (GEMINI_API_KEY, OPENAI_API_KEY)
// are read directly by the Genkit plugins, not via Viper.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys can't fail to bind; a failure here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "TRIAD_PROVIDER")
	mustBind("model_name", "TRIAD_MODEL_NAME")
	mustBind("ollama_host", "TRIAD_OLLAMA_HOST")
	mustBind("postgres_host", "TRIAD_POSTGRES_HOST")
	mustBind("postgres_password", "TRIAD_POSTGRES_PASSWORD")
	mustBind("code.token", "TRIAD_CODE_TOKEN")
	mustBind("router.policy", "TRIAD_ROUTER_POLICY")
	mustBind("merger.strategy", "TRIAD_MERGER_STRATEGY")
	mustBind("server_addr", "TRIAD_SERVER_ADDR")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// MarshalJSON masks sensitive fields so a Config can be logged safely.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config // drop methods to avoid recursion
	masked := alias(c)
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = maskedValue
	}
	if masked.Code.Token != "" {
		masked.Code.Token = maskedValue
	}
	return json.Marshal(masked)
}

// PostgresURL returns the postgres:// connection URL for migrations
// and pool creation. The password is URL-escaped.
func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:   "/" + c.PostgresDBName,
	}
	q := url.Values{}
	q.Set("sslmode", c.PostgresSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
