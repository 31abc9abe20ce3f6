package config

import "fmt"

// Validate checks the configuration for consistency.
// Returns a sentinel error (wrapped with context) on the first problem
// found, so callers can use errors.Is.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderGemini, ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q (expected gemini, ollama, or openai)", ErrInvalidProvider, c.Provider)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d (expected 1-65535)", ErrInvalidPostgresPort, c.PostgresPort)
	}

	switch c.Router.Policy {
	case PolicySequential, PolicyParallel:
	default:
		return fmt.Errorf("%w: %q (expected sequential or parallel)", ErrInvalidRouterPolicy, c.Router.Policy)
	}

	switch c.Merger.Strategy {
	case StrategyConcat, StrategySynthesize:
	default:
		return fmt.Errorf("%w: %q (expected concat or synthesize)", ErrInvalidMergeStrategy, c.Merger.Strategy)
	}

	if c.Router.MaxTurns < 1 || c.Router.MaxTurns > 10 {
		return fmt.Errorf("%w: %d (expected 1-10)", ErrInvalidMaxTurns, c.Router.MaxTurns)
	}

	for name, bc := range map[string]BackendConfig{
		"wiki": c.Wiki.BackendConfig,
		"code": c.Code.BackendConfig,
		"data": c.Data.BackendConfig,
	} {
		if bc.MinLength < 0 {
			return fmt.Errorf("%w: %s: %d", ErrInvalidMinLength, name, bc.MinLength)
		}
	}

	if !c.Wiki.Enabled && !c.Code.Enabled && !c.Data.Enabled {
		return fmt.Errorf("%w: enable at least one of wiki, code, data", ErrNoBackends)
	}

	return nil
}
