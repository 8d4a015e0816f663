package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config holds intake-specific configuration fields alongside the common
// cfg.Registerable and cfg.Validatable interfaces.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	LLMProvider           string
	ClaudeAPIKey          string
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	PrimaryModel          string
	FallbackModel         string
	DatabaseURL           string
	DurableTriage         bool
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on API routes (empty = no auth)")
	fs.StringVar(&c.LLMProvider, "llm-provider", "claude", "text-generation backend: claude or openai")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude backend")
	fs.StringVar(&c.OpenAIAPIKey, "openai-api-key", "", "API key for the OpenAI-compatible backend")
	fs.StringVar(&c.OpenAIBaseURL, "openai-base-url", "", "override endpoint for OpenAI-compatible gateways")
	fs.StringVar(&c.PrimaryModel, "primary-model", "claude-sonnet-4-20250514", "model attempted first for every generation")
	fs.StringVar(&c.FallbackModel, "fallback-model", "claude-3-5-haiku-20241022", "model attempted when the primary fails")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.BoolVar(&c.DurableTriage, "durable-triage", true, "run triage through the checkpointed job runner when available")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	switch c.LLMProvider {
	case "claude":
		if c.ClaudeAPIKey == "" {
			errs = append(errs, errors.New("CLAUDE_API_KEY is required when LLM_PROVIDER=claude"))
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required when LLM_PROVIDER=openai"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid LLM_PROVIDER %q (must be claude or openai)", c.LLMProvider))
	}

	if c.PrimaryModel == "" {
		errs = append(errs, errors.New("PRIMARY_MODEL is required"))
	}
	if c.FallbackModel == "" {
		errs = append(errs, errors.New("FALLBACK_MODEL is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
