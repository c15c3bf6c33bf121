package llm

import (
	"fmt"
	"os"
	"time"
)

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects the hosted API behind VariantRemote.
	// Values: "anthropic", "openai", "gemini", "openrouter", "mock"
	Provider string

	Anthropic  AnthropicConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Local      LocalConfig
	TextOnly   TextOnlyConfig
	Retry      RetryConfig

	// Timeout is the maximum duration for a single LLM request
	// (including retries). Default: 60s.
	Timeout time.Duration
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey string
	Model  string // Default: "claude-haiku"
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string // Default: "gpt-4o-mini"
	BaseURL string // Optional. Override for OpenRouter or compatible APIs.
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey string
	Model  string // Default: "gemini-flash"
}

// OpenRouterConfig holds OpenRouter-specific configuration.
type OpenRouterConfig struct {
	APIKey  string
	Model   string // Default: "google/gemini-2.0-flash-001"
	BaseURL string // Default: "https://openrouter.ai/api/v1"
}

// LocalConfig points at a local OpenAI-compatible model server.
type LocalConfig struct {
	BaseURL string // Default: "http://localhost:11434/v1" (Ollama)
	Model   string // Default: "llava"
	APIKey  string // Usually empty.
}

// TextOnlyConfig configures the text-only fallback. It reuses a hosted
// provider's credentials but never sends images.
type TextOnlyConfig struct {
	Provider string // Empty means the same as Config.Provider.
	Model    string // Empty means that provider's model.
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider: "anthropic",
		Anthropic: AnthropicConfig{
			Model: "claude-haiku",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Gemini: GeminiConfig{
			Model: "gemini-flash",
		},
		OpenRouter: OpenRouterConfig{
			Model: "google/gemini-2.0-flash-001",
		},
		Local: LocalConfig{
			BaseURL: defaultLocalBaseURL,
			Model:   "llava",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 1 * time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
		Timeout: 60 * time.Second,
	}
}

// ConfigFromEnv builds a Config from environment variables, falling back
// to defaults for unset values.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides fields with any SNAPASK_* variables that are set.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	set(&c.Provider, "SNAPASK_LLM_PROVIDER")

	set(&c.Anthropic.APIKey, "SNAPASK_ANTHROPIC_API_KEY")
	set(&c.Anthropic.Model, "SNAPASK_ANTHROPIC_MODEL")

	set(&c.OpenAI.APIKey, "SNAPASK_OPENAI_API_KEY")
	set(&c.OpenAI.Model, "SNAPASK_OPENAI_MODEL")
	set(&c.OpenAI.BaseURL, "SNAPASK_OPENAI_BASE_URL")

	set(&c.Gemini.APIKey, "SNAPASK_GEMINI_API_KEY")
	set(&c.Gemini.Model, "SNAPASK_GEMINI_MODEL")

	set(&c.OpenRouter.APIKey, "SNAPASK_OPENROUTER_API_KEY")
	set(&c.OpenRouter.Model, "SNAPASK_OPENROUTER_MODEL")

	set(&c.Local.BaseURL, "SNAPASK_LOCAL_BASE_URL")
	set(&c.Local.Model, "SNAPASK_LOCAL_MODEL")
	set(&c.Local.APIKey, "SNAPASK_LOCAL_API_KEY")

	set(&c.TextOnly.Provider, "SNAPASK_TEXT_PROVIDER")
	set(&c.TextOnly.Model, "SNAPASK_TEXT_MODEL")
}

// DiscoverConfig probes standard API key env vars in priority order
// (Gemini → OpenAI → Anthropic → OpenRouter) and returns a Config for the
// first provider whose key is found. Returns (Config{}, false) if none found.
func DiscoverConfig() (Config, bool) {
	cfg := DefaultConfig()

	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		cfg.Provider = "gemini"
		cfg.Gemini.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("OPENAI_API_KEY"); k != "" {
		cfg.Provider = "openai"
		cfg.OpenAI.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("ANTHROPIC_API_KEY"); k != "" {
		cfg.Provider = "anthropic"
		cfg.Anthropic.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("OPENROUTER_API_KEY"); k != "" {
		cfg.Provider = "openrouter"
		cfg.OpenRouter.APIKey = k
		return cfg, true
	}

	return Config{}, false
}

// Validate checks that the given variant has what it needs to make a call.
// It returns a *ConfigError when it does not.
func (c Config) Validate(v Variant) error {
	switch v {
	case VariantRemote:
		return c.validateHosted(v, c.Provider)
	case VariantTextOnly:
		return c.validateHosted(v, c.textProvider())
	case VariantLocal:
		if c.Local.BaseURL == "" {
			return &ConfigError{Variant: v, Msg: "SNAPASK_LOCAL_BASE_URL is required for the local model server"}
		}
		if c.Local.Model == "" {
			return &ConfigError{Variant: v, Msg: "SNAPASK_LOCAL_MODEL is required for the local model server"}
		}
		return nil
	default:
		return &ConfigError{Variant: v, Msg: "unknown model variant"}
	}
}

// IsConfigured reports whether Validate(v) passes.
func (c Config) IsConfigured(v Variant) bool {
	return c.Validate(v) == nil
}

func (c Config) validateHosted(v Variant, provider string) error {
	switch provider {
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			return &ConfigError{Variant: v, Msg: "SNAPASK_ANTHROPIC_API_KEY is required for the anthropic provider"}
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			return &ConfigError{Variant: v, Msg: "SNAPASK_OPENAI_API_KEY is required for the openai provider"}
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return &ConfigError{Variant: v, Msg: "SNAPASK_GEMINI_API_KEY is required for the gemini provider"}
		}
	case "openrouter":
		if c.OpenRouter.APIKey == "" {
			return &ConfigError{Variant: v, Msg: "SNAPASK_OPENROUTER_API_KEY is required for the openrouter provider"}
		}
	case "mock":
		// No API key needed.
	default:
		return &ConfigError{Variant: v, Msg: fmt.Sprintf("unknown LLM provider: %q", provider)}
	}
	return nil
}

func (c Config) textProvider() string {
	if c.TextOnly.Provider != "" {
		return c.TextOnly.Provider
	}
	return c.Provider
}
