package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/snapask/internal/store"
)

// NewProvider creates the Provider behind a variant.
// It returns the provider wrapped with retry and, when repo is non-nil,
// event logging middleware. A variant that is not configured yields a
// *ConfigError without touching the network.
func NewProvider(ctx context.Context, cfg Config, v Variant, repo store.EventRepo, logger *zap.Logger) (Provider, error) {
	if err := cfg.Validate(v); err != nil {
		return nil, err
	}

	var (
		base Provider
		name string
		err  error
	)
	switch v {
	case VariantRemote:
		name = cfg.Provider
		base, err = newHostedProvider(ctx, cfg, cfg.Provider, "")
	case VariantTextOnly:
		name = cfg.textProvider()
		base, err = newHostedProvider(ctx, cfg, name, cfg.TextOnly.Model)
		if err == nil {
			base = WithTextOnly(base)
		}
	case VariantLocal:
		name = "local"
		base = NewLocalProvider(cfg.Local)
	default:
		return nil, fmt.Errorf("unknown model variant %q", v)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", name, err)
	}
	if _, ok := base.(*MockProvider); ok {
		return base, nil
	}

	// Wrap with middleware: caller → retry → logging → base
	if repo != nil {
		base = WithLogging(base, name, repo, logger)
	}
	return WithRetry(base, cfg.Retry), nil
}

// newHostedProvider builds one of the vendor providers. A non-empty model
// overrides the configured one.
func newHostedProvider(ctx context.Context, cfg Config, provider, model string) (Provider, error) {
	switch provider {
	case "anthropic":
		c := cfg.Anthropic
		if model != "" {
			c.Model = model
		}
		return NewAnthropicProvider(c)
	case "openai":
		c := cfg.OpenAI
		if model != "" {
			c.Model = model
		}
		return NewOpenAIProvider(c)
	case "gemini":
		c := cfg.Gemini
		if model != "" {
			c.Model = model
		}
		return NewGeminiProvider(ctx, c)
	case "openrouter":
		c := cfg.OpenRouter
		if model != "" {
			c.Model = model
		}
		return NewOpenRouterProvider(c)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", provider)
	}
}

// resolveModel maps a short name like "claude-haiku" to the vendor's model
// ID. Unknown names are taken as model IDs.
func resolveModel(name string, models map[string]string) string {
	if id, ok := models[name]; ok {
		return id
	}
	return name
}
