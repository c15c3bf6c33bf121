package llm

import (
	"fmt"
	"net/http"
)

// Servers that speak the OpenAI chat completions API.
const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultLocalBaseURL      = "http://localhost:11434/v1"
)

// openRouterHeaders attribute traffic to this app on openrouter.ai.
var openRouterHeaders = http.Header{
	"HTTP-Referer": {"https://github.com/abhisek/snapask"},
	"X-Title":      {"snapask"},
}

// NewOpenRouterProvider targets OpenRouter. Model names pass through
// unchanged, e.g. "google/gemini-2.0-flash-001".
func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}
	return newOpenAICompatible(OpenAIConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: orDefault(cfg.BaseURL, defaultOpenRouterBaseURL),
	}, openRouterHeaders), nil
}

// NewLocalProvider talks to a local multimodal model server such as
// Ollama. No API key is required.
func NewLocalProvider(cfg LocalConfig) *OpenAIProvider {
	p := newOpenAICompatible(OpenAIConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: orDefault(cfg.BaseURL, defaultLocalBaseURL),
	}, nil)
	p.looseJSON = true
	return p
}

// headerTransport adds fixed headers to every request.
type headerTransport struct {
	header http.Header
	next   http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, vs := range t.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return t.next.RoundTrip(req)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
