package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/snapask/internal/store"
)

const answerSystemPrompt = `You answer questions about photos taken by a small wearable camera. ` +
	`The photos are attached in capture order, oldest first; the last one is the most recent. ` +
	`Answer in a few short sentences. If the photos do not show enough to answer, say so.`

// Vision answers a question about a sequence of images.
type Vision interface {
	AnalyzeImages(ctx context.Context, images [][]byte, question string) (string, error)
}

// Describer produces a structured description of one image.
type Describer interface {
	Describe(ctx context.Context, image []byte) (*Description, error)
}

// Description is the structured summary of a photo.
type Description struct {
	Summary string   `json:"summary"`
	Objects []string `json:"objects"`
	Text    string   `json:"text"`
}

// DescriptionSchema constrains Describe output.
var DescriptionSchema = &Schema{
	Name:        "photo-description",
	Description: "A short structured description of a single photo",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{
				"type":        "string",
				"description": "One sentence describing the scene",
			},
			"objects": map[string]any{
				"type":        "array",
				"description": "Notable objects visible in the photo",
				"items":       map[string]any{"type": "string"},
			},
			"text": map[string]any{
				"type":        "string",
				"description": "Any legible text in the photo, verbatim; empty if none",
			},
		},
		"required":             []any{"summary", "objects", "text"},
		"additionalProperties": false,
	},
}

// Analyzer adapts a Provider to the Vision and Describer capabilities.
type Analyzer struct {
	provider  Provider
	timeout   time.Duration
	maxTokens int
}

// NewAnalyzer wraps p. A zero timeout disables the per-call deadline.
func NewAnalyzer(p Provider, timeout time.Duration) *Analyzer {
	return &Analyzer{provider: p, timeout: timeout, maxTokens: 1024}
}

// ModelID reports the underlying model.
func (a *Analyzer) ModelID() string {
	return a.provider.ModelID()
}

// AnalyzeImages sends every image plus the question in one user message and
// returns the model's text.
func (a *Analyzer) AnalyzeImages(ctx context.Context, images [][]byte, question string) (string, error) {
	ctx, cancel := a.withTimeout(WithPurpose(ctx, PurposeAnswer))
	defer cancel()

	resp, err := a.provider.Generate(ctx, Request{
		System: answerSystemPrompt,
		Messages: []Message{{
			Role:    RoleUser,
			Content: question,
			Images:  ImagesFromBytes(images),
		}},
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return "", err
	}
	if resp.StopReason == "max_tokens" {
		return "", &ErrMaxTokensExceeded{Content: resp.Content}
	}

	answer := strings.TrimSpace(string(resp.Content))
	if answer == "" {
		return "", &ErrInvalidResponse{Content: resp.Content, Err: fmt.Errorf("empty answer")}
	}
	return answer, nil
}

// Describe asks for a schema-validated description of one image.
func (a *Analyzer) Describe(ctx context.Context, image []byte) (*Description, error) {
	ctx, cancel := a.withTimeout(WithPurpose(ctx, PurposeDescribe))
	defer cancel()

	resp, err := a.provider.Generate(ctx, Request{
		System: "Describe the photo. Respond only with JSON matching the schema.",
		Messages: []Message{{
			Role:    RoleUser,
			Content: "Describe this photo.",
			Images:  ImagesFromBytes([][]byte{image}),
		}},
		Schema:    DescriptionSchema,
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return nil, err
	}

	var d Description
	if err := decodeStructured(DescriptionSchema, resp.Content, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (a *Analyzer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

// Registry builds and caches one Analyzer per variant from a Config.
type Registry struct {
	cfg    Config
	repo   store.EventRepo
	logger *zap.Logger

	mu    sync.Mutex
	cache map[Variant]*Analyzer
}

// NewRegistry creates a Registry. repo may be nil to skip event logging.
func NewRegistry(cfg Config, repo store.EventRepo, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{cfg: cfg, repo: repo, logger: logger, cache: make(map[Variant]*Analyzer)}
}

// IsConfigured reports whether v can be used without a ConfigError.
func (r *Registry) IsConfigured(v Variant) bool {
	return r.cfg.IsConfigured(v)
}

// Validate returns the *ConfigError for v, if any.
func (r *Registry) Validate(v Variant) error {
	return r.cfg.Validate(v)
}

// Backend returns the Vision for v, building it on first use.
func (r *Registry) Backend(ctx context.Context, v Variant) (Vision, error) {
	a, err := r.analyzer(ctx, v)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Describer returns the Describer for v.
func (r *Registry) Describer(ctx context.Context, v Variant) (Describer, error) {
	a, err := r.analyzer(ctx, v)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *Registry) analyzer(ctx context.Context, v Variant) (*Analyzer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.cache[v]; ok {
		return a, nil
	}
	p, err := NewProvider(ctx, r.cfg, v, r.repo, r.logger)
	if err != nil {
		return nil, err
	}
	a := NewAnalyzer(p, r.cfg.Timeout)
	r.cache[v] = a
	return a, nil
}
