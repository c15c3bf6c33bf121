package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/abhisek/snapask/internal/store"
)

func TestAnalyzer_TimeoutAndTruncation(t *testing.T) {
	slow := NewAnalyzer(NewMockProvider(MockResponse{Content: json.RawMessage("late"), Delay: time.Second}), 20*time.Millisecond)
	_, err := slow.AnalyzeImages(context.Background(), [][]byte{{1}}, "q")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	cut := NewAnalyzer(NewMockProvider(MockResponse{Content: json.RawMessage("A mug on a"), StopReason: "max_tokens"}), 0)
	_, err = cut.AnalyzeImages(context.Background(), [][]byte{{1}}, "q")
	var mt *ErrMaxTokensExceeded
	assert.ErrorAs(t, err, &mt)
}

func TestAnalyzer_AnalyzeImages(t *testing.T) {
	mock := NewMockProvider(MockText("  A mug on a desk.\n"))
	a := NewAnalyzer(mock, 0)

	got, err := a.AnalyzeImages(context.Background(), [][]byte{{1}, {2}, {3}}, "what is this?")
	require.NoError(t, err)
	assert.Equal(t, "A mug on a desk.", got)

	require.Equal(t, 1, mock.CallCount())
	assert.Equal(t, 3, mock.ImagesSent(0))
	req := mock.Calls[0]
	assert.Equal(t, answerSystemPrompt, req.System)
	assert.Equal(t, "what is this?", req.Messages[0].Content)
	assert.Nil(t, req.Schema)
}

func TestAnalyzer_EmptyAnswerIsInvalid(t *testing.T) {
	a := NewAnalyzer(NewMockProvider(MockText("   ")), 0)

	_, err := a.AnalyzeImages(context.Background(), [][]byte{{1}}, "q")
	var inv *ErrInvalidResponse
	assert.ErrorAs(t, err, &inv)
}

func TestAnalyzer_PropagatesProviderError(t *testing.T) {
	boom := &ErrUnauthorized{Err: errors.New("bad key")}
	a := NewAnalyzer(NewMockProvider(MockResponse{Err: boom}), 0)

	_, err := a.AnalyzeImages(context.Background(), nil, "q")
	assert.ErrorIs(t, err, boom)
}

func TestAnalyzer_Describe(t *testing.T) {
	mock := NewMockProvider(MockResponse{
		Content: json.RawMessage(`{"summary":"A desk","objects":["mug","laptop"],"text":""}`),
	})
	a := NewAnalyzer(mock, 0)

	d, err := a.Describe(context.Background(), []byte{0xFF, 0xD8})
	require.NoError(t, err)
	assert.Equal(t, "A desk", d.Summary)
	assert.Equal(t, []string{"mug", "laptop"}, d.Objects)
	assert.Equal(t, DescriptionSchema, mock.Calls[0].Schema)
	assert.Equal(t, 1, mock.ImagesSent(0))
}

func TestDescriptionSchema_Validates(t *testing.T) {
	assert.NoError(t, checkSchema(DescriptionSchema,
		json.RawMessage(`{"summary":"x","objects":[],"text":"EXIT"}`)))

	var inv *ErrInvalidResponse
	assert.ErrorAs(t, checkSchema(DescriptionSchema,
		json.RawMessage(`{"summary":"x"}`)), &inv)
	assert.ErrorAs(t, checkSchema(DescriptionSchema,
		json.RawMessage(`{"summary":"x","objects":[],"text":"","extra":1}`)), &inv)
}

func TestRegistry_ConfigErrorAndCaching(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = "openai"
	r := NewRegistry(cfg, nil, nil)

	assert.False(t, r.IsConfigured(VariantRemote))
	_, err := r.Backend(context.Background(), VariantRemote)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)

	assert.True(t, r.IsConfigured(VariantLocal))
	first, err := r.Backend(context.Background(), VariantLocal)
	require.NoError(t, err)
	second, err := r.Backend(context.Background(), VariantLocal)
	require.NoError(t, err)
	assert.Same(t, first, second)

	d, err := r.Describer(context.Background(), VariantLocal)
	require.NoError(t, err)
	assert.Same(t, first.(*Analyzer), d.(*Analyzer))
}

func TestLoggingProvider_RecordsEvents(t *testing.T) {
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	repo := s.EventRepo()

	core, logs := observer.New(zap.DebugLevel)
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage("a cat"), Usage: Usage{InputTokens: 12, OutputTokens: 3}},
		MockResponse{Err: &ErrRateLimit{Err: errors.New("slow down")}},
	)
	p := WithLogging(mock, "anthropic", repo, zap.New(core))

	ctx := WithSession(WithPurpose(context.Background(), PurposeAnswer), "s-42")
	req := Request{Messages: []Message{{Role: RoleUser, Content: "what?", Images: ImagesFromBytes([][]byte{{1, 2}})}}}
	_, err = p.Generate(ctx, req)
	require.NoError(t, err)
	_, err = p.Generate(ctx, req)
	require.Error(t, err)

	events, err := repo.QueryLLMEvents(context.Background(), store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, events, 2)

	failed, ok := events[0], events[1]
	assert.False(t, failed.Success)
	assert.Contains(t, failed.ErrorMessage, "rate limited")
	assert.True(t, ok.Success)
	assert.Equal(t, "anthropic", ok.Provider)
	assert.Equal(t, "answer", ok.Purpose)
	assert.Equal(t, 12, ok.InputTokens)
	assert.Equal(t, "a cat", ok.ResponseBody)
	assert.Contains(t, ok.RequestBody, "<image 1: image/jpeg, 2 bytes>")
	assert.Equal(t, "s-42", ok.SessionID)

	other, err := repo.QueryLLMEvents(context.Background(), store.QueryOpts{Session: "s-7"})
	require.NoError(t, err)
	assert.Empty(t, other)

	assert.Equal(t, 1, logs.FilterMessage("llm request failed").Len())
	assert.Equal(t, "s-42", logs.FilterMessage("llm request failed").All()[0].ContextMap()["session"])
}
