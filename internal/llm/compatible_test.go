package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatServer answers every chat completion with content and hands the
// request to inspect.
func chatServer(t *testing.T, content string, inspect func(r *http.Request, model string)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		inspect(r, body.Model)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "cmpl", "object": "chat.completion", "model": body.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewOpenRouterProvider_RequiresKey(t *testing.T) {
	_, err := NewOpenRouterProvider(OpenRouterConfig{Model: "google/gemini-2.0-flash-001"})
	assert.Error(t, err)

	p, err := NewOpenRouterProvider(OpenRouterConfig{APIKey: "sk-or-test", Model: "anthropic/claude-3-haiku"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-3-haiku", p.ModelID())
}

func TestOpenRouterProvider_SendsAttribution(t *testing.T) {
	var got http.Header
	server := chatServer(t, "two cups", func(r *http.Request, _ string) {
		got = r.Header.Clone()
	})

	p, err := NewOpenRouterProvider(OpenRouterConfig{
		APIKey:  "sk-or-test",
		Model:   "google/gemini-2.0-flash-001",
		BaseURL: server.URL + "/v1",
	})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "how many cups?"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "two cups", string(resp.Content))
	assert.Equal(t, "snapask", got.Get("X-Title"))
	assert.NotEmpty(t, got.Get("HTTP-Referer"))
	assert.Equal(t, "Bearer sk-or-test", got.Get("Authorization"))
}

func TestLocalProvider_TalksToCompatibleServer(t *testing.T) {
	var gotPath, gotModel, gotTitle string
	server := chatServer(t, "a plant", func(r *http.Request, model string) {
		gotPath = r.URL.Path
		gotModel = model
		gotTitle = r.Header.Get("X-Title")
	})

	p := NewLocalProvider(LocalConfig{BaseURL: server.URL + "/v1", Model: "llava"})
	resp, err := p.Generate(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "what?", Images: []Image{{Data: []byte{0xFF, 0xD8}}}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "a plant", string(resp.Content))
	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "llava", gotModel)
	assert.Empty(t, gotTitle)
}

func TestNewLocalProvider_DefaultBaseURL(t *testing.T) {
	p := NewLocalProvider(LocalConfig{Model: "moondream"})
	assert.Equal(t, "moondream", p.ModelID())
}

func TestLocalProvider_DescribesSchemaInPrompt(t *testing.T) {
	var body struct {
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "local", "object": "chat.completion", "model": "llava",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": `{"summary":"a desk","objects":["mug"],"text":""}`},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(server.Close)

	p := NewLocalProvider(LocalConfig{BaseURL: server.URL + "/v1", Model: "llava"})
	_, err := p.Generate(context.Background(), Request{
		System:   "Describe the photo.",
		Messages: []Message{{Role: RoleUser, Content: "Describe this photo."}},
		Schema:   DescriptionSchema,
	})
	require.NoError(t, err)
	assert.Equal(t, "json_object", body.ResponseFormat.Type)
	require.NotEmpty(t, body.Messages)
	assert.Equal(t, "system", body.Messages[0].Role)
	assert.Contains(t, body.Messages[0].Content, "Describe the photo.")
	assert.Contains(t, body.Messages[0].Content, `"summary"`)
}
