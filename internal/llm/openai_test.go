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

func chatCompletion(content, finish string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1760000000,
		"model":   "gpt-4o-mini-2024-07-18",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": finish,
		}},
		"usage": map[string]any{"prompt_tokens": 40, "completion_tokens": 25, "total_tokens": 65},
	}
}

func chatServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL + "/v1"
}

func TestOpenAIProvider_Generate(t *testing.T) {
	var body map[string]any
	url := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletion(`{"score":0.5,"pass":false}`, "stop"))
	})
	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", Model: "gpt-4o-mini", BaseURL: url})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), NewRequest("You grade answers.", "Answer: 42", verdictSchema(), 300))
	require.NoError(t, err)

	assert.JSONEq(t, `{"score":0.5,"pass":false}`, string(resp.Content))
	assert.Equal(t, Usage{InputTokens: 40, OutputTokens: 25}, resp.Usage)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", resp.Model)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.EqualValues(t, 300, body["max_completion_tokens"])
	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
	assert.Equal(t, "Answer: 42", messages[1].(map[string]any)["content"])

	format := body["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, "test-verdict", format["json_schema"].(map[string]any)["name"])
}

func TestOpenAIProvider_NoSystemPrompt(t *testing.T) {
	var body map[string]any
	url := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletion("free text", "stop"))
	})
	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", Model: "gpt-4o", BaseURL: url})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), NewRequest("", "hello", nil, 16))
	require.NoError(t, err)
	assert.Equal(t, "free text", string(resp.Content))
	assert.Len(t, body["messages"], 1)
	assert.NotContains(t, body, "response_format")
}

func TestOpenAIProvider_FinishReasons(t *testing.T) {
	tests := []struct {
		name    string
		content string
		finish  string
		check   func(t *testing.T, err error)
	}{
		{"length is truncation", `{"score":`, "length", func(t *testing.T, err error) {
			var trunc *ErrMaxTokensExceeded
			assert.ErrorAs(t, err, &trunc)
		}},
		{"missing field is invalid", `{"score":0.5}`, "stop", func(t *testing.T, err error) {
			var inv *ErrInvalidResponse
			assert.ErrorAs(t, err, &inv)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := chatServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(chatCompletion(tt.content, tt.finish))
			})
			p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", Model: "gpt-4o-mini", BaseURL: url})
			require.NoError(t, err)

			_, err = p.Generate(context.Background(), NewRequest("", "grade", verdictSchema(), 16))
			tt.check(t, err)
		})
	}
}

func TestOpenAIProvider_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"rate limit", http.StatusTooManyRequests, func(t *testing.T, err error) {
			var rl *ErrRateLimit
			assert.ErrorAs(t, err, &rl)
		}},
		{"server error", http.StatusBadGateway, func(t *testing.T, err error) {
			var unavailable *ErrProviderUnavailable
			assert.ErrorAs(t, err, &unavailable)
		}},
		{"bad request", http.StatusBadRequest, func(t *testing.T, err error) {
			var unavailable *ErrProviderUnavailable
			assert.ErrorAs(t, err, &unavailable)
			assert.ErrorContains(t, err, "openai:")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := chatServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"type": "error", "message": http.StatusText(tt.status)},
				})
			})
			p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", Model: "gpt-4o-mini", BaseURL: url})
			require.NoError(t, err)

			_, err = p.Generate(context.Background(), NewRequest("", "grade", nil, 16))
			tt.check(t, err)
		})
	}
}

func TestNewOpenAIProvider(t *testing.T) {
	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", p.ModelID())
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "https://api.openai.com/v1", p.baseURL)

	_, err = NewOpenAIProvider(OpenAIConfig{Model: "gpt-4o"})
	assert.ErrorContains(t, err, "api key not set")
}
