package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewLLMService tests service creation.
func TestNewLLMService(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *LLMConfig
		expectError bool
	}{
		{
			name: "DeepSeek config",
			cfg: &LLMConfig{
				Provider:    "deepseek",
				Model:       "deepseek-chat",
				APIKey:      "test-key",
				BaseURL:     "https://api.deepseek.com",
				MaxTokens:   2048,
				Temperature: 0.2,
			},
		},
		{
			name: "OpenAI config",
			cfg: &LLMConfig{
				Provider: "openai",
				Model:    "gpt-4o-mini",
				APIKey:   "test-key",
			},
		},
		{
			name: "Ollama config",
			cfg: &LLMConfig{
				Provider: "ollama",
				Model:    "llama3",
				BaseURL:  "http://localhost:11434",
			},
		},
		{
			name:        "Unsupported provider",
			cfg:         &LLMConfig{Provider: "unsupported"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLLMService(tt.cfg)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLLMServiceChat(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "[]"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 1, "total_tokens": 6}
		}`))
	}))
	defer server.Close()

	svc, err := NewLLMService(&LLMConfig{
		Provider: "openai",
		Model:    "gpt-4o-mini",
		APIKey:   "test-key",
		BaseURL:  server.URL + "/v1",
	})
	require.NoError(t, err)

	out, err := Complete(context.Background(), svc, "rank these apps", "a JSON array")
	require.NoError(t, err)
	assert.Equal(t, "[]", out)

	messages, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	system, err := json.Marshal(messages[0])
	require.NoError(t, err)
	assert.Contains(t, string(system), `"role":"system"`)
	assert.Contains(t, string(system), "a JSON array")
}

func TestConvertMessages(t *testing.T) {
	messages := []Message{
		{Role: "system", Content: "You are a helpful assistant"},
		{Role: "user", Content: "Hello"},
		{Role: "assistant", Content: "Hi there"},
	}

	llmMessages := convertMessages(messages)
	require.Len(t, llmMessages, len(messages))
	assert.Equal(t, "system", string(llmMessages[0].Role))
	assert.Equal(t, "human", string(llmMessages[1].Role))
	assert.Equal(t, "ai", string(llmMessages[2].Role))
}

func TestMessageHelpers(t *testing.T) {
	assert.Equal(t, "system", SystemPrompt("s").Role)
	assert.Equal(t, "user", UserMessage("u").Role)
	assert.Equal(t, "assistant", AssistantMessage("a").Role)
}

func TestFormatMessages(t *testing.T) {
	history := []Message{
		{Role: "user", Content: "Previous message"},
		{Role: "assistant", Content: "Previous response"},
	}

	messages := FormatMessages("System prompt", "Current message", history)
	require.Len(t, messages, 4)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "user", messages[3].Role)
	assert.Equal(t, "Current message", messages[3].Content)

	assert.Len(t, FormatMessages("", "only", nil), 1)
}

type recordingLLM struct {
	messages []Message
}

func (r *recordingLLM) Chat(_ context.Context, messages []Message) (string, error) {
	r.messages = messages
	return "ok", nil
}

func TestCompleteWithoutHint(t *testing.T) {
	fake := &recordingLLM{}
	out, err := Complete(context.Background(), fake, "hello", "  ")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	require.Len(t, fake.messages, 2)
	assert.NotContains(t, fake.messages[0].Content, "Respond with")
	assert.Equal(t, "hello", fake.messages[1].Content)
}
