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

func TestNewEmbeddingService(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *EmbeddingConfig
		expectError bool
	}{
		{
			name: "SiliconFlow config",
			cfg: &EmbeddingConfig{
				Provider:   "siliconflow",
				Model:      "BAAI/bge-m3",
				Dimensions: 1024,
				APIKey:     "test-key",
				BaseURL:    "https://api.siliconflow.cn/v1",
			},
		},
		{
			name: "OpenAI config",
			cfg: &EmbeddingConfig{
				Provider:   "openai",
				Model:      "text-embedding-3-small",
				Dimensions: 1536,
				APIKey:     "test-key",
			},
		},
		{
			name: "Ollama config",
			cfg: &EmbeddingConfig{
				Provider:   "ollama",
				Model:      "nomic-embed-text",
				Dimensions: 768,
				BaseURL:    "http://localhost:11434",
			},
		},
		{
			name:        "Unsupported provider",
			cfg:         &EmbeddingConfig{Provider: "unsupported"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewEmbeddingService(tt.cfg)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Dimensions, svc.Dimensions())
		})
	}
}

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

func newEmbeddingServer(t *testing.T, got *embeddingRequest) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(got))

		// Reply out of order to exercise index sorting.
		data := []map[string]any{}
		for i := len(got.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(i), float32(len(got.Input[i]))},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  got.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func TestEmbeddingService_EmbedBatch(t *testing.T) {
	var got embeddingRequest
	server := newEmbeddingServer(t, &got)
	defer server.Close()

	svc, err := NewEmbeddingService(&EmbeddingConfig{
		Provider:   "openai",
		Model:      "text-embedding-3-small",
		Dimensions: 2,
		APIKey:     "test-key",
		BaseURL:    server.URL + "/v1",
	})
	require.NoError(t, err)

	vectors, err := svc.EmbedBatch(context.Background(), []string{"plant", "watering can"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0, 5}, vectors[0])
	assert.Equal(t, []float32{1, 12}, vectors[1])
	assert.Equal(t, "text-embedding-3-small", got.Model)
	assert.Equal(t, 2, got.Dimensions)

	vector, err := svc.Embed(context.Background(), "fern")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 4}, vector)
}

func TestEmbeddingService_OmitsDimensionsForOtherModels(t *testing.T) {
	var got embeddingRequest
	server := newEmbeddingServer(t, &got)
	defer server.Close()

	svc, err := NewEmbeddingService(&EmbeddingConfig{
		Provider:   "siliconflow",
		Model:      "BAAI/bge-m3",
		Dimensions: 1024,
		APIKey:     "test-key",
		BaseURL:    server.URL + "/v1",
	})
	require.NoError(t, err)

	_, err = svc.Embed(context.Background(), "cactus")
	require.NoError(t, err)
	assert.Zero(t, got.Dimensions)
}

func TestEmbeddingService_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	svc, err := NewEmbeddingService(&EmbeddingConfig{
		Provider: "openai",
		Model:    "text-embedding-3-small",
		APIKey:   "bad",
		BaseURL:  server.URL + "/v1",
	})
	require.NoError(t, err)

	_, err = svc.EmbedBatch(context.Background(), nil)
	assert.Error(t, err)

	_, err = svc.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, isRetryable(err))
}
