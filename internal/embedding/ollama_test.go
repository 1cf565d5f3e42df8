package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return server
}

func TestOllamaProviderEmbed(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)

		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "show experiments", req.Prompt)

		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{
			Embedding: []float32{0.1, 0.2, 0.3},
		})
	})

	provider, err := NewOllamaProvider(Config{
		BaseURL:    server.URL,
		Model:      "nomic-embed-text",
		Dimensions: 3,
	}, time.Second)
	require.NoError(t, err)

	vec, err := provider.Embed(context.Background(), "show experiments")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, provider.Dimensions())
	assert.Equal(t, "ollama:nomic-embed-text", provider.Name())
}

func TestOllamaProviderDimensionMismatch(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{
			Embedding: []float32{0.1, 0.2},
		})
	})

	provider, err := NewOllamaProvider(Config{
		BaseURL:    server.URL,
		Model:      "nomic-embed-text",
		Dimensions: 768,
	}, time.Second)
	require.NoError(t, err)

	_, err = provider.Embed(context.Background(), "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestOllamaProviderAPIError(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Error: "model not found"})
	})

	provider, err := NewOllamaProvider(Config{
		BaseURL:    server.URL,
		Model:      "missing",
		Dimensions: 3,
	}, time.Second)
	require.NoError(t, err)

	_, err = provider.Embed(context.Background(), "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestOllamaProviderHTTPError(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	provider, err := NewOllamaProvider(Config{
		BaseURL:    server.URL,
		Model:      "nomic-embed-text",
		Dimensions: 3,
	}, time.Second)
	require.NoError(t, err)

	_, err = provider.Embed(context.Background(), "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestNewOllamaProviderValidation(t *testing.T) {
	_, err := NewOllamaProvider(Config{Model: "m", Dimensions: 3}, time.Second)
	assert.Error(t, err)

	_, err = NewOllamaProvider(Config{BaseURL: "http://x", Dimensions: 3}, time.Second)
	assert.Error(t, err)

	_, err = NewOllamaProvider(Config{BaseURL: "http://x", Model: "m"}, time.Second)
	assert.Error(t, err)
}

func TestOllamaProviderHealthy(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})

	provider, err := NewOllamaProvider(Config{
		BaseURL:    server.URL,
		Model:      "nomic-embed-text",
		Dimensions: 3,
	}, time.Second)
	require.NoError(t, err)

	assert.NoError(t, provider.Healthy(context.Background()))
}

func TestOllamaProviderHealthyDown(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	provider, err := NewOllamaProvider(Config{
		BaseURL:    server.URL,
		Model:      "nomic-embed-text",
		Dimensions: 3,
	}, time.Second)
	require.NoError(t, err)

	assert.Error(t, provider.Healthy(context.Background()))
}
