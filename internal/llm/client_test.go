package llm

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

func TestClientCompleteOllama(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req.Model)
		assert.False(t, req.Stream)
		assert.Equal(t, 512, req.Options.NumPredict)
		assert.Zero(t, req.Options.Temperature)

		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Response: "SELECT * FROM ao LIMIT 10",
			Done:     true,
		})
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Provider: ProviderOllama,
		Model:    "llama3.2",
		BaseURL:  server.URL,
	}, time.Second)
	require.NoError(t, err)

	completion, err := client.Complete(context.Background(), "prompt", Options{MaxTokens: 512})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM ao LIMIT 10", completion)
}

func TestClientCompleteOpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(openAIResponse{
			Choices: []openAIChoice{
				{Message: openAIMessage{Role: "assistant", Content: "SELECT 1"}},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Provider: ProviderOpenAI,
		Model:    "gpt-4o-mini",
		APIKey:   "test-key",
		BaseURL:  server.URL,
	}, time.Second)
	require.NoError(t, err)

	completion, err := client.Complete(context.Background(), "prompt", Options{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", completion)
}

func TestClientOllamaAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaResponse{Error: "model not loaded"})
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Provider: ProviderOllama,
		Model:    "llama3.2",
		BaseURL:  server.URL,
	}, time.Second)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "prompt", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestClientHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Provider: ProviderOllama,
		Model:    "llama3.2",
		BaseURL:  server.URL,
	}, time.Second)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "prompt", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{Provider: "bedrock", Model: "m"}, time.Second)
	assert.Error(t, err)

	_, err = NewClient(Config{Provider: ProviderOpenAI, Model: "m"}, time.Second)
	assert.Error(t, err) // missing API key

	_, err = NewClient(Config{Provider: ProviderOllama}, time.Second)
	assert.Error(t, err) // missing model

	client, err := NewClient(Config{Provider: ProviderOllama, Model: "llama3.2"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434", client.config.BaseURL)
}

func TestClientHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Provider: ProviderOllama,
		Model:    "llama3.2",
		BaseURL:  server.URL,
	}, time.Second)
	require.NoError(t, err)

	assert.NoError(t, client.Healthy(context.Background()))
}

func TestClientHealthyOpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Provider: ProviderOpenAI,
		Model:    "gpt-4o-mini",
		APIKey:   "test-key",
		BaseURL:  server.URL,
	}, time.Second)
	require.NoError(t, err)

	assert.NoError(t, client.Healthy(context.Background()))
}
