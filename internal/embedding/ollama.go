package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/DanaKeydar-LabOS/lab-ai/internal/metrics"
)

// OllamaProvider generates embeddings through an Ollama server.
type OllamaProvider struct {
	config     Config
	httpClient *http.Client
}

// NewOllamaProvider creates an embedding provider backed by Ollama.
func NewOllamaProvider(config Config, timeout time.Duration) (*OllamaProvider, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	if config.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}

	if config.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive")
	}

	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &OllamaProvider{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// Embed generates an embedding for the given text
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	metrics.ModelCalls.WithLabelValues("embed").Inc()

	reqBody := ollamaEmbedRequest{
		Model:  p.config.Model,
		Prompt: text,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, p.config.BaseURL+"/api/embeddings", bytes.NewBuffer(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response ollamaEmbedResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}

	if response.Error != "" {
		return nil, fmt.Errorf("embedding API error: %s", response.Error)
	}

	if len(response.Embedding) != p.config.Dimensions {
		return nil, fmt.Errorf(
			"dimension mismatch: expected %d, got %d",
			p.config.Dimensions, len(response.Embedding),
		)
	}

	return response.Embedding, nil
}

// Healthy probes the Ollama server without generating anything.
func (p *OllamaProvider) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("embedding provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding provider returned status %d", resp.StatusCode)
	}

	return nil
}

// Dimensions returns the embedding dimensions
func (p *OllamaProvider) Dimensions() int {
	return p.config.Dimensions
}

// Name returns the provider name for identification
func (p *OllamaProvider) Name() string {
	return "ollama:" + p.config.Model
}
