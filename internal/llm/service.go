// Package llm provides the text-to-text completion capability consumed by
// the SQL generator. The model itself is an opaque external service.
package llm

import "context"

// Service defines the interface for language model operations
type Service interface {
	// Complete sends a prompt and returns the raw model completion.
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// Options bound a single completion call.
type Options struct {
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// Config represents language model client configuration
type Config struct {
	Provider string `json:"provider"` // ollama, openai
	Model    string `json:"model"`
	APIKey   string `json:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
}

// Provider constants for supported language model backends
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)
