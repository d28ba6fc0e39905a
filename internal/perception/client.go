// Package perception provides LLM completion clients. Providers are plain
// HTTP clients behind a minimal interface; the pipeline never sees provider
// details.
package perception

import (
	"context"
	"fmt"
	"time"
)

// LLMClient defines the interface for completion providers.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config holds provider selection and credentials.
type Config struct {
	Provider string // "gemini" or "openai"
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// NewClient creates an LLM client for the configured provider.
func NewClient(cfg Config) (LLMClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key not configured for provider %s", cfg.Provider)
	}
	switch cfg.Provider {
	case "gemini":
		return NewGeminiClientWithConfig(GeminiConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil
	case "openai":
		return NewOpenAIClientWithConfig(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s (use 'gemini' or 'openai')", cfg.Provider)
	}
}
