package ai

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ProviderConfig selects and configures an LLM provider.
type ProviderConfig struct {
	Provider        string
	Model           string
	MaxTokens       int
	AnthropicAPIKey string
	OpenAIAPIKey    string
	Logger          zerolog.Logger
}

// NewClient returns the client for the configured provider. It returns
// ErrNotConfigured when the provider has no API key so callers can run in
// fallback mode.
func NewClient(cfg ProviderConfig) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", providerAnthropic:
		client, err := NewAnthropicClient(AnthropicConfig{
			APIKey:    cfg.AnthropicAPIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Logger:    cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case providerOpenAI:
		client, err := NewOpenAIClient(OpenAIConfig{
			APIKey:    cfg.OpenAIAPIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Logger:    cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s (supported: anthropic, openai)", cfg.Provider)
	}
}
