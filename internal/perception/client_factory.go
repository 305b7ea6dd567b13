package perception

import (
	"context"
	"fmt"

	"vibetex/internal/config"
)

// NewClientFromConfig builds the LLM client for a resolved provider.
func NewClientFromConfig(ctx context.Context, pc config.ProviderConfig) (LLMClient, error) {
	if pc.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	switch pc.Provider {
	case config.ProviderGroq, config.ProviderOpenAI:
		baseURL := pc.BaseURL
		if baseURL == "" {
			baseURL = config.DefaultBaseURLs[pc.Provider]
		}
		return NewChatClient(ChatConfig{
			Name:        pc.Provider,
			APIKey:      pc.APIKey,
			BaseURL:     baseURL,
			Model:       pc.Model,
			Temperature: pc.Temperature,
			MaxRetries:  pc.MaxRetries,
			Timeout:     pc.Timeout,
		}), nil
	case config.ProviderGemini:
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:      pc.APIKey,
			Model:       pc.Model,
			Temperature: pc.Temperature,
			Timeout:     pc.Timeout,
			BaseURL:     pc.BaseURL,
		})
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", pc.Provider)
	}
}
