package config

import (
	"fmt"
	"time"
)

// Supported LLM providers.
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{ProviderGroq, ProviderOpenAI, ProviderGemini}

// DefaultBaseURLs holds the OpenAI-compatible endpoint per provider.
var DefaultBaseURLs = map[string]string{
	ProviderGroq:   "https://api.groq.com/openai/v1",
	ProviderOpenAI: "https://api.openai.com/v1",
}

// LLMConfig configures the language model clients.
// AnimationModel and SummaryModel fall back to Model when empty.
type LLMConfig struct {
	Provider           string  `yaml:"provider" toml:"provider"`
	APIKey             string  `yaml:"api_key" toml:"api_key"`
	Model              string  `yaml:"model" toml:"model"`
	AnimationModel     string  `yaml:"animation_model" toml:"animation_model"`
	SummaryModel       string  `yaml:"summary_model" toml:"summary_model"`
	TranscriptionModel string  `yaml:"transcription_model" toml:"transcription_model"`
	BaseURL            string  `yaml:"base_url" toml:"base_url"`
	Timeout            string  `yaml:"timeout" toml:"timeout"`
	MaxRetries         int     `yaml:"max_retries" toml:"max_retries"`
	Temperature        float64 `yaml:"temperature" toml:"temperature"`
}

// DefaultLLMConfig returns the Groq-backed defaults.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:           ProviderGroq,
		Model:              "llama-3.3-70b-versatile",
		SummaryModel:       "groq/compound",
		TranscriptionModel: "whisper-large-v3",
		Timeout:            "120s",
		MaxRetries:         3,
		Temperature:        0.2,
	}
}

// ProviderConfig is the resolved settings for one client instance.
type ProviderConfig struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	Temperature float64
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 120*time.Second)
}

// ResolveProvider builds the client settings for the given model override.
// An empty model means the default model.
func (c *Config) ResolveProvider(model string) ProviderConfig {
	if model == "" {
		model = c.LLM.Model
	}
	baseURL := c.LLM.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURLs[c.LLM.Provider]
	}
	return ProviderConfig{
		Provider:    c.LLM.Provider,
		APIKey:      c.LLM.APIKey,
		Model:       model,
		BaseURL:     baseURL,
		Timeout:     c.GetLLMTimeout(),
		MaxRetries:  c.LLM.MaxRetries,
		Temperature: c.LLM.Temperature,
	}
}

// AnimationProvider returns settings for the scene-writing client.
func (c *Config) AnimationProvider() ProviderConfig {
	return c.ResolveProvider(c.LLM.AnimationModel)
}

// SummaryProvider returns settings for the page summarizer. The default
// summary model is Groq-specific, so other providers use their main model.
func (c *Config) SummaryProvider() ProviderConfig {
	if c.LLM.Provider != ProviderGroq && c.LLM.SummaryModel == DefaultLLMConfig().SummaryModel {
		return c.ResolveProvider("")
	}
	return c.ResolveProvider(c.LLM.SummaryModel)
}

// RequireAPIKey reports an error when no key is configured.
func (l LLMConfig) RequireAPIKey() error {
	if l.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set GROQ_API_KEY, GEMINI_API_KEY, or OPENAI_API_KEY)")
	}
	return nil
}

func (l LLMConfig) validateProvider() error {
	for _, p := range ValidProviders {
		if l.Provider == p {
			return nil
		}
	}
	return fmt.Errorf("invalid LLM provider: %s (valid: %v)", l.Provider, ValidProviders)
}
