package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_LLM(t *testing.T) {
	t.Run("GROQ_API_KEY sets provider", func(t *testing.T) {
		clearLLMEnv(t)
		t.Setenv("GROQ_API_KEY", "gsk-key")

		cfg := &Config{LLM: LLMConfig{Provider: ProviderGemini}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gsk-key", cfg.LLM.APIKey)
		assert.Equal(t, ProviderGroq, cfg.LLM.Provider)
	})

	t.Run("Precedence: GROQ overrides GEMINI", func(t *testing.T) {
		clearLLMEnv(t)
		t.Setenv("GEMINI_API_KEY", "gem-key")
		t.Setenv("GROQ_API_KEY", "gsk-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gsk-key", cfg.LLM.APIKey)
		assert.Equal(t, ProviderGroq, cfg.LLM.Provider)
	})

	t.Run("GEMINI_API_KEY alone", func(t *testing.T) {
		clearLLMEnv(t)
		t.Setenv("GEMINI_API_KEY", "gem-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	})

	t.Run("OPENAI_API_KEY does not replace a configured key", func(t *testing.T) {
		clearLLMEnv(t)
		t.Setenv("OPENAI_API_KEY", "sk-key")

		cfg := &Config{LLM: LLMConfig{Provider: ProviderGroq, APIKey: "from-file"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "from-file", cfg.LLM.APIKey)
		assert.Equal(t, ProviderGroq, cfg.LLM.Provider)
	})

	t.Run("OPENAI_API_KEY fills an empty key", func(t *testing.T) {
		clearLLMEnv(t)
		t.Setenv("OPENAI_API_KEY", "sk-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "sk-key", cfg.LLM.APIKey)
		assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	})
}

func TestEnvOverrides_Paths(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("VIBETEX_ADDR", ":7070")
	t.Setenv("VIBETEX_DB", "/tmp/history.db")
	t.Setenv("VIBETEX_MEDIA_DIR", "/srv/media")
	t.Setenv("VIBETEX_PUBLIC_URL", "https://tex.example.com/")
	t.Setenv("DEBUG", "true")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "/tmp/history.db", cfg.Store.DatabasePath)
	assert.Equal(t, "/srv/media", cfg.Manim.MediaDir)
	assert.Equal(t, "/srv/media/images", cfg.FFmpeg.ImageDir)
	assert.Equal(t, "https://tex.example.com", cfg.Server.PublicBaseURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
