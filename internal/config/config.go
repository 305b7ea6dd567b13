package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "vibetex.yaml"

// Config holds all vibetex configuration.
type Config struct {
	Name    string `yaml:"name" toml:"name"`
	Version string `yaml:"version" toml:"version"`

	Server    ServerConfig    `yaml:"server" toml:"server"`
	LLM       LLMConfig       `yaml:"llm" toml:"llm"`
	Composer  ComposerConfig  `yaml:"composer" toml:"composer"`
	Manim     ManimConfig     `yaml:"manim" toml:"manim"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg" toml:"ffmpeg"`
	Latex     LatexConfig     `yaml:"latex" toml:"latex"`
	Templates TemplatesConfig `yaml:"templates" toml:"templates"`
	Research  ResearchConfig  `yaml:"research" toml:"research"`
	Store     StoreConfig     `yaml:"store" toml:"store"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr           string   `yaml:"addr" toml:"addr"`
	PublicBaseURL  string   `yaml:"public_base_url" toml:"public_base_url"`
	CORSOrigins    []string `yaml:"cors_origins" toml:"cors_origins"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes" toml:"max_upload_bytes"`
	ShutdownGrace  string   `yaml:"shutdown_grace" toml:"shutdown_grace"`
}

// ComposerConfig bounds the composition pipeline's fan-out.
type ComposerConfig struct {
	MaxAnimations      int  `yaml:"max_animations" toml:"max_animations"`
	MaxParallelRenders int  `yaml:"max_parallel_renders" toml:"max_parallel_renders"`
	MaxURLs            int  `yaml:"max_urls" toml:"max_urls"`
	Screenshots        bool `yaml:"screenshots" toml:"screenshots"`
}

// TemplatesConfig configures the LaTeX template library.
type TemplatesConfig struct {
	Dir   string `yaml:"dir" toml:"dir"`
	Watch bool   `yaml:"watch" toml:"watch"`
}

// ResearchConfig configures the web page scraper tool.
type ResearchConfig struct {
	Enabled      bool   `yaml:"enabled" toml:"enabled"`
	UseBrowser   bool   `yaml:"use_browser" toml:"use_browser"`
	BrowserURL   string `yaml:"browser_url" toml:"browser_url"` // existing DevTools endpoint; empty launches one
	FetchTimeout string `yaml:"fetch_timeout" toml:"fetch_timeout"`
	MaxBytes     int    `yaml:"max_bytes" toml:"max_bytes"`
	CacheTTL     string `yaml:"cache_ttl" toml:"cache_ttl"`
	UserAgent    string `yaml:"user_agent" toml:"user_agent"`
}

// StoreConfig configures the document history database. An empty path
// disables history.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path" toml:"database_path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "vibetex",
		Version: "0.3.0",

		Server: ServerConfig{
			Addr:           ":8000",
			PublicBaseURL:  "http://localhost:8000",
			CORSOrigins:    []string{"*"},
			MaxUploadBytes: 32 << 20,
			ShutdownGrace:  "10s",
		},

		LLM: DefaultLLMConfig(),

		Composer: ComposerConfig{
			MaxAnimations:      3,
			MaxParallelRenders: 2,
			MaxURLs:            2,
			Screenshots:        true,
		},

		Manim: ManimConfig{
			Python:          "python3",
			MediaDir:        "media",
			Quality:         "medium_quality",
			Width:           1920,
			Height:          1080,
			FrameRate:       60,
			BackgroundColor: "BLACK",
			Timeout:         "300s",
		},

		FFmpeg: FFmpegConfig{
			Binary:      "ffmpeg",
			ImageDir:    "media/images",
			SeekSeconds: 2,
			Timeout:     "30s",
		},

		Latex: LatexConfig{
			PDFLatex:      "pdflatex",
			HTMLConverter: "make4ht",
			Passes:        1,
			Timeout:       "120s",
		},

		Templates: TemplatesConfig{
			Dir:   "data/templates",
			Watch: true,
		},

		Research: ResearchConfig{
			Enabled:      true,
			FetchTimeout: "15s",
			MaxBytes:     32 * 1024,
			CacheTTL:     "30m",
			UserAgent:    "vibetex/0.3 (+https://github.com/vibetex)",
		},

		Store: StoreConfig{
			DatabasePath: "data/vibetex.db",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML or TOML file (by extension).
// A missing file yields the defaults. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := unmarshal(path, data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if isTOML(path) {
		_, err := toml.Decode(string(data), cfg)
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Save saves configuration to a YAML or TOML file (by extension).
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		var b strings.Builder
		err = toml.NewEncoder(&b).Encode(c)
		data = []byte(b.String())
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
// Later keys win, so GROQ_API_KEY takes precedence over the others.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
		c.LLM.Provider = ProviderOpenAI
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = ProviderGemini
	}
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = ProviderGroq
	}

	if addr := os.Getenv("VIBETEX_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if url := os.Getenv("VIBETEX_PUBLIC_URL"); url != "" {
		c.Server.PublicBaseURL = strings.TrimRight(url, "/")
	}
	if path := os.Getenv("VIBETEX_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if dir := os.Getenv("VIBETEX_MEDIA_DIR"); dir != "" {
		c.Manim.MediaDir = dir
		c.FFmpeg.ImageDir = filepath.Join(dir, "images")
	}
	if debug, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && debug {
		c.Logging.Level = "debug"
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetShutdownGrace returns how long the server waits for in-flight requests.
func (c *Config) GetShutdownGrace() time.Duration {
	return parseDuration(c.Server.ShutdownGrace, 10*time.Second)
}

// GetFetchTimeout returns the per-page research fetch timeout.
func (c *Config) GetFetchTimeout() time.Duration {
	return parseDuration(c.Research.FetchTimeout, 15*time.Second)
}

// GetCacheTTL returns how long page summaries stay cached.
func (c *Config) GetCacheTTL() time.Duration {
	return parseDuration(c.Research.CacheTTL, 30*time.Minute)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.LLM.validateProvider(); err != nil {
		return err
	}
	if c.Composer.MaxAnimations < 0 {
		return fmt.Errorf("composer.max_animations must be >= 0, got %d", c.Composer.MaxAnimations)
	}
	if c.Composer.MaxParallelRenders < 1 {
		return fmt.Errorf("composer.max_parallel_renders must be >= 1, got %d", c.Composer.MaxParallelRenders)
	}
	if _, ok := QualityFlags[c.Manim.Quality]; !ok {
		return fmt.Errorf("invalid manim quality: %s", c.Manim.Quality)
	}
	if c.Latex.Passes < 1 {
		return fmt.Errorf("latex.passes must be >= 1, got %d", c.Latex.Passes)
	}
	if c.Manim.MediaDir == "" {
		return fmt.Errorf("manim.media_dir is required")
	}
	return nil
}
