package config

import "time"

// ManimConfig configures the animation renderer.
type ManimConfig struct {
	Python          string `yaml:"python" toml:"python"`
	MediaDir        string `yaml:"media_dir" toml:"media_dir"`
	Quality         string `yaml:"quality" toml:"quality"`
	Width           int    `yaml:"width" toml:"width"`
	Height          int    `yaml:"height" toml:"height"`
	FrameRate       int    `yaml:"frame_rate" toml:"frame_rate"`
	BackgroundColor string `yaml:"background_color" toml:"background_color"`
	Timeout         string `yaml:"timeout" toml:"timeout"`
}

// QualityFlags maps quality names to manim's --quality letters.
var QualityFlags = map[string]string{
	"low_quality":        "l",
	"medium_quality":     "m",
	"high_quality":       "h",
	"production_quality": "p",
}

// FFmpegConfig configures preview frame extraction.
type FFmpegConfig struct {
	Binary      string  `yaml:"binary" toml:"binary"`
	ImageDir    string  `yaml:"image_dir" toml:"image_dir"`
	SeekSeconds float64 `yaml:"seek_seconds" toml:"seek_seconds"`
	Timeout     string  `yaml:"timeout" toml:"timeout"`
}

// LatexConfig configures the document compilers.
type LatexConfig struct {
	PDFLatex      string   `yaml:"pdflatex" toml:"pdflatex"`
	HTMLConverter string   `yaml:"html_converter" toml:"html_converter"`
	HTMLArgs      []string `yaml:"html_args" toml:"html_args"`
	Passes        int      `yaml:"passes" toml:"passes"`
	Timeout       string   `yaml:"timeout" toml:"timeout"`
}

// GetRenderTimeout returns the manim timeout as a duration.
func (c *Config) GetRenderTimeout() time.Duration {
	return parseDuration(c.Manim.Timeout, 300*time.Second)
}

// GetScreenshotTimeout returns the ffmpeg timeout as a duration.
func (c *Config) GetScreenshotTimeout() time.Duration {
	return parseDuration(c.FFmpeg.Timeout, 30*time.Second)
}

// GetCompileTimeout returns the per-pass compile timeout as a duration.
func (c *Config) GetCompileTimeout() time.Duration {
	return parseDuration(c.Latex.Timeout, 120*time.Second)
}
