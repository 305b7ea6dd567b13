// Package composer orchestrates the generation tools into one document:
// intents are extracted from the prompt, templates and web sources are
// gathered, animations are rendered, and the LaTeX generator writes the final
// document with all of it as context.
package composer

import (
	"context"

	"vibetex/internal/config"
	"vibetex/internal/diff"
	"vibetex/internal/store"
)

// Options tune a single composition.
type Options struct {
	// Template forces a template, overriding whatever the prompt implies.
	Template          string `json:"template,omitempty"`
	DisableAnimations bool   `json:"disable_animations,omitempty"`
	DisableResearch   bool   `json:"disable_research,omitempty"`
	// Quality is a manim quality name (low_quality ... production_quality).
	Quality string `json:"quality,omitempty"`
}

// Request is one user turn.
type Request struct {
	Prompt string `json:"prompt"`
	// Document is the LaTeX currently being edited; empty starts fresh.
	Document string  `json:"document,omitempty"`
	Options  Options `json:"options"`
}

// AnimationOutcome reports one requested animation. Index is 1-based in
// intent order.
type AnimationOutcome struct {
	Index          int    `json:"index"`
	Description    string `json:"description"`
	Success        bool   `json:"success"`
	VideoPath      string `json:"video_path,omitempty"`
	VideoURL       string `json:"video_url,omitempty"`
	ScreenshotPath string `json:"screenshot_path,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Response is what a composition produced. Failures are reported in Error,
// never as a Go error.
type Response struct {
	Message     string             `json:"message"`
	Latex       string             `json:"latex"`
	Error       string             `json:"error,omitempty"`
	Animations  []AnimationOutcome `json:"animations,omitempty"`
	Template    string             `json:"template,omitempty"`
	Sources     []string           `json:"sources,omitempty"`
	ParseMethod string             `json:"parse_method,omitempty"`
	// Changes is set when an existing document was revised.
	Changes *diff.Stats `json:"changes,omitempty"`
}

// AnimationIntent is one animation the prompt asks for.
type AnimationIntent struct {
	Description string `json:"description"`
}

// Intents is what the prompt implies beyond plain text.
type Intents struct {
	Animations []AnimationIntent `json:"animations"`
	Template   string            `json:"template"`
}

// Settings bound the pipeline's fan-out.
type Settings struct {
	MaxAnimations      int
	MaxParallelRenders int
	MaxURLs            int
	Screenshots        bool
}

// SettingsFromConfig reads pipeline bounds from the application config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		MaxAnimations:      cfg.Composer.MaxAnimations,
		MaxParallelRenders: cfg.Composer.MaxParallelRenders,
		MaxURLs:            cfg.Composer.MaxURLs,
		Screenshots:        cfg.Composer.Screenshots,
	}
}

// Recorder persists finished compositions.
type Recorder interface {
	Save(ctx context.Context, rec store.Record) (store.Record, error)
}
