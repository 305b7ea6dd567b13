// Package system wires configuration into a running vibetex instance so the
// CLI and the HTTP server share one construction path.
package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"vibetex/internal/compile"
	"vibetex/internal/composer"
	"vibetex/internal/config"
	"vibetex/internal/logging"
	"vibetex/internal/perception"
	"vibetex/internal/server"
	"vibetex/internal/store"
	"vibetex/internal/tactile"
	"vibetex/internal/tools"
	"vibetex/internal/tools/latex"
	"vibetex/internal/tools/manim"
	"vibetex/internal/tools/research"
	"vibetex/internal/tools/screenshot"
	"vibetex/internal/tools/templates"
)

// Runtime is a fully wired instance.
type Runtime struct {
	Config      *config.Config
	LLM         perception.LLMClient // nil without credentials
	Executor    tactile.Executor
	Templates   *store.TemplateLibrary
	History     *store.History // nil when history is disabled
	Registry    *tools.Registry
	Composer    *composer.Composer
	Compiler    *compile.Compiler
	Transcriber perception.Transcriber // nil when the provider has no speech endpoint

	closers []func() error
}

// Boot builds every component cfg describes. Missing credentials are not an
// error: the model-backed tools are left unregistered and the composer
// reports them as unavailable.
func Boot(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	timer := logging.StartTimer(logging.CategoryBoot, "boot")
	defer timer.Stop()

	rt := &Runtime{Config: cfg, Registry: tools.NewRegistry()}
	fail := func(err error) (*Runtime, error) {
		_ = rt.Close()
		return nil, err
	}

	// 1. Media directories
	for _, dir := range []string{cfg.Manim.MediaDir, cfg.FFmpeg.ImageDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fail(fmt.Errorf("create media dir: %w", err))
		}
	}

	// 2. Language models
	llm, err := newClient(ctx, cfg.ResolveProvider(""))
	if err != nil {
		return fail(err)
	}
	rt.LLM = llm
	animLLM, err := newClient(ctx, cfg.AnimationProvider())
	if err != nil {
		return fail(err)
	}
	summaryLLM, err := newClient(ctx, cfg.SummaryProvider())
	if err != nil {
		return fail(err)
	}

	// 3. Stores
	rt.Templates, err = store.NewTemplateLibrary(cfg.Templates.Dir)
	if err != nil {
		return fail(err)
	}
	rt.closers = append(rt.closers, rt.Templates.Close)
	if cfg.Templates.Watch {
		if err := rt.Templates.Watch(ctx); err != nil {
			logging.BootWarn("Template watcher unavailable: %v", err)
		}
	}

	var recorder composer.Recorder
	if path := cfg.Store.DatabasePath; path != "" {
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return fail(fmt.Errorf("create history dir: %w", err))
			}
		}
		rt.History, err = store.OpenHistory(path)
		if err != nil {
			return fail(err)
		}
		rt.closers = append(rt.closers, rt.History.Close)
		recorder = rt.History
	}

	// 4. Tools
	rt.Executor = tactile.NewDirectExecutorWithConfig(tactile.ExecutorConfig{DefaultTimeout: cfg.GetRenderTimeout()})

	rt.Registry.MustRegister(templates.Tool(rt.Templates))
	rt.Registry.MustRegister(screenshot.NewExtractor(rt.Executor, screenshot.OptionsFromConfig(cfg)).Tool())
	if llm != nil {
		rt.Registry.MustRegister(latex.NewGenerator(llm).Tool())
	}
	if animLLM != nil {
		rt.Registry.MustRegister(manim.NewRenderer(animLLM, rt.Executor, manim.OptionsFromConfig(cfg)).Tool())
	}
	if summaryLLM != nil && cfg.Research.Enabled {
		scraper, closeFn := research.NewScraperFromConfig(summaryLLM, cfg)
		rt.closers = append(rt.closers, closeFn)
		rt.Registry.MustRegister(scraper.Tool())
	}
	logging.Boot("Registered tools: %v", rt.Registry.Names())

	// 5. Pipelines
	rt.Composer = composer.New(llm, rt.Registry, recorder, composer.SettingsFromConfig(cfg))
	rt.Compiler = compile.New(rt.Executor, compile.OptionsFromConfig(cfg))
	if cfg.LLM.APIKey != "" && cfg.LLM.Provider != config.ProviderGemini {
		pc := cfg.ResolveProvider("")
		rt.Transcriber = perception.NewWhisperTranscriber(pc.APIKey, pc.BaseURL, cfg.LLM.TranscriptionModel, pc.Timeout)
	}

	return rt, nil
}

// newClient returns nil without error when no key is configured.
func newClient(ctx context.Context, pc config.ProviderConfig) (perception.LLMClient, error) {
	client, err := perception.NewClientFromConfig(ctx, pc)
	if errors.Is(err, perception.ErrNoAPIKey) {
		logging.BootDebug("No API key for %s model %s", pc.Provider, pc.Model)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", pc.Provider, err)
	}
	return client, nil
}

// Server builds the HTTP API over the runtime.
func (r *Runtime) Server() *server.Server {
	deps := server.Deps{
		Composer:  r.Composer,
		Compiler:  r.Compiler,
		Templates: r.Templates,
		Tools:     r.Registry,
	}
	if r.Transcriber != nil {
		deps.Transcriber = r.Transcriber
	}
	if r.History != nil {
		deps.History = r.History
	}
	return server.New(deps, server.OptionsFromConfig(r.Config))
}

// Close releases resources in reverse order of acquisition.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
