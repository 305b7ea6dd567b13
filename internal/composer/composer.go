package composer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"vibetex/internal/diff"
	"vibetex/internal/logging"
	"vibetex/internal/perception"
	"vibetex/internal/store"
	"vibetex/internal/tools"
	"vibetex/internal/tools/latex"
	"vibetex/internal/tools/manim"
	"vibetex/internal/tools/research"
	"vibetex/internal/tools/screenshot"
	"vibetex/internal/tools/templates"
)

// Composer runs the generation pipeline. It is safe for concurrent use.
type Composer struct {
	llm      perception.LLMClient
	registry *tools.Registry
	history  Recorder
	settings Settings
}

// New creates a composer. llm is used for intent extraction only; the tools
// carry their own clients. history may be nil.
func New(llm perception.LLMClient, registry *tools.Registry, history Recorder, settings Settings) *Composer {
	if registry == nil {
		registry = tools.NewRegistry()
	}
	if settings.MaxAnimations < 0 {
		settings.MaxAnimations = 0
	}
	if settings.MaxParallelRenders < 1 {
		settings.MaxParallelRenders = 2
	}
	if settings.MaxURLs < 0 {
		settings.MaxURLs = 0
	}
	return &Composer{llm: llm, registry: registry, history: history, settings: settings}
}

// Registry exposes the tools the composer draws on.
func (c *Composer) Registry() *tools.Registry { return c.registry }

// Compose turns one request into a response. It never returns an error;
// failures are reported in Response.Error.
func (c *Composer) Compose(ctx context.Context, req Request) *Response {
	timer := logging.StartTimer(logging.CategoryComposer, "compose")
	defer timer.Stop()

	opts := req.Options
	resp := &Response{}

	var intents Intents
	if !(opts.DisableAnimations && opts.Template != "") {
		intents = c.ExtractIntents(ctx, req.Prompt, c.templateNames(ctx))
	}
	if opts.DisableAnimations {
		intents.Animations = nil
	}

	var blocks []string

	templateName := strings.ToLower(strings.TrimSpace(opts.Template))
	if templateName == "" {
		templateName = intents.Template
	}
	if templateName != "" {
		if content, ok := c.fetchTemplate(ctx, templateName); ok {
			resp.Template = templateName
			blocks = append(blocks, TemplateBlock(templateName, content))
		}
	}

	if !opts.DisableResearch {
		sources := c.research(ctx, req.Prompt)
		for _, s := range sources {
			resp.Sources = append(resp.Sources, s.URL)
		}
		blocks = append(blocks, SourcesBlock(sources))
	}

	resp.Animations = c.renderAll(ctx, intents.Animations, opts.Quality)
	blocks = append(blocks, AnimationBlock(resp.Animations))

	if !c.registry.Has(latex.Name) {
		logging.ComposerError("LaTeX tool is not registered")
		resp.Message = "Latex tool unavailable."
		resp.Error = "Missing tool"
		c.record(ctx, req, resp)
		return resp
	}

	args := map[string]any{"prompt": AugmentPrompt(req.Prompt, blocks...)}
	if req.Document != "" {
		args["document"] = req.Document
	}
	result, err := c.registry.Execute(ctx, latex.Name, args)
	if err == nil {
		var out latex.Result
		if err = tools.DecodeResult(result.Result, &out); err == nil {
			resp.Message = out.Message
			resp.Latex = out.Latex
			resp.ParseMethod = out.ParseMethod
			if req.Document != "" {
				stats := diff.Compare(req.Document, resp.Latex).Stats
				resp.Changes = &stats
			}
		}
	}
	if err != nil {
		logging.ComposerError("LaTeX generation failed: %v", err)
		resp.Message = "Error: " + err.Error()
		resp.Error = err.Error()
		c.record(ctx, req, resp)
		return resp
	}

	if len(intents.Animations) > 0 {
		succeeded := 0
		for _, a := range resp.Animations {
			if a.Success {
				succeeded++
			}
		}
		if succeeded > 0 {
			resp.Message += fmt.Sprintf(" Generated %d animation(s).", succeeded)
		} else {
			resp.Message += " All requested animations failed to generate."
		}
	}

	logging.Composer("Composed document: %d chars, %d animation(s), %d source(s), template=%q",
		len(resp.Latex), len(resp.Animations), len(resp.Sources), resp.Template)
	c.record(ctx, req, resp)
	return resp
}

func (c *Composer) templateNames(ctx context.Context) []string {
	if !c.registry.Has(templates.Name) {
		return nil
	}
	result, err := c.registry.Execute(ctx, templates.Name, map[string]any{"type": templates.ListType})
	if err != nil {
		logging.ComposerWarn("Listing templates failed: %v", err)
		return nil
	}
	var out templates.Result
	if err := tools.DecodeResult(result.Result, &out); err != nil {
		logging.ComposerWarn("Template list unreadable: %v", err)
		return nil
	}
	return out.Templates
}

func (c *Composer) fetchTemplate(ctx context.Context, name string) (string, bool) {
	if !c.registry.Has(templates.Name) {
		logging.ComposerWarn("Template %q requested but the template tool is not registered", name)
		return "", false
	}
	result, err := c.registry.Execute(ctx, templates.Name, map[string]any{"type": name})
	if err != nil {
		logging.ComposerWarn("Template %q unavailable: %v", name, err)
		return "", false
	}
	var out templates.Result
	if err := tools.DecodeResult(result.Result, &out); err != nil || out.TemplateContent == "" {
		logging.ComposerWarn("Template %q returned no content", name)
		return "", false
	}
	logging.ComposerDebug("Using template %q", name)
	return out.TemplateContent, true
}

// research summarizes the links in the prompt one at a time. Failed pages are
// skipped.
func (c *Composer) research(ctx context.Context, prompt string) []Source {
	urls := ExtractURLs(prompt, c.settings.MaxURLs)
	if len(urls) == 0 || c.settings.MaxURLs == 0 {
		return nil
	}
	if !c.registry.Has(research.Name) {
		logging.ComposerDebug("Prompt has %d URL(s) but the scraper is not registered", len(urls))
		return nil
	}

	var sources []Source
	for _, u := range urls {
		result, err := c.registry.Execute(ctx, research.Name, map[string]any{"url": u})
		if err != nil {
			logging.ComposerWarn("Scraping %s failed: %v", u, err)
			continue
		}
		var out research.Result
		if err := tools.DecodeResult(result.Result, &out); err != nil || !out.Success || strings.TrimSpace(out.Summary) == "" {
			logging.ComposerWarn("Scraping %s returned no summary", u)
			continue
		}
		sources = append(sources, Source{URL: u, Summary: out.Summary})
	}
	return sources
}

// renderAll renders intents with bounded parallelism. Outcomes keep intent
// order regardless of completion order.
func (c *Composer) renderAll(ctx context.Context, intents []AnimationIntent, quality string) []AnimationOutcome {
	if len(intents) == 0 {
		return nil
	}
	if !c.registry.Has(manim.Name) {
		logging.ComposerWarn("%d animation(s) requested but the animation tool is not registered", len(intents))
		return nil
	}

	outcomes := make([]AnimationOutcome, len(intents))
	var g errgroup.Group
	g.SetLimit(c.settings.MaxParallelRenders)
	for i, intent := range intents {
		g.Go(func() error {
			outcomes[i] = c.render(ctx, i+1, intent, quality)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (c *Composer) render(ctx context.Context, idx int, intent AnimationIntent, quality string) AnimationOutcome {
	outcome := AnimationOutcome{Index: idx, Description: intent.Description}

	args := map[string]any{
		"description": intent.Description,
		"output_file": fmt.Sprintf("anim_%d_%s", idx, tools.ShortID(6)),
	}
	if quality != "" {
		args["quality"] = quality
	}
	result, err := c.registry.Execute(ctx, manim.Name, args)
	if err != nil {
		logging.ComposerWarn("Animation %d failed: %v", idx, err)
		outcome.Error = err.Error()
		return outcome
	}
	var out manim.Result
	if err := tools.DecodeResult(result.Result, &out); err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Success = out.Success
	outcome.VideoPath = out.VideoPath
	outcome.VideoURL = out.VideoURL

	if !outcome.Success || outcome.VideoPath == "" || !c.settings.Screenshots || !c.registry.Has(screenshot.Name) {
		return outcome
	}
	shot, err := c.registry.Execute(ctx, screenshot.Name, map[string]any{"video_path": outcome.VideoPath})
	if err != nil {
		logging.ComposerWarn("Preview for animation %d failed: %v", idx, err)
		return outcome
	}
	var frame screenshot.Result
	if err := tools.DecodeResult(shot.Result, &frame); err == nil && frame.Success {
		outcome.ScreenshotPath = frame.ScreenshotPath
	}
	return outcome
}

func (c *Composer) record(ctx context.Context, req Request, resp *Response) {
	if c.history == nil {
		return
	}
	rec := store.Record{
		Prompt:   req.Prompt,
		Message:  resp.Message,
		Latex:    resp.Latex,
		Error:    resp.Error,
		Template: resp.Template,
	}
	if len(resp.Animations) > 0 {
		if data, err := json.Marshal(resp.Animations); err == nil {
			rec.Animations = data
		}
	}
	saved, err := c.history.Save(context.WithoutCancel(ctx), rec)
	if err != nil {
		logging.ComposerWarn("Saving history failed: %v", err)
		return
	}
	logging.ComposerDebug("Saved history record %s", saved.ID)
}
