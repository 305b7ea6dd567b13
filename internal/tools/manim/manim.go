// Package manim provides the generate_manim_animation tool. The model writes
// the body of a Scene.construct method; the tool wraps it in a script and
// renders it with the manim CLI.
package manim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"

	"vibetex/internal/articulation"
	"vibetex/internal/config"
	"vibetex/internal/logging"
	"vibetex/internal/perception"
	"vibetex/internal/tactile"
	"vibetex/internal/tools"
)

// Name is the registry name of the tool.
const Name = "generate_manim_animation"

// SceneClass is the scene every generated script defines.
const SceneClass = "MyAnimation"

// ErrVideoNotFound is returned when manim exits cleanly without producing the video.
var ErrVideoNotFound = errors.New("video file was not created")

var (
	outputNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)
	colorNameRe  = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
)

// Result is the decoded output of generate_manim_animation.
type Result struct {
	Success     bool   `json:"success"`
	VideoPath   string `json:"video_path"`
	VideoURL    string `json:"video_url"`
	Description string `json:"description"`
	OutputFile  string `json:"output_file"`
}

// SystemPrompt asks for the construct body only.
const SystemPrompt = `You write Manim Community Edition code.

Your output is inserted into this script in place of the comment:

class MyAnimation(Scene):
    def construct(self):
        # your code here

Example output:
square = Square(side_length=2, color=BLUE, fill_opacity=0.5)
self.play(Create(square))
self.play(Rotate(square, angle=PI/2))
self.play(square.animate.shift(RIGHT*3))
self.play(FadeOut(square))

Rules:
- Output ONLY the Python statements for the body of construct.
- No imports, no class definition, no def construct, no pass.
- No explanations, markdown, or code fences.
- Start top-level statements at column zero. Indentation is added for you.
- Keep it short and simple: a few objects and under 15 seconds of animation.`

var scriptTemplate = template.Must(template.New("scene").Parse(`from manim import *

config.pixel_width = {{.Width}}
config.pixel_height = {{.Height}}
config.frame_rate = {{.FrameRate}}
config.background_color = {{.Background}}
config.disable_caching = True


class ` + SceneClass + `(Scene):
    def construct(self):
{{.Body}}
        pass
`))

// Options configures a Renderer.
type Options struct {
	Python          string
	MediaDir        string
	Quality         string
	Width           int
	Height          int
	FrameRate       int
	BackgroundColor string
	Timeout         time.Duration
	PublicBaseURL   string
}

// OptionsFromConfig reads renderer options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Python:          cfg.Manim.Python,
		MediaDir:        cfg.Manim.MediaDir,
		Quality:         cfg.Manim.Quality,
		Width:           cfg.Manim.Width,
		Height:          cfg.Manim.Height,
		FrameRate:       cfg.Manim.FrameRate,
		BackgroundColor: cfg.Manim.BackgroundColor,
		Timeout:         cfg.GetRenderTimeout(),
		PublicBaseURL:   cfg.Server.PublicBaseURL,
	}
}

// Renderer backs the generate_manim_animation tool.
type Renderer struct {
	llm  perception.LLMClient
	exec tactile.Executor
	opts Options
}

// NewRenderer creates a renderer. Zero option fields take the usual defaults.
func NewRenderer(llm perception.LLMClient, exec tactile.Executor, opts Options) *Renderer {
	if opts.Python == "" {
		opts.Python = "python3"
	}
	if opts.MediaDir == "" {
		opts.MediaDir = "media"
	}
	if opts.Quality == "" {
		opts.Quality = "medium_quality"
	}
	if opts.Width <= 0 {
		opts.Width = 1920
	}
	if opts.Height <= 0 {
		opts.Height = 1080
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = 60
	}
	if opts.BackgroundColor == "" {
		opts.BackgroundColor = "BLACK"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 300 * time.Second
	}
	return &Renderer{llm: llm, exec: exec, opts: opts}
}

// Tool returns the registry entry.
func (r *Renderer) Tool() *tools.Tool {
	return &tools.Tool{
		Name:        Name,
		Description: "Create a Manim animation video from a natural language description (returns video path)",
		Category:    tools.CategoryAnimation,
		Execute:     r.execute,
		Schema: tools.ToolSchema{
			Required: []string{"description"},
			Properties: map[string]tools.Property{
				"description":      {Type: "string", Description: "What the animation should show"},
				"output_file":      {Type: "string", Description: "Output video name without extension"},
				"width":            {Type: "integer", Description: "Pixel width", Default: r.opts.Width},
				"height":           {Type: "integer", Description: "Pixel height", Default: r.opts.Height},
				"frame_rate":       {Type: "integer", Description: "Frames per second", Default: r.opts.FrameRate},
				"background_color": {Type: "string", Description: "Manim color constant or #RRGGBB", Default: r.opts.BackgroundColor},
				"quality": {
					Type:        "string",
					Description: "Render quality",
					Default:     r.opts.Quality,
					Enum:        []any{"low_quality", "medium_quality", "high_quality", "production_quality"},
				},
			},
		},
	}
}

type sceneParams struct {
	Width, Height, FrameRate int
	Background               string
	Body                     string
}

func (r *Renderer) execute(ctx context.Context, args map[string]any) (string, error) {
	description, err := tools.RequiredString(args, "description")
	if err != nil {
		return "", err
	}
	outputFile, err := tools.StringArg(args, "output_file", "anim_"+tools.ShortID(6))
	if err != nil {
		return "", err
	}
	if !outputNameRe.MatchString(outputFile) {
		return "", fmt.Errorf("%w: output_file %q must be letters, digits, '_' or '-'", tools.ErrInvalidArgType, outputFile)
	}
	quality, err := tools.StringArg(args, "quality", r.opts.Quality)
	if err != nil {
		return "", err
	}
	qflag, ok := config.QualityFlags[quality]
	if !ok {
		return "", fmt.Errorf("%w: unknown quality %q", tools.ErrInvalidArgType, quality)
	}
	params := sceneParams{}
	if params.Width, err = tools.IntArg(args, "width", r.opts.Width); err != nil {
		return "", err
	}
	if params.Height, err = tools.IntArg(args, "height", r.opts.Height); err != nil {
		return "", err
	}
	if params.FrameRate, err = tools.IntArg(args, "frame_rate", r.opts.FrameRate); err != nil {
		return "", err
	}
	bg, err := tools.StringArg(args, "background_color", r.opts.BackgroundColor)
	if err != nil {
		return "", err
	}
	params.Background = backgroundLiteral(bg)

	timer := logging.StartTimer(logging.CategoryRender, "manim "+outputFile)
	defer timer.StopWithThreshold(30 * time.Second)

	code, err := r.llm.CompleteWithSystem(ctx, SystemPrompt, "Create a manim animation for this description: "+description)
	if err != nil {
		return "", fmt.Errorf("animation code generation failed: %w", err)
	}
	params.Body = IndentBody(articulation.StripCodeFences(code))
	if strings.TrimSpace(params.Body) == "" {
		return "", errors.New("animation code generation returned no code")
	}

	script, err := r.writeScript(outputFile, params)
	if err != nil {
		return "", err
	}

	mediaDir, err := filepath.Abs(r.opts.MediaDir)
	if err != nil {
		return "", fmt.Errorf("resolve media dir: %w", err)
	}
	cmd := tactile.Command{
		Binary: r.opts.Python,
		Arguments: []string{
			"-m", "manim", script, SceneClass,
			"--quality=" + qflag,
			"--format=mp4",
			"--media_dir", mediaDir,
			"-o", outputFile,
		},
		WorkingDirectory: filepath.Dir(script),
		Timeout:          r.opts.Timeout,
	}
	logging.RenderDebug("Rendering %s: %s", outputFile, cmd.CommandString())

	res, err := r.exec.Execute(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("manim execution failed: %w", err)
	}
	if !res.Succeeded() {
		if res.Killed {
			return "", fmt.Errorf("manim execution failed: %s: %s", res.KillReason, res.Tail(2000))
		}
		return "", fmt.Errorf("manim execution failed (exit %d): %s", res.ExitCode, strings.TrimSpace(tailString(res.Stderr, 2000)))
	}

	video, err := findVideo(mediaDir, outputFile+".mp4")
	if err != nil {
		return "", fmt.Errorf("%w: %s.mp4 under %s", err, outputFile, mediaDir)
	}

	logging.Render("Rendered %s in %v", video, res.Duration)
	return tools.EncodeResult(Result{
		Success:     true,
		VideoPath:   video,
		VideoURL:    tools.MediaURL(r.opts.PublicBaseURL, mediaDir, video),
		Description: description,
		OutputFile:  outputFile,
	})
}

// writeScript renders the scene script to <media>/scripts/<name>.py so that
// concurrent renders never share a file.
func (r *Renderer) writeScript(name string, params sceneParams) (string, error) {
	dir, err := filepath.Abs(filepath.Join(r.opts.MediaDir, "scripts"))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create script dir: %w", err)
	}
	var buf bytes.Buffer
	if err := scriptTemplate.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("render scene script: %w", err)
	}
	path := filepath.Join(dir, name+".py")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write scene script: %w", err)
	}
	return path, nil
}

// IndentBody places code inside construct: the common leading indentation is
// removed and every non-blank line is indented by eight spaces. Code written
// flush left, as the prompt asks, is simply trimmed and indented.
func IndentBody(code string) string {
	code = strings.ReplaceAll(code, "\r\n", "\n")
	code = strings.ReplaceAll(code, "\t", "    ")
	lines := strings.Split(strings.Trim(code, "\n"), "\n")

	common := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " "))
		if common < 0 || n < common {
			common = n
		}
	}

	out := make([]string, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out[i] = "        " + strings.TrimRight(line[common:], " ")
	}
	return strings.Join(out, "\n")
}

// backgroundLiteral quotes hex colors; names like BLACK are manim constants.
func backgroundLiteral(color string) string {
	if strings.HasPrefix(color, "#") {
		return fmt.Sprintf("%q", color)
	}
	if colorNameRe.MatchString(color) {
		return color
	}
	return "BLACK"
}

func findVideo(root, filename string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == filename {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", ErrVideoNotFound
	}
	return found, nil
}

func tailString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
