// Package screenshot provides the generate_video_screenshot tool, which grabs
// a preview frame from a rendered video with ffmpeg.
package screenshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"vibetex/internal/config"
	"vibetex/internal/logging"
	"vibetex/internal/tactile"
	"vibetex/internal/tools"
)

// Name is the registry name of the tool.
const Name = "generate_video_screenshot"

// Result is the decoded output of generate_video_screenshot.
type Result struct {
	Success            bool   `json:"success"`
	ScreenshotPath     string `json:"screenshot_path"`
	ScreenshotFilename string `json:"screenshot_filename"`
	VideoURL           string `json:"video_url"`
}

// Options configures an Extractor.
type Options struct {
	Binary        string
	ImageDir      string
	MediaDir      string
	SeekSeconds   float64
	Timeout       time.Duration
	PublicBaseURL string
}

// OptionsFromConfig reads extractor options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Binary:        cfg.FFmpeg.Binary,
		ImageDir:      cfg.FFmpeg.ImageDir,
		MediaDir:      cfg.Manim.MediaDir,
		SeekSeconds:   cfg.FFmpeg.SeekSeconds,
		Timeout:       cfg.GetScreenshotTimeout(),
		PublicBaseURL: cfg.Server.PublicBaseURL,
	}
}

// Extractor backs the generate_video_screenshot tool.
type Extractor struct {
	exec tactile.Executor
	opts Options
}

// NewExtractor creates an extractor running ffmpeg through exec.
func NewExtractor(exec tactile.Executor, opts Options) *Extractor {
	if opts.Binary == "" {
		opts.Binary = "ffmpeg"
	}
	if opts.MediaDir == "" {
		opts.MediaDir = "media"
	}
	if opts.ImageDir == "" {
		opts.ImageDir = filepath.Join(opts.MediaDir, "images")
	}
	if opts.SeekSeconds < 0 {
		opts.SeekSeconds = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Extractor{exec: exec, opts: opts}
}

// Tool returns the registry entry.
func (e *Extractor) Tool() *tools.Tool {
	return &tools.Tool{
		Name:        Name,
		Description: "Extract a preview frame from an MP4 video and return the image path and video URL for LaTeX embedding",
		Category:    tools.CategoryMedia,
		Execute:     e.execute,
		Schema: tools.ToolSchema{
			Required: []string{"video_path"},
			Properties: map[string]tools.Property{
				"video_path": {Type: "string", Description: "Path to the MP4 video file"},
				"output_dir": {Type: "string", Description: "Directory to save the screenshot", Default: e.opts.ImageDir},
			},
		},
	}
}

func (e *Extractor) execute(ctx context.Context, args map[string]any) (string, error) {
	video, err := tools.RequiredString(args, "video_path")
	if err != nil {
		return "", err
	}
	outDir, err := tools.StringArg(args, "output_dir", e.opts.ImageDir)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(video)
	if err != nil {
		return "", fmt.Errorf("video file not found: %s", video)
	}
	if info.IsDir() {
		return "", fmt.Errorf("video path is a directory: %s", video)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(video), filepath.Ext(video))
	filename := fmt.Sprintf("%s_screenshot_%s.png", stem, tools.ShortID(6))
	out := filepath.Join(outDir, filename)

	cmd := tactile.Command{
		Binary: e.opts.Binary,
		Arguments: []string{
			"-i", video,
			"-ss", strconv.FormatFloat(e.opts.SeekSeconds, 'f', -1, 64),
			"-vframes", "1",
			"-q:v", "2",
			"-y",
			out,
		},
		Timeout: e.opts.Timeout,
	}
	logging.RenderDebug("Extracting frame: %s", cmd.CommandString())

	res, err := e.exec.Execute(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("ffmpeg failed: %w", err)
	}
	if res.Killed {
		return "", fmt.Errorf("ffmpeg timed out after %v", e.opts.Timeout)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("ffmpeg failed with exit code %d: %s", res.ExitCode, res.Tail(1000))
	}
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("screenshot file was not created: %s", out)
	}

	logging.Render("Screenshot created: %s", out)
	return tools.EncodeResult(Result{
		Success:            true,
		ScreenshotPath:     tools.SlashPath(out),
		ScreenshotFilename: filename,
		VideoURL:           tools.MediaURL(e.opts.PublicBaseURL, e.opts.MediaDir, video),
	})
}
