// Package compile turns LaTeX source into PDF or HTML with the TeX toolchain
// installed on the host.
package compile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vibetex/internal/config"
	"vibetex/internal/logging"
	"vibetex/internal/tactile"
)

// ErrNotTeX is returned when the input file name does not end in .tex.
var ErrNotTeX = errors.New("only .tex files are allowed")

// CompileError reports a toolchain run that produced no output file.
type CompileError struct {
	Tool     string
	ExitCode int
	Log      string
}

func (e *CompileError) Error() string {
	msg := fmt.Sprintf("%s failed (exit %d)", e.Tool, e.ExitCode)
	if e.Log != "" {
		msg += ": " + e.Log
	}
	return msg
}

// Options configures a Compiler.
type Options struct {
	PDFLatex      string
	HTMLConverter string
	HTMLArgs      []string
	Passes        int
	Timeout       time.Duration
}

// OptionsFromConfig reads compiler options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PDFLatex:      cfg.Latex.PDFLatex,
		HTMLConverter: cfg.Latex.HTMLConverter,
		HTMLArgs:      cfg.Latex.HTMLArgs,
		Passes:        cfg.Latex.Passes,
		Timeout:       cfg.GetCompileTimeout(),
	}
}

// Compiler runs pdflatex and the HTML converter in scratch directories.
type Compiler struct {
	exec tactile.Executor
	opts Options
}

// New creates a compiler.
func New(exec tactile.Executor, opts Options) *Compiler {
	if opts.PDFLatex == "" {
		opts.PDFLatex = "pdflatex"
	}
	if opts.HTMLConverter == "" {
		opts.HTMLConverter = "make4ht"
	}
	if opts.Passes < 1 {
		opts.Passes = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return &Compiler{exec: exec, opts: opts}
}

// CompilePDF compiles source (saved as filename) and returns the PDF bytes.
func (c *Compiler) CompilePDF(ctx context.Context, filename string, source []byte) ([]byte, error) {
	name, err := texName(filename)
	if err != nil {
		return nil, err
	}
	dir, cleanup, err := scratch(name, source)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	timer := logging.StartTimer(logging.CategoryCompile, "pdflatex "+name)
	defer timer.Stop()

	var last *tactile.ExecutionResult
	for pass := 1; pass <= c.opts.Passes; pass++ {
		res, err := c.exec.Execute(ctx, tactile.Command{
			Binary:           c.opts.PDFLatex,
			Arguments:        []string{"-output-directory", dir, "-interaction=nonstopmode", name},
			WorkingDirectory: dir,
			Timeout:          c.opts.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", c.opts.PDFLatex, err)
		}
		last = res
		if res.Killed {
			break
		}
		logging.CompileDebug("pdflatex pass %d/%d exit=%d", pass, c.opts.Passes, res.ExitCode)
	}

	pdf, err := os.ReadFile(filepath.Join(dir, strings.TrimSuffix(name, ".tex")+".pdf"))
	if err != nil {
		return nil, &CompileError{Tool: c.opts.PDFLatex, ExitCode: last.ExitCode, Log: logTail(dir, name, last)}
	}
	if last.ExitCode != 0 {
		logging.CompileWarn("pdflatex exited %d but produced %s", last.ExitCode, name)
	}
	logging.Compile("Compiled %s (%d bytes)", name, len(pdf))
	return pdf, nil
}

// CompileHTML converts source (saved as filename) to a single HTML page.
func (c *Compiler) CompileHTML(ctx context.Context, filename string, source []byte) ([]byte, error) {
	name, err := texName(filename)
	if err != nil {
		return nil, err
	}
	dir, cleanup, err := scratch(name, source)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	args := append(append([]string{}, c.opts.HTMLArgs...), name)
	res, err := c.exec.Execute(ctx, tactile.Command{
		Binary:           c.opts.HTMLConverter,
		Arguments:        args,
		WorkingDirectory: dir,
		Timeout:          c.opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", c.opts.HTMLConverter, err)
	}

	page, err := os.ReadFile(filepath.Join(dir, strings.TrimSuffix(name, ".tex")+".html"))
	if err != nil || !res.Succeeded() {
		return nil, &CompileError{Tool: c.opts.HTMLConverter, ExitCode: res.ExitCode, Log: logTail(dir, name, res)}
	}
	logging.Compile("Converted %s to HTML (%d bytes)", name, len(page))
	return page, nil
}

func texName(filename string) (string, error) {
	name := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if !strings.HasSuffix(name, ".tex") || name == ".tex" {
		return "", fmt.Errorf("%w: %q", ErrNotTeX, filename)
	}
	return name, nil
}

func scratch(name string, source []byte) (string, func(), error) {
	dir, err := os.MkdirTemp("", "vibetex-compile-")
	if err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }
	if err := os.WriteFile(filepath.Join(dir, name), source, 0644); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("write source: %w", err)
	}
	return dir, cleanup, nil
}

// logTail prefers the TeX .log file, which holds the real error, over the
// captured console output.
func logTail(dir, name string, res *tactile.ExecutionResult) string {
	const n = 3000
	if data, err := os.ReadFile(filepath.Join(dir, strings.TrimSuffix(name, ".tex")+".log")); err == nil && len(data) > 0 {
		s := strings.TrimSpace(string(data))
		if len(s) > n {
			s = "..." + s[len(s)-n:]
		}
		return s
	}
	if res != nil && res.Killed {
		return res.KillReason
	}
	return res.Tail(n)
}
