// Package tactile runs the external programs vibetex drives (manim, ffmpeg,
// pdflatex, make4ht) and captures their output.
package tactile

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrBinaryNotFound is returned when the requested executable is not on PATH.
var ErrBinaryNotFound = errors.New("binary not found")

// Command describes one process invocation.
type Command struct {
	// Binary is the executable to run (e.g., "pdflatex", "ffmpeg").
	Binary string `json:"binary"`

	Arguments []string `json:"arguments"`

	// WorkingDirectory is the directory to execute in. Empty means the
	// current process directory.
	WorkingDirectory string `json:"working_directory,omitempty"`

	// Environment holds extra KEY=VALUE pairs appended to the inherited environment.
	Environment []string `json:"environment,omitempty"`

	// Timeout overrides the executor default when positive.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// CommandString returns the full command as a string (for display/logging).
func (c Command) CommandString() string {
	if len(c.Arguments) == 0 {
		return c.Binary
	}
	return c.Binary + " " + strings.Join(c.Arguments, " ")
}

// ExecutionResult is the outcome of a command that was started.
// A non-zero exit code is a result, not an error.
type ExecutionResult struct {
	ExitCode   int           `json:"exit_code"`
	Stdout     string        `json:"stdout"`
	Stderr     string        `json:"stderr"`
	Combined   string        `json:"combined"`
	Duration   time.Duration `json:"duration"`
	Killed     bool          `json:"killed"`
	KillReason string        `json:"kill_reason,omitempty"`
	Truncated  bool          `json:"truncated"`
}

// Succeeded reports a clean zero exit.
func (r *ExecutionResult) Succeeded() bool {
	return r != nil && r.ExitCode == 0 && !r.Killed
}

// Tail returns at most n trailing bytes of the combined output.
func (r *ExecutionResult) Tail(n int) string {
	if r == nil {
		return ""
	}
	out := strings.TrimSpace(r.Combined)
	if len(out) <= n {
		return out
	}
	return "..." + out[len(out)-n:]
}

// Executor runs commands. Errors mean the process could not be run at all.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (*ExecutionResult, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, cmd Command) (*ExecutionResult, error)

// Execute calls f(ctx, cmd).
func (f ExecutorFunc) Execute(ctx context.Context, cmd Command) (*ExecutionResult, error) {
	return f(ctx, cmd)
}
