package tactile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"vibetex/internal/logging"
)

// ExecutorConfig holds executor-wide defaults.
type ExecutorConfig struct {
	DefaultTimeout time.Duration
	MaxOutputBytes int64
}

// DefaultExecutorConfig returns sane defaults for render and compile jobs.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		DefaultTimeout: 5 * time.Minute,
		MaxOutputBytes: 1 << 20,
	}
}

// DirectExecutor executes commands directly on the host using os/exec.
type DirectExecutor struct {
	config ExecutorConfig
}

// NewDirectExecutor creates a new direct executor with default config.
func NewDirectExecutor() *DirectExecutor {
	return NewDirectExecutorWithConfig(DefaultExecutorConfig())
}

// NewDirectExecutorWithConfig creates a new direct executor with custom config.
func NewDirectExecutorWithConfig(config ExecutorConfig) *DirectExecutor {
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = DefaultExecutorConfig().DefaultTimeout
	}
	if config.MaxOutputBytes <= 0 {
		config.MaxOutputBytes = DefaultExecutorConfig().MaxOutputBytes
	}
	return &DirectExecutor{config: config}
}

// Execute runs a command directly on the host.
func (e *DirectExecutor) Execute(ctx context.Context, cmd Command) (*ExecutionResult, error) {
	if cmd.Binary == "" {
		return nil, fmt.Errorf("binary is required")
	}
	if _, err := exec.LookPath(cmd.Binary); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBinaryNotFound, cmd.Binary)
	}

	timer := logging.StartTimer(logging.CategoryTactile, cmd.Binary)
	defer timer.Stop()

	timeout := e.config.DefaultTimeout
	if cmd.Timeout > 0 {
		timeout = cmd.Timeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logging.TactileDebug("Executing: %s (dir=%s, timeout=%s)", cmd.CommandString(), cmd.WorkingDirectory, timeout)

	execCmd := exec.CommandContext(execCtx, cmd.Binary, cmd.Arguments...)
	execCmd.Dir = cmd.WorkingDirectory
	execCmd.Env = append(os.Environ(), cmd.Environment...)

	var stdoutBuf, stderrBuf bytes.Buffer
	combinedBuf := &lockedBuffer{}
	stdout := &limitedWriter{w: io.MultiWriter(&stdoutBuf, combinedBuf), max: e.config.MaxOutputBytes}
	stderr := &limitedWriter{w: io.MultiWriter(&stderrBuf, combinedBuf), max: e.config.MaxOutputBytes}
	execCmd.Stdout = stdout
	execCmd.Stderr = stderr

	start := time.Now()
	err := execCmd.Run()

	result := &ExecutionResult{
		ExitCode:  0,
		Stdout:    stdoutBuf.String(),
		Stderr:    stderrBuf.String(),
		Combined:  combinedBuf.String(),
		Duration:  time.Since(start),
		Truncated: stdout.truncated || stderr.truncated,
	}
	if result.Truncated {
		logging.TactileWarn("Output of %s truncated: %d bytes discarded", cmd.Binary, stdout.discarded+stderr.discarded)
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(execCtx.Err(), context.DeadlineExceeded):
			result.ExitCode = -1
			result.Killed = true
			result.KillReason = fmt.Sprintf("timeout after %s", timeout)
			logging.TactileWarn("Command killed (timeout): %s after %s", cmd.Binary, timeout)
		case errors.Is(execCtx.Err(), context.Canceled):
			result.ExitCode = -1
			result.Killed = true
			result.KillReason = "context canceled"
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
			logging.TactileDebug("Command exited non-zero: %s -> %d", cmd.Binary, result.ExitCode)
		default:
			return nil, fmt.Errorf("failed to run %s: %w", cmd.Binary, err)
		}
	}

	return result, nil
}

// lockedBuffer interleaves stdout and stderr, which exec copies from separate goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// limitedWriter is an io.Writer that limits total bytes written.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)

	if lw.written >= lw.max {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		lw.discarded += int64(n) - remaining
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err // report the full length so exec does not see a short write
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
