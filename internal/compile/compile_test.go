package compile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibetex/internal/tactile"
)

const doc = "\\documentclass{article}\\begin{document}Hi\\end{document}"

// fakeTeX writes <base><ext> next to the source, like pdflatex or make4ht would.
func fakeTeX(ext string, calls *int) tactile.Executor {
	return tactile.ExecutorFunc(func(ctx context.Context, cmd tactile.Command) (*tactile.ExecutionResult, error) {
		*calls++
		src := cmd.Arguments[len(cmd.Arguments)-1]
		data, err := os.ReadFile(filepath.Join(cmd.WorkingDirectory, src))
		if err != nil {
			return nil, err
		}
		out := filepath.Join(cmd.WorkingDirectory, strings.TrimSuffix(src, ".tex")+ext)
		return &tactile.ExecutionResult{}, os.WriteFile(out, append([]byte("OUT:"), data...), 0644)
	})
}

func TestCompilePDF(t *testing.T) {
	var calls int
	c := New(fakeTeX(".pdf", &calls), Options{Passes: 2})

	pdf, err := c.CompilePDF(context.Background(), "notes.tex", []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "OUT:"+doc, string(pdf))
	assert.Equal(t, 2, calls)
}

func TestCompilePDF_Arguments(t *testing.T) {
	var got tactile.Command
	exec := tactile.ExecutorFunc(func(ctx context.Context, cmd tactile.Command) (*tactile.ExecutionResult, error) {
		got = cmd
		return &tactile.ExecutionResult{}, os.WriteFile(filepath.Join(cmd.WorkingDirectory, "a.pdf"), []byte("%PDF"), 0644)
	})
	_, err := New(exec, Options{}).CompilePDF(context.Background(), `C:\Users\me\a.tex`, []byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "pdflatex", got.Binary)
	assert.Equal(t, []string{"-output-directory", got.WorkingDirectory, "-interaction=nonstopmode", "a.tex"}, got.Arguments)
	_, statErr := os.Stat(got.WorkingDirectory)
	assert.True(t, os.IsNotExist(statErr), "scratch dir removed")
}

func TestCompilePDF_Failures(t *testing.T) {
	_, err := New(nil, Options{}).CompilePDF(context.Background(), "notes.docx", []byte(doc))
	assert.ErrorIs(t, err, ErrNotTeX)

	failing := tactile.ExecutorFunc(func(ctx context.Context, cmd tactile.Command) (*tactile.ExecutionResult, error) {
		log := "! Undefined control sequence.\nl.3 \\foo"
		require.NoError(t, os.WriteFile(filepath.Join(cmd.WorkingDirectory, "bad.log"), []byte(log), 0644))
		return &tactile.ExecutionResult{ExitCode: 1, Combined: "console noise"}, nil
	})
	_, err = New(failing, Options{}).CompilePDF(context.Background(), "bad.tex", []byte(`\foo`))
	var ce *CompileError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, "pdflatex", ce.Tool)
	assert.Equal(t, 1, ce.ExitCode)
	assert.Contains(t, ce.Log, "Undefined control sequence")

	missing := tactile.ExecutorFunc(func(ctx context.Context, cmd tactile.Command) (*tactile.ExecutionResult, error) {
		return nil, tactile.ErrBinaryNotFound
	})
	_, err = New(missing, Options{}).CompilePDF(context.Background(), "a.tex", []byte(doc))
	assert.ErrorIs(t, err, tactile.ErrBinaryNotFound)
}

func TestCompileHTML(t *testing.T) {
	var calls int
	c := New(fakeTeX(".html", &calls), Options{HTMLArgs: []string{"-u"}})

	page, err := c.CompileHTML(context.Background(), "notes.tex", []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "OUT:"+doc, string(page))
	assert.Equal(t, 1, calls)

	noOutput := tactile.ExecutorFunc(func(ctx context.Context, cmd tactile.Command) (*tactile.ExecutionResult, error) {
		assert.Equal(t, []string{"notes.tex"}, cmd.Arguments)
		return &tactile.ExecutionResult{ExitCode: 2, Combined: "make4ht: error"}, nil
	})
	_, err = New(noOutput, Options{}).CompileHTML(context.Background(), "notes.tex", []byte(doc))
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "make4ht", ce.Tool)
	assert.Contains(t, ce.Log, "make4ht: error")
}
