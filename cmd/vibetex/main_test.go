package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibetex/internal/compile"
	"vibetex/internal/composer"
	"vibetex/internal/diff"
)

// setup writes a config pointing every directory into a temp dir and clears
// credential env vars.
func setup(t *testing.T) string {
	t.Helper()
	for _, k := range []string{"GROQ_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY", "VIBETEX_DB", "VIBETEX_MEDIA_DIR", "DEBUG"} {
		t.Setenv(k, "")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "vibetex.yaml")
	yaml := fmt.Sprintf(`manim:
  media_dir: %q
ffmpeg:
  image_dir: %q
templates:
  dir: %q
  watch: false
store:
  database_path: ""
logging:
  level: error
`, filepath.Join(dir, "media"), filepath.Join(dir, "media", "images"), filepath.Join(dir, "templates"))
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestJoinArgs(t *testing.T) {
	assert.Equal(t, "one two three", joinArgs([]string{"one", "two", "three"}))
	assert.Equal(t, "", joinArgs(nil))
}

func TestTemplatesCommand(t *testing.T) {
	cfgFile := setup(t)

	out, err := run(t, "--config", cfgFile, "templates")
	require.NoError(t, err)
	assert.Contains(t, out, "letter")
	assert.Contains(t, out, "swe_resume")

	out, err = run(t, "--config", cfgFile, "templates", "letter")
	require.NoError(t, err)
	assert.Contains(t, out, `\documentclass`)

	_, err = run(t, "--config", cfgFile, "templates", "poster")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available:")
}

func TestToolsCommandWithoutCredentials(t *testing.T) {
	cfgFile := setup(t)

	out, err := run(t, "--config", cfgFile, "tools")
	require.NoError(t, err)
	assert.Contains(t, out, "get_latex_template")
	assert.Contains(t, out, "generate_video_screenshot")
	assert.NotRegexp(t, `(?m)^generate_latex\s`, out)
	assert.NotContains(t, out, "scrape_web_page")
}

func TestComposeWithoutCredentials(t *testing.T) {
	cfgFile := setup(t)

	out, err := run(t, "--config", cfgFile, "compose", "--raw", "--no-animations", "write", "a", "letter")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing tool")
	assert.Contains(t, out, "Latex tool unavailable.")
}

func TestCompileRejectsNonTeX(t *testing.T) {
	cfgFile := setup(t)
	src := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0644))

	_, err := run(t, "--config", cfgFile, "compile", src)
	assert.ErrorIs(t, err, compile.ErrNotTeX)
}

func TestTranscribeRequiresKey(t *testing.T) {
	cfgFile := setup(t)
	_, err := run(t, "--config", cfgFile, "transcribe", "note.m4a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestRenderMessageRaw(t *testing.T) {
	resp := &composer.Response{
		Message:  "Done.",
		Template: "letter",
		Sources:  []string{"https://a.io"},
		Animations: []composer.AnimationOutcome{
			{Index: 1, Description: "spin", Success: true, VideoPath: "/m/a.mp4"},
			{Index: 2, Description: "fade", Error: "exit 1"},
		},
	}
	want := "Done.\n\n**Template:** `letter`" +
		"\n\n**Sources:**\n- https://a.io\n" +
		"\n\n**Animations:**\n1. spin: `/m/a.mp4`\n2. fade: failed (exit 1)\n"
	assert.Equal(t, want, renderMessage(resp, true))
	assert.Contains(t, renderMessage(resp, false), "Done.")
}

func TestRenderMessageChanges(t *testing.T) {
	resp := &composer.Response{Message: "Revised.", Changes: &diff.Stats{Added: 4, Removed: 1, Hunks: 2}}
	assert.Equal(t, "Revised.\n\n**Changes:** +4 -1 in 2 hunk(s)", renderMessage(resp, true))
}
