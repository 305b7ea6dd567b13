package system

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"vibetex/internal/composer"
	"vibetex/internal/config"
	"vibetex/internal/tools/latex"
	"vibetex/internal/tools/manim"
	"vibetex/internal/tools/research"
	"vibetex/internal/tools/screenshot"
	"vibetex/internal/tools/templates"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.LLM.APIKey = ""
	cfg.Manim.MediaDir = filepath.Join(dir, "media")
	cfg.FFmpeg.ImageDir = filepath.Join(dir, "media", "images")
	cfg.Templates.Dir = filepath.Join(dir, "templates")
	cfg.Templates.Watch = false
	cfg.Store.DatabasePath = filepath.Join(dir, "db", "history.db")
	return cfg
}

func TestBootWithoutCredentials(t *testing.T) {
	rt, err := Boot(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.LLM)
	assert.Nil(t, rt.Transcriber)
	assert.NotNil(t, rt.History)
	assert.Equal(t, []string{screenshot.Name, templates.Name}, rt.Registry.Names())

	resp := rt.Composer.Compose(context.Background(), composer.Request{Prompt: "hello"})
	assert.Equal(t, "Latex tool unavailable.", resp.Message)
	assert.Equal(t, "Missing tool", resp.Error)

	recs, err := rt.History.List(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "hello", recs[0].Prompt)
}

func TestBootWithCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.APIKey = "test-key"
	cfg.Store.DatabasePath = ""

	rt, err := Boot(context.Background(), cfg)
	require.NoError(t, err)
	defer rt.Close()

	assert.NotNil(t, rt.LLM)
	assert.NotNil(t, rt.Transcriber)
	assert.Nil(t, rt.History)
	for _, name := range []string{latex.Name, manim.Name, research.Name, screenshot.Name, templates.Name} {
		assert.True(t, rt.Registry.Has(name), name)
	}

	rr := httptest.NewRecorder()
	rt.Server().Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	rt.Server().Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/templates/letter", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestBootResearchDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.APIKey = "test-key"
	cfg.Research.Enabled = false

	rt, err := Boot(context.Background(), cfg)
	require.NoError(t, err)
	defer rt.Close()
	assert.False(t, rt.Registry.Has(research.Name))
}

func TestCloseStopsWatcher(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	cfg := testConfig(t)
	cfg.Templates.Watch = true
	rt, err := Boot(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close())
}
