package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibetex/internal/compile"
	"vibetex/internal/composer"
	"vibetex/internal/store"
	"vibetex/internal/tactile"
	"vibetex/internal/tools"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeComposer struct {
	mu  sync.Mutex
	got composer.Request
}

func (f *fakeComposer) Compose(ctx context.Context, req composer.Request) *composer.Response {
	f.mu.Lock()
	f.got = req
	f.mu.Unlock()
	return &composer.Response{Message: "done", Latex: `\documentclass{article}`}
}

type fakeCompiler struct {
	err error
}

func (f *fakeCompiler) CompilePDF(ctx context.Context, filename string, source []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte("%PDF:"+filename+":"), source...), nil
}

func (f *fakeCompiler) CompileHTML(ctx context.Context, filename string, source []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("<html>" + string(source) + "</html>"), nil
}

type fakeTranscriber struct{}

func (fakeTranscriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", filename, len(data)), nil
}

type fakeTemplates map[string]string

func (f fakeTemplates) Names() []string { return []string{"letter"} }

func (f fakeTemplates) Get(name string) (string, error) {
	if c, ok := f[strings.ToLower(name)]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%w: %s", store.ErrTemplateNotFound, name)
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func TestRootAndHealth(t *testing.T) {
	s := New(Deps{}, Options{})

	rr := do(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Welcome to vibetex API"}`, rr.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr = do(s, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	var body map[string]any
	decode(t, rr, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestChat(t *testing.T) {
	fc := &fakeComposer{}
	s := New(Deps{Composer: fc}, Options{})

	t.Run("json", func(t *testing.T) {
		body := `{"input":"  write a letter ","options":{"template":"letter","disable_animations":true}}`
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rr := do(s, req)

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var resp composer.Response
		decode(t, rr, &resp)
		assert.Equal(t, "done", resp.Message)
		assert.Equal(t, "write a letter", fc.got.Prompt)
		assert.Equal(t, composer.Options{Template: "letter", DisableAnimations: true}, fc.got.Options)
	})

	t.Run("multipart with document", func(t *testing.T) {
		buf, ct := multipartBody(t, map[string]string{"prompt": "fix it", "disable_research": "true"}, "file", "doc.tex", `\begin{document}x\end{document}`)
		req := httptest.NewRequest(http.MethodPost, "/api/chat", buf)
		req.Header.Set("Content-Type", ct)
		rr := do(s, req)

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, "fix it", fc.got.Prompt)
		assert.Equal(t, `\begin{document}x\end{document}`, fc.got.Document)
		assert.True(t, fc.got.Options.DisableResearch)
	})

	t.Run("empty prompt", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"input":"   "}`))
		req.Header.Set("Content-Type", "application/json")
		assert.Equal(t, http.StatusBadRequest, do(s, req).Code)
	})

	t.Run("no composer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"input":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		assert.Equal(t, http.StatusServiceUnavailable, do(New(Deps{}, Options{}), req).Code)
	})
}

func TestCompileRoutes(t *testing.T) {
	upload := func(s *Server, path, name, content string) *httptest.ResponseRecorder {
		buf, ct := multipartBody(t, nil, "file", name, content)
		req := httptest.NewRequest(http.MethodPost, path, buf)
		req.Header.Set("Content-Type", ct)
		return do(s, req)
	}

	ok := New(Deps{Compiler: &fakeCompiler{}}, Options{})

	rr := upload(ok, "/api/compile", "notes.tex", "SRC")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename="notes.pdf"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF:notes.tex:SRC", rr.Body.String())

	rr = upload(ok, "/api/compile/html", "notes.tex", "SRC")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="notes.html"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "<html>SRC</html>", rr.Body.String())

	rr = upload(ok, "/api/compile", "notes.docx", "SRC")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	failing := New(Deps{Compiler: &fakeCompiler{err: &compile.CompileError{Tool: "pdflatex", ExitCode: 1, Log: "! Undefined control sequence."}}}, Options{})
	rr = upload(failing, "/api/compile", "bad.tex", `\foo`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var body map[string]string
	decode(t, rr, &body)
	assert.Equal(t, "pdflatex failed", body["error"])
	assert.Contains(t, body["log"], "Undefined control sequence")

	missing := New(Deps{Compiler: &fakeCompiler{err: fmt.Errorf("run pdflatex: %w", tactile.ErrBinaryNotFound)}}, Options{})
	assert.Equal(t, http.StatusServiceUnavailable, upload(missing, "/api/compile", "a.tex", "x").Code)

	req := httptest.NewRequest(http.MethodPost, "/api/test", strings.NewReader(`{"file_txt":"BODY"}`))
	req.Header.Set("Content-Type", "application/json")
	rr = do(ok, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "%PDF:document.tex:BODY", rr.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/test", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, do(ok, req).Code)
}

func TestTranscribe(t *testing.T) {
	buf, ct := multipartBody(t, nil, "audio", "note.m4a", "12345")
	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", buf)
	req.Header.Set("Content-Type", ct)
	rr := do(New(Deps{Transcriber: fakeTranscriber{}}, Options{}), req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"text":"note.m4a:5"}`, rr.Body.String())

	buf, ct = multipartBody(t, nil, "audio", "note.m4a", "1")
	req = httptest.NewRequest(http.MethodPost, "/api/transcribe", buf)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusServiceUnavailable, do(New(Deps{}, Options{}), req).Code)
}

func TestTemplatesAndTools(t *testing.T) {
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name:     "generate_latex",
		Category: tools.CategoryDocument,
		Execute:  func(ctx context.Context, args map[string]any) (string, error) { return "{}", nil },
		Schema:   tools.ToolSchema{Required: []string{"prompt"}},
	})
	s := New(Deps{Templates: fakeTemplates{"letter": `\documentclass{letter}`}, Tools: reg}, Options{})

	rr := do(s, httptest.NewRequest(http.MethodGet, "/api/templates", nil))
	assert.JSONEq(t, `{"templates":["letter"]}`, rr.Body.String())

	rr = do(s, httptest.NewRequest(http.MethodGet, "/api/templates/Letter", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"name":"letter","content":"\\documentclass{letter}"}`, rr.Body.String())

	rr = do(s, httptest.NewRequest(http.MethodGet, "/api/templates/poster", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(s, httptest.NewRequest(http.MethodGet, "/api/tools", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Tools []tools.Spec `json:"tools"`
	}
	decode(t, rr, &body)
	require.Len(t, body.Tools, 1)
	assert.Equal(t, "generate_latex", body.Tools[0].Name)
	assert.Equal(t, []any{"prompt"}, body.Tools[0].InputSchema["required"])
}

func TestHistoryRoutes(t *testing.T) {
	h, err := store.OpenHistory(":memory:")
	require.NoError(t, err)
	defer h.Close()

	saved, err := h.Save(context.Background(), store.Record{Prompt: "p", Message: "m", Latex: "l"})
	require.NoError(t, err)
	s := New(Deps{History: h}, Options{})

	rr := do(s, httptest.NewRequest(http.MethodGet, "/api/history?limit=5", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Documents []store.Record `json:"documents"`
	}
	decode(t, rr, &list)
	require.Len(t, list.Documents, 1)
	assert.Equal(t, saved.ID, list.Documents[0].ID)

	rr = do(s, httptest.NewRequest(http.MethodGet, "/api/history/"+saved.ID, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var rec store.Record
	decode(t, rr, &rec)
	assert.Equal(t, "p", rec.Prompt)

	assert.Equal(t, http.StatusNotFound, do(s, httptest.NewRequest(http.MethodGet, "/api/history/nope", nil)).Code)
	assert.Equal(t, http.StatusBadRequest, do(s, httptest.NewRequest(http.MethodGet, "/api/history?limit=x", nil)).Code)
}

func TestMediaAndBodyLimit(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "videos"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "videos", "a.mp4"), []byte("MP4"), 0644))

	s := New(Deps{Compiler: &fakeCompiler{}}, Options{MediaDir: dir, MaxUploadBytes: 64})

	rr := do(s, httptest.NewRequest(http.MethodGet, "/media/videos/a.mp4", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "MP4", rr.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/api/test", strings.NewReader(`{"file_txt":"`+strings.Repeat("x", 200)+`"}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, do(s, req).Code)
}

func TestRunShutsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(Deps{}, Options{}).Run(ctx, "127.0.0.1:0", time.Second) }()
	cancel()
	assert.NoError(t, <-done)
}
