package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"vibetex/internal/compile"
	"vibetex/internal/composer"
	"vibetex/internal/logging"
	"vibetex/internal/store"
	"vibetex/internal/tactile"
)

const version = "0.1.0"

func (s *Server) routes() {
	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to vibetex API"})
	})

	api := s.router.Group("/api")
	api.GET("/health", s.health)
	api.POST("/chat", s.chat)
	api.POST("/compile", s.compilePDF)
	api.POST("/compile/html", s.compileHTML)
	api.POST("/test", s.compileText)
	api.POST("/transcribe", s.transcribe)
	api.GET("/templates", s.listTemplates)
	api.GET("/templates/:name", s.getTemplate)
	api.GET("/tools", s.listTools)
	api.GET("/history", s.listHistory)
	api.GET("/history/:id", s.getHistory)

	if s.opts.MediaDir != "" {
		s.router.Static("/media", s.opts.MediaDir)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"service": "vibetex",
		"version": version,
	})
}

func abort(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

var errUnavailable = errors.New("service not configured")

// chatRequest is the JSON form of /api/chat.
type chatRequest struct {
	Input    string           `json:"input"`
	Document string           `json:"document"`
	Options  composer.Options `json:"options"`
}

func (s *Server) chat(c *gin.Context) {
	if s.deps.Composer == nil {
		abort(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}

	var req composer.Request
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		r, err := chatFromForm(c)
		if err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
		req = r
	} else {
		var body chatRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			abort(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		req = composer.Request{Prompt: body.Input, Document: body.Document, Options: body.Options}
	}

	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		abort(c, http.StatusBadRequest, errors.New("prompt is required"))
		return
	}

	logging.Get(logging.CategoryHTTP).Debug("chat: %d char prompt, %d char document", len(req.Prompt), len(req.Document))
	c.JSON(http.StatusOK, s.deps.Composer.Compose(c.Request.Context(), req))
}

// chatFromForm reads the multipart form: prompt, an optional .tex file, and
// option fields.
func chatFromForm(c *gin.Context) (composer.Request, error) {
	req := composer.Request{
		Prompt: c.PostForm("prompt"),
		Options: composer.Options{
			Template: c.PostForm("template"),
			Quality:  c.PostForm("quality"),
		},
	}
	req.Options.DisableAnimations, _ = strconv.ParseBool(c.DefaultPostForm("disable_animations", "false"))
	req.Options.DisableResearch, _ = strconv.ParseBool(c.DefaultPostForm("disable_research", "false"))

	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil
	}
	if err != nil {
		return req, err
	}
	data, err := readUpload(fh)
	if err != nil {
		return req, err
	}
	req.Document = string(data)
	return req, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) compilePDF(c *gin.Context) {
	s.compileUpload(c, false)
}

func (s *Server) compileHTML(c *gin.Context) {
	s.compileUpload(c, true)
}

func (s *Server) compileUpload(c *gin.Context, html bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		abort(c, http.StatusBadRequest, fmt.Errorf("file is required: %w", err))
		return
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".tex") {
		abort(c, http.StatusBadRequest, compile.ErrNotTeX)
		return
	}
	data, err := readUpload(fh)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	s.compile(c, fh.Filename, data, html)
}

type compileTextRequest struct {
	FileTxt string `json:"file_txt"`
}

// compileText compiles LaTeX posted as JSON text.
func (s *Server) compileText(c *gin.Context) {
	var body compileTextRequest
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.FileTxt) == "" {
		abort(c, http.StatusBadRequest, errors.New("file_txt is required"))
		return
	}
	s.compile(c, "document.tex", []byte(body.FileTxt), false)
}

func (s *Server) compile(c *gin.Context, filename string, source []byte, html bool) {
	if s.deps.Compiler == nil {
		abort(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}

	var (
		out         []byte
		err         error
		contentType = "application/pdf"
		ext         = ".pdf"
		disposition = "inline"
	)
	if html {
		out, err = s.deps.Compiler.CompileHTML(c.Request.Context(), filename, source)
		contentType, ext, disposition = "text/html; charset=utf-8", ".html", "attachment"
	} else {
		out, err = s.deps.Compiler.CompilePDF(c.Request.Context(), filename, source)
	}
	if err != nil {
		var ce *compile.CompileError
		switch {
		case errors.As(err, &ce):
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s failed", ce.Tool), "log": ce.Log})
		case errors.Is(err, compile.ErrNotTeX):
			abort(c, http.StatusBadRequest, err)
		case errors.Is(err, tactile.ErrBinaryNotFound):
			abort(c, http.StatusServiceUnavailable, err)
		default:
			abort(c, http.StatusInternalServerError, err)
		}
		return
	}

	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)) + ext
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, name))
	c.Data(http.StatusOK, contentType, out)
}

func (s *Server) transcribe(c *gin.Context) {
	if s.deps.Transcriber == nil {
		abort(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	fh, err := c.FormFile("audio")
	if err != nil {
		abort(c, http.StatusBadRequest, fmt.Errorf("audio is required: %w", err))
		return
	}
	f, err := fh.Open()
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	defer f.Close()

	text, err := s.deps.Transcriber.Transcribe(c.Request.Context(), fh.Filename, f)
	if err != nil {
		abort(c, http.StatusBadGateway, fmt.Errorf("transcription failed: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

func (s *Server) listTemplates(c *gin.Context) {
	if s.deps.Templates == nil {
		abort(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": s.deps.Templates.Names()})
}

func (s *Server) getTemplate(c *gin.Context) {
	if s.deps.Templates == nil {
		abort(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	name := c.Param("name")
	content, err := s.deps.Templates.Get(name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrTemplateNotFound) {
			status = http.StatusNotFound
		}
		abort(c, status, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": strings.ToLower(name), "content": content})
}

func (s *Server) listTools(c *gin.Context) {
	if s.deps.Tools == nil {
		abort(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tools": s.deps.Tools.Specs()})
}

func (s *Server) listHistory(c *gin.Context) {
	if s.deps.History == nil {
		abort(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		abort(c, http.StatusBadRequest, errors.New("limit must be a positive integer"))
		return
	}
	recs, err := s.deps.History.List(c.Request.Context(), limit)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	if recs == nil {
		recs = []store.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": recs})
}

func (s *Server) getHistory(c *gin.Context) {
	if s.deps.History == nil {
		abort(c, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	rec, err := s.deps.History.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		abort(c, status, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
