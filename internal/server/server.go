// Package server exposes the composer, the compiler, and the supporting
// stores over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"vibetex/internal/composer"
	"vibetex/internal/config"
	"vibetex/internal/logging"
	"vibetex/internal/store"
	"vibetex/internal/tools"
)

// Composer produces documents from prompts.
type Composer interface {
	Compose(ctx context.Context, req composer.Request) *composer.Response
}

// Compiler renders LaTeX source.
type Compiler interface {
	CompilePDF(ctx context.Context, filename string, source []byte) ([]byte, error)
	CompileHTML(ctx context.Context, filename string, source []byte) ([]byte, error)
}

// Transcriber turns speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// Templates lists and reads document templates.
type Templates interface {
	Names() []string
	Get(name string) (string, error)
}

// History reads past compositions.
type History interface {
	Get(ctx context.Context, id string) (store.Record, error)
	List(ctx context.Context, limit int) ([]store.Record, error)
}

// ToolLister describes the registered tools.
type ToolLister interface {
	Specs() []tools.Spec
}

// Deps are the services behind the routes. Nil optional services make their
// routes answer 503.
type Deps struct {
	Composer    Composer
	Compiler    Compiler
	Transcriber Transcriber
	Templates   Templates
	History     History
	Tools       ToolLister
}

// Options configures the HTTP surface.
type Options struct {
	CORSOrigins    []string
	MaxUploadBytes int64
	MediaDir       string
}

// OptionsFromConfig reads server options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		MediaDir:       cfg.Manim.MediaDir,
	}
}

// Server is the vibetex HTTP API.
type Server struct {
	deps    Deps
	opts    Options
	router  *gin.Engine
	started time.Time
}

// New builds the router with every route registered.
func New(deps Deps, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logging.ZapFor(logging.CategoryHTTP)))
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))
	r.Use(LimitBody(opts.MaxUploadBytes))
	r.MaxMultipartMemory = opts.MaxUploadBytes
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{deps: deps, opts: opts, router: r, started: time.Now()}
	s.routes()
	return s
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then drains in-flight requests
// for up to grace.
func (s *Server) Run(ctx context.Context, addr string, grace time.Duration) error {
	if grace <= 0 {
		grace = 10 * time.Second
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Get(logging.CategoryHTTP).Info("Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.Get(logging.CategoryHTTP).Info("Shutting down (grace %v)", grace)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
