package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vibetex/internal/system"
)

var serveAddr string

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the HTTP API on server.addr (or --addr).

Routes:
  POST /api/chat            compose a document from a prompt
  POST /api/compile         compile a .tex upload to PDF
  POST /api/compile/html    convert a .tex upload to HTML
  POST /api/transcribe      transcribe an audio upload
  GET  /api/templates       list document templates
  GET  /api/history         list past compositions
  GET  /media/...           rendered videos and previews`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	rt, err := system.Boot(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.LLM == nil {
		logger.Warn("No LLM API key configured; /api/chat will report the LaTeX tool as unavailable")
	}
	logger.Info("Starting vibetex API",
		zap.String("addr", cfg.Server.Addr),
		zap.Strings("tools", rt.Registry.Names()))

	return rt.Server().Run(ctx, cfg.Server.Addr, cfg.GetShutdownGrace())
}
