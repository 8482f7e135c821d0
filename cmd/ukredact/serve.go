package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/straja-ai/ukredact/internal/audit"
	"github.com/straja-ai/ukredact/internal/pipeline"
	"github.com/straja-ai/ukredact/internal/server"
	"github.com/straja-ai/ukredact/internal/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	return cmd
}

func (a *app) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:  a.cfg.Telemetry.Enabled,
		Endpoint: a.cfg.Telemetry.Endpoint,
		Protocol: a.cfg.Telemetry.Protocol,
		Service:  a.cfg.Telemetry.ServiceName,
		Version:  version,
	})
	if err != nil {
		return err
	}
	defer tel.Shutdown(context.Background())

	analyzer, closeModel, err := pipeline.Build(a.cfg, tel, nil)
	if err != nil {
		return err
	}
	defer closeModel()

	em, err := audit.Open(a.cfg.Audit, tel)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	srv, err := server.New(a.cfg, analyzer, em)
	if err != nil {
		em.Close(context.Background())
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		em.Close(context.Background())
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down", "timeout", a.cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
