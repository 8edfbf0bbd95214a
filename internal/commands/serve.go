package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/AlieInmar1/pbtoado-sub002/internal/config"
	"github.com/AlieInmar1/pbtoado-sub002/internal/scheduler"
	"github.com/AlieInmar1/pbtoado-sub002/internal/server"
)

// DefaultSyncTimeout bounds one scheduled bulk sync.
const DefaultSyncTimeout = 10 * time.Minute

// NewServeCmd creates the serve command.
func NewServeCmd(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook endpoint, operator API and sync scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), g)
		},
	}
}

func runServe(ctx context.Context, g *Globals) error {
	rt, err := bootstrap(ctx, g)
	if err != nil {
		return err
	}
	cfg := rt.Config

	srv := server.New(cfg.Server.Addr, rt.Controller, rt.BulkSync, rt.Store,
		cfg.Server.APIKey, cfg.Server.MaxRequestBody, rt.Logger, server.WithExporter(rt.Exporter))

	interval := config.Duration(cfg.Sync.Interval, 0)
	sched := scheduler.New(rt.BulkSync, interval, config.Duration(cfg.Sync.Timeout, DefaultSyncTimeout), rt.Logger)
	sched.Start(ctx)

	if !rt.Controller.LiveWrites() {
		color.Yellow("Live writes disabled: webhook events run as dry runs")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	shutdownCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), 10*time.Second)
	}

	select {
	case err := <-errCh:
		sctx, cancel := shutdownCtx()
		defer cancel()
		sched.Stop(sctx)
		rt.close(sctx)
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case sig := <-sigCh:
		color.Yellow("\nReceived %s, shutting down...", sig)
		sctx, cancel := shutdownCtx()
		defer cancel()
		sched.Stop(sctx)
		if err := srv.Stop(sctx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		rt.close(sctx)
		color.Green("Server stopped gracefully")
		return nil
	}
}
