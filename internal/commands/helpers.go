// Package commands implements the CLI subcommands for the pbtoado binary.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/AlieInmar1/pbtoado-sub002/internal/app"
	"github.com/AlieInmar1/pbtoado-sub002/internal/config"
	"github.com/AlieInmar1/pbtoado-sub002/internal/logging"
	"github.com/AlieInmar1/pbtoado-sub002/internal/secrets"
	"github.com/AlieInmar1/pbtoado-sub002/internal/telemetry"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// Globals holds flags shared by every subcommand.
type Globals struct {
	ConfigPath string
}

// loadConfig reads the config file and resolves credential references.
func loadConfig(ctx context.Context, g *Globals) (*types.ProjectConfig, error) {
	path := g.ConfigPath
	if path == "" {
		path = config.FileName
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := secrets.NewResolver().ResolveConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runtime is a fully wired process: deps plus the ambient logging and
// telemetry that must be torn down with it.
type runtime struct {
	*app.Deps
	logCloser io.Closer
	shutdown  telemetry.ShutdownFunc
}

// bootstrap loads config, installs the default logger and telemetry, and
// builds the dependency graph.
func bootstrap(ctx context.Context, g *Globals) (*runtime, error) {
	cfg, err := loadConfig(ctx, g)
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("configuring logging: %w", err)
	}
	slog.SetDefault(logger)

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("configuring telemetry: %w", err)
	}

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		_ = shutdown(ctx)
		_ = logCloser.Close()
		return nil, err
	}
	return &runtime{Deps: deps, logCloser: logCloser, shutdown: shutdown}, nil
}

func (r *runtime) close(ctx context.Context) {
	if err := r.Deps.Close(); err != nil {
		r.Logger.Warn("closing dependencies", "error", err)
	}
	if err := r.shutdown(ctx); err != nil {
		r.Logger.Warn("telemetry shutdown", "error", err)
	}
	_ = r.logCloser.Close()
}
