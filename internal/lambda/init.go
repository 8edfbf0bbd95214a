package lambda

import (
	"context"
	"fmt"
	"os"

	"github.com/AlieInmar1/pbtoado-sub002/internal/app"
	"github.com/AlieInmar1/pbtoado-sub002/internal/config"
	"github.com/AlieInmar1/pbtoado-sub002/internal/logging"
	"github.com/AlieInmar1/pbtoado-sub002/internal/secrets"
)

// DefaultConfigPath is where the deployment package places pbtoado.yaml.
const DefaultConfigPath = "/var/task/pbtoado.yaml"

// Init builds shared dependencies. Reads: PBTOADO_CONFIG (config file path).
// Credentials in the file are usually env: or secretsmanager: references.
func Init(ctx context.Context) (*app.Deps, error) {
	path := envOrDefault("PBTOADO_CONFIG", DefaultConfigPath)
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	if err := secrets.NewResolver().ResolveConfig(ctx, cfg); err != nil {
		return nil, err
	}

	// Lambda ships stderr to CloudWatch; file logging does not apply.
	logger, err := logging.NewWithWriter(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("configuring logging: %w", err)
	}

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("building dependencies: %w", err)
	}
	return deps, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
