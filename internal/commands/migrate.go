package commands

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/AlieInmar1/pbtoado-sub002/internal/app"
)

// NewMigrateCmd creates the migrate command.
func NewMigrateCmd(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the cache schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), g)
		},
	}
}

func runMigrate(ctx context.Context, g *Globals) error {
	cfg, err := loadConfig(ctx, g)
	if err != nil {
		return err
	}
	store, err := app.NewStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	color.Green("Schema is up to date (%s)", cfg.Store.Driver)
	return nil
}
