package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AlieInmar1/pbtoado-sub002/internal/commands"
	"github.com/AlieInmar1/pbtoado-sub002/internal/config"
)

var version = "dev"

func main() {
	g := &commands.Globals{}
	root := &cobra.Command{
		Use:   "pbtoado",
		Short: "Keep ProductBoard features and Azure DevOps work items in sync",
		Long: `pbtoado receives ProductBoard webhooks and pushes features that move into
the ready status to Azure DevOps. It also mirrors Azure DevOps work items,
area paths and teams into a local cache used for hierarchy reconstruction.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.ConfigPath, "config", "c", config.FileName, "path to the configuration file")

	root.AddCommand(
		commands.NewServeCmd(g),
		commands.NewSyncCmd(g),
		commands.NewMigrateCmd(g),
		commands.NewStatusCmd(g),
		commands.NewExportCmd(g),
		commands.NewCatchUpCmd(g),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
