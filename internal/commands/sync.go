package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/AlieInmar1/pbtoado-sub002/internal/bulksync"
	"github.com/AlieInmar1/pbtoado-sub002/internal/config"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// NewSyncCmd creates the sync command.
func NewSyncCmd(g *Globals) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one bulk sync of Azure DevOps into the local cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), g, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "ignore sync watermarks and fetch everything")
	return cmd
}

func runSync(ctx context.Context, g *Globals, force bool) error {
	rt, err := bootstrap(ctx, g)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	ctx, cancel := context.WithTimeout(ctx, config.Duration(rt.Config.Sync.Timeout, DefaultSyncTimeout))
	defer cancel()

	res, err := rt.BulkSync.Run(ctx, bulksync.Request{ForceFullSync: force})
	if err != nil {
		return fmt.Errorf("bulk sync: %w", err)
	}
	printSyncResult(os.Stdout, res)
	if !res.Success {
		return fmt.Errorf("bulk sync failed: %s", res.Message)
	}
	return nil
}

func printSyncResult(w io.Writer, res bulksync.Result) {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintln(w, "Bulk sync:")

	entities := make([]types.EntityType, 0, len(res.Counts))
	for et := range res.Counts {
		entities = append(entities, et)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i] < entities[j] })

	degraded := make(map[types.EntityType]bool)
	for _, et := range res.Degraded {
		degraded[et] = true
	}
	failed := make(map[types.EntityType]bool)
	for _, et := range res.Failed {
		failed[et] = true
	}

	for _, et := range entities {
		state := color.GreenString("ok")
		switch {
		case failed[et]:
			state = color.RedString("failed")
		case degraded[et]:
			state = color.YellowString("cached")
		}
		_, _ = fmt.Fprintf(w, "  %-18s %6d  %s\n", et, res.Counts[et], state)
	}

	h := res.Hierarchy
	_, _ = fmt.Fprintf(w, "  hierarchy: %d epics, %d features (%d linked), %d stories (%d linked)\n",
		h.Epics, h.Features, h.LinkedFeatures, h.Stories, h.LinkedStories)
	_, _ = fmt.Fprintf(w, "  mappings refreshed: %d\n", res.MappingsRefreshed)
	_, _ = fmt.Fprintf(w, "  duration: %s\n", res.Duration.Round(time.Millisecond))
}
