package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/AlieInmar1/pbtoado-sub002/internal/app"
	"github.com/AlieInmar1/pbtoado-sub002/internal/lifecycle"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// NewStatusCmd creates the status command.
func NewStatusCmd(g *Globals) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sync watermarks and recent webhook events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), g, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of recent webhook events to show")
	return cmd
}

func runStatus(ctx context.Context, g *Globals, limit int) error {
	cfg, err := loadConfig(ctx, g)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	store, err := app.NewStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() { _ = store.Close() }()

	history, err := store.ListSyncHistory(ctx)
	if err != nil {
		return fmt.Errorf("listing sync history: %w", err)
	}
	logs, err := store.ListSyncLogs(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing sync logs: %w", err)
	}
	printStatus(os.Stdout, history, logs)
	return nil
}

func printStatus(w io.Writer, history []types.SyncHistoryRecord, logs []types.SyncLog) {
	bold := color.New(color.Bold)

	_, _ = bold.Fprintln(w, "Sync history:")
	if len(history) == 0 {
		_, _ = fmt.Fprintln(w, "  no bulk sync has run yet")
	}
	for _, h := range history {
		last := "never"
		if !h.LastSyncTime.IsZero() {
			last = h.LastSyncTime.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "  %-18s %-8s items=%-6d last=%s", h.EntityType, syncStatus(h.Status), h.ItemsSynced, last)
		if h.ErrorMessage != "" {
			_, _ = fmt.Fprintf(w, "  %s", color.RedString(h.ErrorMessage))
		}
		_, _ = fmt.Fprintln(w)
	}

	_, _ = fmt.Fprintln(w)
	_, _ = bold.Fprintln(w, "Recent webhook events:")
	if len(logs) == 0 {
		_, _ = fmt.Fprintln(w, "  none")
	}
	for _, l := range logs {
		_, _ = fmt.Fprintf(w, "  %s  %-22s %-24s %-12s %s\n",
			l.CreatedAt.Format(time.RFC3339), logStatus(l.Status), l.EventType, l.ItemID, l.Details)
	}
}

func syncStatus(s types.SyncStatus) string {
	switch s {
	case types.SyncSuccess:
		return color.GreenString(string(s))
	case types.SyncPartial:
		return color.YellowString(string(s))
	default:
		return color.RedString(string(s))
	}
}

func logStatus(s types.SyncLogStatus) string {
	switch {
	case lifecycle.IsError(s):
		return color.RedString(string(s))
	case s == types.LogADOCreated || s == types.LogADOUpdated:
		return color.GreenString(string(s))
	default:
		return string(s)
	}
}
