package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/AlieInmar1/pbtoado-sub002/internal/export"
)

// NewExportCmd creates the export command.
func NewExportCmd(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "export <work-item-id>",
		Short: "Write one Azure DevOps work item to ProductBoard and link both sides",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid work item id %q", args[0])
			}
			return runExport(cmd.Context(), g, id)
		},
	}
}

func runExport(ctx context.Context, g *Globals, id int) error {
	rt, err := bootstrap(ctx, g)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	res, err := rt.Exporter.Export(ctx, id)
	if err != nil {
		return fmt.Errorf("exporting work item %d: %w", id, err)
	}
	printExportResult(os.Stdout, res)
	return nil
}

func printExportResult(w io.Writer, res export.Result) {
	verb := "updated"
	if res.Created {
		verb = "created"
	}
	_, _ = fmt.Fprintf(w, "Work item %d %s feature %s", res.ADOID, color.GreenString(verb), res.ProductBoardID)
	if res.Status != "" {
		_, _ = fmt.Fprintf(w, " (%s)", res.Status)
	}
	_, _ = fmt.Fprintln(w)
}
