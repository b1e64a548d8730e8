package sessionscmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prefopt/maskrank/pkg/cliui"
)

const listLongDesc string = `List all stored sessions.

Backup entries (written every few comparisons during a run) are listed
alongside the sessions they back up.

Examples:
  maskrank sessions list
  maskrank sessions list --driver sqlite`

const listShortDesc string = "List all stored sessions"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}

	cmd.Flags().String("driver", "", "Session storage driver override (fs, sqlite, postgres, inmemory)")

	return cmd
}

func runList(cmd *cobra.Command) error {
	ctx := context.Background()

	store, err := openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ids, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if len(ids) == 0 {
		fmt.Printf("  %s\n", cliui.DimStyle.Render("No sessions found."))
		return nil
	}

	for _, id := range ids {
		fmt.Printf("  %s\n", cliui.KeyStyle.Render(id))
	}
	return nil
}
