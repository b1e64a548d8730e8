package sessionscmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prefopt/maskrank/pkg/cliui"
)

const deleteLongDesc string = `Delete a stored session.

Removes the session document from the configured storage driver. Backup
entries are not removed automatically; delete them by id if needed.

Examples:
  maskrank sessions delete session_1a2b3c4d`

const deleteShortDesc string = "Delete a stored session"

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: deleteShortDesc,
		Long:  deleteLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, args[0])
		},
	}

	cmd.Flags().String("driver", "", "Session storage driver override (fs, sqlite, postgres, inmemory)")

	return cmd
}

func runDelete(cmd *cobra.Command, id string) error {
	ctx := context.Background()

	store, err := openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(ctx, id); err != nil {
		return err
	}

	fmt.Printf("  %s Deleted %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(id))
	return nil
}
