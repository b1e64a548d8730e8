// Package sessionscmder provides commands for inspecting and managing
// stored learning sessions.
package sessionscmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prefopt/maskrank/pkg/config"
	"github.com/prefopt/maskrank/pkg/session"
	"github.com/prefopt/maskrank/pkg/session/drivers"
)

const sessionsLongDesc string = `Inspect and manage stored learning sessions.

Sessions are persisted by the storage driver configured in config.toml
(sessions.driver; fs, sqlite, postgres or inmemory).

Use subcommands to list, show, or delete sessions:
  maskrank sessions list            List all stored sessions
  maskrank sessions show <id>       Show a session's progress
  maskrank sessions delete <id>     Delete a stored session`

const sessionsShortDesc string = "Inspect and manage stored sessions"

func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: sessionsShortDesc,
		Long:  sessionsLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newDeleteCmd())

	return cmd
}

// openStore builds the session store from the persisted configuration,
// honoring the --driver override.
func openStore(ctx context.Context, cmd *cobra.Command) (session.Store, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	driver, _ := cmd.Flags().GetString("driver")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := config.FromViper(v)
	if driver != "" {
		cfg.Sessions.Driver = driver
	}

	return drivers.NewStore(ctx, cfg.Sessions)
}
