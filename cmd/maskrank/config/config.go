// Package configcmder provides the config command for managing persistent
// maskrank configuration stored in the config directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent maskrank configuration.

Configuration is stored as config.toml in the config directory
($MASKRANK_CONFIG_DIR or ~/.maskrank) and provides default values for
command flags. CLI flags always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  loop.acquisition, loop.max_iterations, loop.n_pairs_per_iteration,
  loop.convergence_window, loop.convergence_threshold, loop.top_k,
  loop.backup_interval, loop.keep_backups, loop.seed,
  training.max_epochs, training.patience, training.batch_size,
  training.learning_rate,
  sessions.driver, sessions.dir, sessions.sqlite_path, sessions.postgres_dsn,
  api.listen

Use subcommands to get, set, or list configuration values:
  maskrank config set <key> <value>    Set a configuration value
  maskrank config get <key>            Get a configuration value
  maskrank config list                 List all configuration values

Examples:
  maskrank config set loop.acquisition ucb
  maskrank config set sessions.driver sqlite
  maskrank config get loop.top_k
  maskrank config list`

const configShortDesc string = "Manage persistent maskrank configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
