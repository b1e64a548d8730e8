// Package maskrankcmder
package maskrankcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/prefopt/maskrank/cmd/maskrank/config"
	servecmder "github.com/prefopt/maskrank/cmd/maskrank/serve"
	sessionscmder "github.com/prefopt/maskrank/cmd/maskrank/sessions"
	simulatecmder "github.com/prefopt/maskrank/cmd/maskrank/simulate"
)

const maskrankLongDesc string = `Maskrank learns a ranking over candidate segmentation masks from
sparse pairwise comparisons.

An annotator (or a simulated oracle) answers "which of these two masks
is better?" a handful of times per round; maskrank fits a preference
model on the answers and picks the next most informative pairs to ask
about.

Common commands:
  maskrank simulate    Run a full loop against a simulated oracle
  maskrank sessions    Inspect and manage stored sessions
  maskrank serve       Run the HTTP API server
  maskrank config      Manage persistent configuration`

const maskrankShortDesc string = "Maskrank - preference learning for segmentation masks"

func NewMaskrankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maskrank",
		Short: maskrankShortDesc,
		Long:  maskrankLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (default: $MASKRANK_CONFIG_DIR or ~/.maskrank)")

	// Add subcommands
	cmd.AddCommand(simulatecmder.NewSimulateCmd())
	cmd.AddCommand(sessionscmder.NewSessionsCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())

	return cmd
}
