package sessionscmder

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/prefopt/maskrank/pkg/cliui"
	"github.com/prefopt/maskrank/pkg/session"
)

const showLongDesc string = `Show a session's progress.

Loads the stored session and prints its iteration count, comparison
count, convergence status and current top-ranked candidates.

Examples:
  maskrank sessions show session_1a2b3c4d`

const showShortDesc string = "Show a session's progress"

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: showShortDesc,
		Long:  showLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args[0])
		},
	}

	cmd.Flags().String("driver", "", "Session storage driver override (fs, sqlite, postgres, inmemory)")

	return cmd
}

func runShow(cmd *cobra.Command, id string) error {
	ctx := context.Background()

	store, err := openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	doc, err := store.Load(ctx, id)
	if err != nil {
		return err
	}

	status := "in progress"
	if doc.Converged {
		status = "converged"
	}

	fmt.Printf("\n  %s %s\n", cliui.KeyStyle.Render("Session:"), doc.SessionID)
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("Created:"), doc.CreatedAt.Format(time.RFC3339))
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("Updated:"), doc.UpdatedAt.Format(time.RFC3339))
	fmt.Printf("  %s %d\n", cliui.KeyStyle.Render("Iteration:"), doc.Iteration)
	fmt.Printf("  %s %d\n", cliui.KeyStyle.Render("Comparisons:"), doc.TotalComparisons)
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("Status:"), status)

	if len(doc.Ranking) > 0 {
		fmt.Printf("\n  %s\n", cliui.KeyStyle.Render("Ranking:"))
		printTop(doc, 10)
	}
	fmt.Println()

	return nil
}

func printTop(doc *session.Session, n int) {
	if n > len(doc.Ranking) {
		n = len(doc.Ranking)
	}
	for rank := 0; rank < n; rank++ {
		idx := doc.Ranking[rank]
		line := fmt.Sprintf("#%-3d candidate %-4d", rank+1, idx)
		if idx < len(doc.Scores) {
			line += cliui.ScoreStyle.Render(fmt.Sprintf("score %.3f", doc.Scores[idx]))
		}
		fmt.Printf("    %s %s\n", cliui.RankStyle.Render(fmt.Sprintf("%2d.", rank+1)), line)
	}
}
