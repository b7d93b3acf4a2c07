package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warp/creative-boost/credits"
)

func init() {
	rootCmd.AddCommand(syncCmd)
	addPeriodFlags(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile a month's ledger with active engagements",
	Long: `Create or link one ledger row per active Creative-Boost billing line for
the month. Safe to run repeatedly: a second run creates nothing.`,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	p, err := periodFlags(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.service.EnsureClientMonthsForActiveEngagements(cmd.Context(), credits.SystemActor, p)
	if err != nil {
		return fmt.Errorf("sync %s: %w", p, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d created, %d linked, %d skipped\n", p, res.Created, res.Linked, res.Skipped)
	return nil
}
