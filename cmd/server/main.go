/*
main.go - Application entry point

PURPOSE:
  The creative-boost binary. Runs the HTTP server and the one-shot
  maintenance commands against the same SQLite database.

COMMANDS:
  serve     Start the HTTP API (and the sync scheduler unless disabled)
  sync      Reconcile one month's ledger with active engagements
  summary   Print a month's summaries, or write them as XLSX

GLOBAL FLAGS:
  --config     TOML config file (optional)
  --db         SQLite database path; ":memory:" for an in-memory database
  --log-level  debug | info | warn | error

  Flags override the config file and CB_* environment variables.

EXAMPLES:
  # Run with file database
  creative-boost serve --db=./data/creative-boost.db

  # Sync March 2025 from a cron job
  creative-boost sync --year 2025 --month 3

  # Export the current month
  creative-boost summary --xlsx march.xlsx

SEE ALSO:
  - config/config.go: Configuration sources
  - api/server.go: Router configuration
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "creative-boost",
	Short: "Creative-Boost credit accounting",
	Long: `Creative-Boost keeps the monthly credit budgets of clients, the log of
deliverables produced for them, and derives usage summaries, invoices and
per-colleague credit totals.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "TOML config file")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
