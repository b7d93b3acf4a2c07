package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/creative-boost/report"
)

func init() {
	rootCmd.AddCommand(summaryCmd)
	addPeriodFlags(summaryCmd)
	summaryCmd.Flags().String("xlsx", "", "Write the summaries to this XLSX file instead of printing them")
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show a month's client summaries",
	RunE:  runSummary,
}

func runSummary(cmd *cobra.Command, args []string) error {
	p, err := periodFlags(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	summaries, err := a.service.GetClientMonthSummaries(cmd.Context(), p)
	if err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := report.WriteSummaries(f, p, summaries); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d summaries to %s\n", len(summaries), path)
		return nil
	}

	if len(summaries) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No clients on %s.\n", p)
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CLIENT\tSTATUS\tUSED\tMAX\tREMAINING\tITEMS\tINVOICE")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			s.ClientName, s.Status,
			s.UsedCredits.String(), s.MaxCredits.String(), s.RemainingCredits.String(),
			s.ItemCount, s.EstimatedInvoice.StringFixed(2))
	}
	return tw.Flush()
}
