package commands

import (
	"github.com/lazuli-inc/straincrawler"
	"github.com/spf13/cobra"
)

var reconcileFlags struct {
	input  string
	output string
}

func init() {
	reconcileCmd.Flags().StringVarP(&reconcileFlags.input, "input", "i", "", "enriched snapshot (default ENRICHED_FILE)")
	reconcileCmd.Flags().StringVarP(&reconcileFlags.output, "output", "o", "", "reconciled snapshot path (default RECONCILED_FILE)")
	rootCmd.AddCommand(reconcileCmd)
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Refetches strains with empty flavors or helps_with and merges the results back.",
	RunE: func(cmd *cobra.Command, args []string) error {
		input := firstNonEmpty(reconcileFlags.input, app.Config.GetString("ENRICHED_FILE"))
		output := firstNonEmpty(reconcileFlags.output, app.Config.GetString("RECONCILED_FILE"))

		snap, err := straincrawler.LoadEnriched(input)
		if err != nil {
			return err
		}
		report, runErr := app.Reconcile(cmd.Context(), snap.EnhancedStrains)
		if runErr != nil && !interrupted(runErr) {
			return runErr
		}

		snap.EnhancedStrains = report.Records
		snap.TotalStrains = len(report.Records)
		snap.MarkReconciled(report.Updated)
		if err := straincrawler.SaveEnriched(output, snap); err != nil {
			return err
		}
		app.Logger.Info("Saved %d strains to %s", len(report.Records), output)
		app.PrintSummary("Reconciliation", report.SummaryRows())
		return runErr
	},
}
