package commands

import (
	"github.com/lazuli-inc/straincrawler"
	"github.com/spf13/cobra"
)

var loadFlags struct {
	input   string
	migrate bool
}

func init() {
	loadCmd.Flags().StringVarP(&loadFlags.input, "input", "i", "", "snapshot to load (default RECONCILED_FILE, then ENRICHED_FILE)")
	loadCmd.Flags().BoolVar(&loadFlags.migrate, "migrate", true, "create missing tables first")
	rootCmd.AddCommand(loadCmd)
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Imports an enriched snapshot into PostgreSQL.",
	RunE: func(cmd *cobra.Command, args []string) error {
		input := latestSnapshot(loadFlags.input)
		snap, err := straincrawler.LoadEnriched(input)
		if err != nil {
			return err
		}

		loader, err := app.OpenLoader(cmd.Context())
		if err != nil {
			return err
		}
		defer loader.Close()

		if loadFlags.migrate {
			if err := loader.Migrate(cmd.Context()); err != nil {
				return err
			}
		}
		app.Logger.Info("Loading %d strains from %s", len(snap.EnhancedStrains), input)
		report, err := loader.Load(cmd.Context(), snap.EnhancedStrains)
		app.PrintSummary("Database import", report.SummaryRows())
		return err
	},
}
