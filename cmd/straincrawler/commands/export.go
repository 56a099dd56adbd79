package commands

import (
	"os"
	"path/filepath"

	"github.com/lazuli-inc/straincrawler"
	"github.com/spf13/cobra"
)

var exportFlags struct {
	input  string
	output string
	upload bool
}

func init() {
	f := exportCmd.Flags()
	f.StringVarP(&exportFlags.input, "input", "i", "", "snapshot to export (default RECONCILED_FILE, then ENRICHED_FILE)")
	f.StringVarP(&exportFlags.output, "output", "o", "storage/export/strains.csv", "csv path")
	f.BoolVar(&exportFlags.upload, "upload", false, "also copy the csv to the bucket under exports/")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Writes an enriched snapshot as CSV.",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := straincrawler.LoadEnriched(latestSnapshot(exportFlags.input))
		if err != nil {
			return err
		}
		if err := straincrawler.ExportEnrichedToCSV(exportFlags.output, snap.EnhancedStrains); err != nil {
			return err
		}
		app.Logger.Info("Exported %d strains to %s", len(snap.EnhancedStrains), exportFlags.output)

		if exportFlags.upload {
			data, err := os.ReadFile(exportFlags.output)
			if err != nil {
				return err
			}
			store, err := app.OpenBucket(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			key := "exports/" + filepath.Base(exportFlags.output)
			if err := store.Put(cmd.Context(), key, data, "text/csv", "no-cache"); err != nil {
				return err
			}
			app.Logger.Info("Uploaded %s", key)
		}
		app.PrintSummary("Export", [][2]interface{}{
			{"strains", len(snap.EnhancedStrains)},
			{"output", exportFlags.output},
			{"uploaded", exportFlags.upload},
		})
		return nil
	},
}
