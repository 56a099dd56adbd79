package commands

import (
	"github.com/lazuli-inc/straincrawler"
	"github.com/spf13/cobra"
)

var (
	catalogOutput  string
	catalogLenient bool
)

func init() {
	catalogCmd.Flags().StringVarP(&catalogOutput, "output", "o", "", "catalog snapshot path (default CATALOG_FILE)")
	catalogCmd.Flags().BoolVar(&catalogLenient, "lenient", false, "treat an unrecognised page as the end of the catalog")
	rootCmd.AddCommand(catalogCmd)
}

var catalogCmd = &cobra.Command{
	Use:   "catalog [-o data.json]",
	Short: "Walks the paginated strain listing and writes the catalog snapshot.",
	RunE: func(cmd *cobra.Command, args []string) error {
		output := catalogOutput
		if output == "" {
			output = app.Config.GetString("CATALOG_FILE")
		}

		if catalogLenient {
			app.SetStrictCatalog(false)
		}

		// Pages gathered before a failure are kept.
		strains, walkErr := app.Catalog(cmd.Context())
		if err := straincrawler.SaveCatalog(output, straincrawler.NewCatalogSnapshot(app.RunID, strains)); err != nil {
			return err
		}
		app.Logger.Info("Saved %d strains to %s", len(strains), output)
		app.PrintSummary("Catalog", [][2]interface{}{
			{"strains", len(strains)},
			{"output", output},
			{"complete", walkErr == nil},
		})
		return walkErr
	},
}
