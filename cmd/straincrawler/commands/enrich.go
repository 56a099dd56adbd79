package commands

import (
	"github.com/lazuli-inc/straincrawler"
	"github.com/spf13/cobra"
)

// saveEvery is how many records pass between incremental snapshot writes.
const saveEvery = 10

var enrichFlags struct {
	input  string
	output string
	limit  int
	run    string
	resume bool
	images string
}

func init() {
	f := enrichCmd.Flags()
	f.StringVarP(&enrichFlags.input, "input", "i", "", "catalog snapshot to enrich (default CATALOG_FILE)")
	f.StringVarP(&enrichFlags.output, "output", "o", "", "enriched snapshot path (default ENRICHED_FILE)")
	f.IntVar(&enrichFlags.limit, "limit", 0, "enrich at most this many strains")
	f.StringVar(&enrichFlags.run, "run", "", "run id used for checkpoints (default a new id)")
	f.BoolVar(&enrichFlags.resume, "resume", false, "reuse records of the run that the checkpoint marks complete")
	f.StringVar(&enrichFlags.images, "images-dir", "", "directory for downloaded images (default IMAGES_DIR)")
	rootCmd.AddCommand(enrichCmd)
}

var enrichCmd = &cobra.Command{
	Use:   "enrich [--limit n] [--run id --resume]",
	Short: "Visits every strain's detail page and writes the enriched snapshot.",
	RunE: func(cmd *cobra.Command, args []string) error {
		input := firstNonEmpty(enrichFlags.input, app.Config.GetString("CATALOG_FILE"))
		output := firstNonEmpty(enrichFlags.output, app.Config.GetString("ENRICHED_FILE"))
		run := firstNonEmpty(enrichFlags.run, app.RunID)

		catalog, err := straincrawler.LoadCatalog(input)
		if err != nil {
			return err
		}
		if enrichFlags.images != "" {
			app.SetImagesDir(enrichFlags.images)
		}
		if enrichFlags.limit > 0 {
			app.SetCrawlLimit(enrichFlags.limit)
		}

		opts := straincrawler.EnrichOptions{Run: run}
		if enrichFlags.resume && fileExists(output) {
			previous, err := straincrawler.LoadEnriched(output)
			if err != nil {
				return err
			}
			opts.Previous = previous.EnhancedStrains
		}
		opts.OnRecord = func(done []straincrawler.EnrichedStrain) {
			if len(done)%saveEvery != 0 {
				return
			}
			if err := straincrawler.SaveEnriched(output, straincrawler.NewEnrichedSnapshot(run, done)); err != nil {
				app.Logger.Warn("Incremental save failed: %v", err)
			}
		}

		app.Logger.Info("Enriching %d strains from %s (run %s)", len(catalog.Strains), input, run)
		report, runErr := app.EnrichAll(cmd.Context(), catalog.Strains, opts)
		if runErr != nil && !interrupted(runErr) {
			return runErr
		}
		if err := straincrawler.SaveEnriched(output, straincrawler.NewEnrichedSnapshot(run, report.Records)); err != nil {
			return err
		}
		app.Logger.Info("Saved %d enriched strains to %s", len(report.Records), output)
		app.PrintSummary("Enrichment", report.SummaryRows())
		return runErr
	},
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
