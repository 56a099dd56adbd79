package commands

import (
	"time"

	"github.com/lazuli-inc/straincrawler"
	"github.com/spf13/cobra"
)

var (
	imagesInput string
	uploadDelay time.Duration
	purgeYes    bool
)

func init() {
	uploadCmd.Flags().StringVarP(&imagesInput, "input", "i", "", "snapshot with image urls (default RECONCILED_FILE, then ENRICHED_FILE)")
	uploadCmd.Flags().DurationVar(&uploadDelay, "upload-delay", 0, "pause between uploads (default UPLOAD_DELAY)")
	purgeCmd.Flags().BoolVar(&purgeYes, "yes", false, "confirm deleting every object under GCS_PREFIX")
	imagesCmd.AddCommand(uploadCmd, purgeCmd)
	rootCmd.AddCommand(imagesCmd)
}

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Syncs strain images with the object store.",
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Uploads every strain image that is not in the bucket yet.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("upload-delay") {
			app.SetUploadDelay(uploadDelay)
		}
		snap, err := straincrawler.LoadEnriched(latestSnapshot(imagesInput))
		if err != nil {
			return err
		}
		store, err := app.OpenBucket(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		report, err := app.UploadImages(cmd.Context(), store, snap.EnhancedStrains)
		app.PrintSummary("Image upload", report.SummaryRows())
		return err
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge --yes",
	Short: "Deletes every strain image from the bucket.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !purgeYes {
			app.Logger.Warn("Refusing to purge without --yes")
			return nil
		}
		store, err := app.OpenBucket(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		report, err := app.PurgeImages(cmd.Context(), store)
		app.PrintSummary("Image purge", report.SummaryRows())
		return err
	},
}

// latestSnapshot prefers the explicit path, then the reconciled snapshot, then the enriched one.
func latestSnapshot(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if reconciled := app.Config.GetString("RECONCILED_FILE"); fileExists(reconciled) {
		return reconciled
	}
	return app.Config.GetString("ENRICHED_FILE")
}
