package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lazuli-inc/straincrawler"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var app *straincrawler.Crawler

var rootFlags struct {
	timeout      time.Duration
	requestDelay time.Duration
}

func init() {
	f := rootCmd.PersistentFlags()
	f.DurationVar(&rootFlags.timeout, "timeout", 0, "per-request timeout (default REQUEST_TIMEOUT)")
	f.DurationVar(&rootFlags.requestDelay, "request-delay", 0, "pause between page fetches, 0 disables it (default REQUEST_DELAY)")
}

var rootCmd = &cobra.Command{
	Use:           "straincrawler",
	Short:         "straincrawler harvests the public strain catalog and its detail pages.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		app = straincrawler.NewCrawler()
		if cmd.Flags().Changed("timeout") {
			app.SetTimeout(rootFlags.timeout)
		}
		if cmd.Flags().Changed("request-delay") {
			app.SetRequestDelay(rootFlags.requestDelay)
		}
		return app.Start(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			app.Stop(context.Background())
		}
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if app != nil && !errors.Is(err, context.Canceled) {
			app.Logger.Error("%v", err)
		}
		fmt.Fprintln(os.Stderr, eris.ToString(err, false))
		// PersistentPostRun is skipped when RunE fails.
		if app != nil {
			app.Stop(context.Background())
		}
		os.Exit(1)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// interrupted reports whether err came from SIGINT or SIGTERM.
func interrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
