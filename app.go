package straincrawler

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/compute/metadata"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"
)

type Crawler struct {
	Config     *configService
	Name       string
	RunID      string
	Logger     *defaultLogger
	engine     *Engine
	fetcher    Fetcher
	throttle   *throttle
	checkpoint Checkpoint
	archive    *bigQueryArchive
	startTime  time.Time
}

// NewCrawler builds a crawler from configuration. Fields set on the optional engine override the
// configured values.
func NewCrawler(engines ...Engine) *Crawler {
	config := newConfig()
	engine := engineFromConfig(config)
	if len(engines) > 0 {
		eng := engines[0]
		overrideEngineDefaults(&engine, &eng)
	}

	name := config.GetString("APP_NAME")
	crawler := &Crawler{
		Config:     config,
		Name:       name,
		RunID:      uuid.NewString(),
		Logger:     newDefaultLogger(name, config.GetString("LOG_LEVEL")),
		engine:     &engine,
		checkpoint: nopCheckpoint{},
	}
	crawler.fetcher = newHttpFetcher(engine.BaseUrl, engine.UserAgent, engine.Timeout, crawler.Logger)
	crawler.throttle = newThrottle(engine.RequestDelay)
	return crawler
}

// Start prepares the remote collaborators of a run: cloud logging, robots.txt, the checkpoint
// store and the HTML archive. Only the robots.txt verdict and a configured backend that cannot
// be reached are errors.
func (app *Crawler) Start(ctx context.Context) error {
	app.startTime = time.Now()
	if app.Config.GetBool("CLOUD_LOGGING") {
		app.enableCloudLogging(ctx)
	}
	app.Logger.Info("Crawler started! 🚀 run %s", app.RunID)

	if err := app.bootstrap(ctx); err != nil {
		return err
	}

	checkpoint, err := app.openCheckpoint(ctx)
	if err != nil {
		return eris.Wrap(err, "failed to open checkpoint store")
	}
	app.checkpoint = checkpoint

	if isTrue(app.engine.ArchiveHtml) {
		archive, err := app.openArchive(ctx)
		if err != nil {
			app.Logger.Warn("HTML archive disabled: %v", err)
		} else {
			app.archive = archive
			if hf, ok := app.fetcher.(*httpFetcher); ok {
				hf.archive = archive
			}
		}
	}
	return nil
}

func (app *Crawler) enableCloudLogging(ctx context.Context) {
	projectID, err := app.projectID()
	if err != nil {
		app.Logger.Warn("Cloud logging disabled: %v", err)
		return
	}
	if err := app.Logger.attachCloudLogging(ctx, projectID, app.Name, app.clientOptions()...); err != nil {
		app.Logger.Warn("Cloud logging disabled: %v", err)
	}
}

// Stop releases what Start opened. It is safe to call after a failed Start, and more than once.
func (app *Crawler) Stop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			app.Logger.Error("Recovered in Stop: %v", r)
		}
	}()
	if app.checkpoint != nil {
		if err := app.checkpoint.Close(ctx); err != nil {
			app.Logger.Warn("Failed to close checkpoint store: %v", err)
		}
		app.checkpoint = nil
	}
	if app.archive != nil {
		if err := app.archive.Close(); err != nil {
			app.Logger.Warn("Failed to close HTML archive: %v", err)
		}
		app.archive = nil
	}
	if !app.startTime.IsZero() {
		app.Logger.Info("Crawler stopped in ⚡ %v", time.Since(app.startTime))
		app.startTime = time.Time{}
	}
	app.Logger.Close()
}

// projectID prefers PROJECT_ID and falls back to the metadata server when running on GCP.
func (app *Crawler) projectID() (string, error) {
	if id := app.Config.EnvString("PROJECT_ID"); id != "" {
		return id, nil
	}
	id, err := metadata.ProjectID()
	if err != nil {
		return "", eris.Wrap(err, "PROJECT_ID is not set and the metadata server is unavailable")
	}
	return id, nil
}

func (app *Crawler) clientOptions() []option.ClientOption {
	if path := app.Config.EnvString("GCP_CREDENTIALS_PATH"); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// OpenBucket connects to the configured image bucket. The caller closes it.
func (app *Crawler) OpenBucket(ctx context.Context) (ObjectStore, error) {
	store, err := newGcsStore(ctx, app.engine.Bucket, app.clientOptions()...)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Engine returns a copy of the effective settings.
func (app *Crawler) Engine() Engine {
	return *app.engine
}

// printSummary renders rows as a two-column table on w and mirrors each row to the summary log.
func (app *Crawler) printSummary(w io.Writer, title string, rows [][2]interface{}) {
	if w == nil {
		w = os.Stdout
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	for _, row := range rows {
		t.AppendRow(table.Row{row[0], row[1]})
		app.Logger.Summary("%s: %v", row[0], row[1])
	}
	t.Render()
}

// PrintSummary is the exported form used by the command line.
func (app *Crawler) PrintSummary(title string, rows [][2]interface{}) {
	app.printSummary(os.Stdout, title, rows)
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
