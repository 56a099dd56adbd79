package straincrawler

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Checkpoint remembers which strains of a run were enriched, so an interrupted run can resume.
type Checkpoint interface {
	Completed(ctx context.Context, run string) (map[string]bool, error)
	MarkComplete(ctx context.Context, run, name string) error
	MarkError(ctx context.Context, run, name string, cause error) error
	Close(ctx context.Context) error
}

type nopCheckpoint struct{}

func (nopCheckpoint) Completed(context.Context, string) (map[string]bool, error) {
	return map[string]bool{}, nil
}
func (nopCheckpoint) MarkComplete(context.Context, string, string) error     { return nil }
func (nopCheckpoint) MarkError(context.Context, string, string, error) error { return nil }
func (nopCheckpoint) Close(context.Context) error                            { return nil }

// openCheckpoint builds the backend named by CHECKPOINT_DRIVER.
func (app *Crawler) openCheckpoint(ctx context.Context) (Checkpoint, error) {
	driver := strings.ToLower(app.Config.GetString("CHECKPOINT_DRIVER"))
	switch driver {
	case "", "none":
		return nopCheckpoint{}, nil
	case "mongo":
		uri := fmt.Sprintf("mongodb://%s:%s@%s:%s",
			app.Config.EnvString("MONGO_USERNAME"),
			app.Config.EnvString("MONGO_PASSWORD"),
			app.Config.EnvString("MONGO_HOST"),
			app.Config.EnvString("MONGO_PORT"),
		)
		return newMongoCheckpoint(ctx, uri, app.Name)
	case "datastore":
		projectID, err := app.projectID()
		if err != nil {
			return nil, err
		}
		return newDatastoreCheckpoint(ctx, projectID, app.Name, app.clientOptions()...)
	default:
		return nil, eris.Errorf("unknown CHECKPOINT_DRIVER %q", driver)
	}
}

func (app *Crawler) markCheckpointComplete(ctx context.Context, run, name string) {
	if run == "" {
		return
	}
	if err := app.checkpoint.MarkComplete(ctx, run, name); err != nil {
		app.Logger.Warn("Could not mark %s as complete: %v", name, err)
	}
}

func (app *Crawler) markCheckpointError(ctx context.Context, run, name string, cause error) {
	if run == "" {
		return
	}
	if err := app.checkpoint.MarkError(ctx, run, name, cause); err != nil {
		app.Logger.Warn("Could not mark %s as error: %v", name, err)
	}
}
