package straincrawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const imageCacheControl = "max-age=31536000"

type UploadReport struct {
	Total     int
	Processed int
	Uploaded  int
	Skipped   int
	NoImage   int
	Errors    int
	Duration  time.Duration
}

type PurgeReport struct {
	Found    int
	Deleted  int
	Errors   int
	Duration time.Duration
}

// UploadImages copies each strain's image into store under its canonical key. Existing objects
// are skipped and download failures are counted. A store failure aborts the batch; objects
// already uploaded stay.
func (app *Crawler) UploadImages(ctx context.Context, store ObjectStore, records []EnrichedStrain) (*UploadReport, error) {
	start := time.Now()
	report := &UploadReport{Total: len(records)}
	pace := newThrottle(app.engine.UploadDelay)
	defer func() { report.Duration = time.Since(start) }()

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if rec.ImageUrl == nil || *rec.ImageUrl == "" {
			report.NoImage++
			continue
		}
		report.Processed++
		progress := fmt.Sprintf("[%d/%d]", i+1, len(records))
		key := ImageKey(app.engine.BucketPrefix, rec.Name)

		exists, err := store.Head(ctx, key)
		if err != nil {
			return report, &PersistenceError{Op: "head " + key, Committed: report.Uploaded, Err: err}
		}
		if exists {
			report.Skipped++
			app.Logger.Debug("%s %s already uploaded", progress, key)
			continue
		}

		if err := pace.Wait(ctx); err != nil {
			return report, err
		}
		imageUrl, err := NormalizeImageURL(*rec.ImageUrl, app.engine.ImageWidth)
		if err != nil {
			report.Errors++
			app.Logger.Error("%s %s: %v", progress, rec.Name, err)
			continue
		}
		data, _, err := app.fetcher.FetchBytes(ctx, imageUrl)
		if err != nil {
			report.Errors++
			app.Logger.Error("%s %s: %v (errors so far: %d)", progress, rec.Name, err, report.Errors)
			continue
		}

		if err := store.Put(ctx, key, data, imageContentType(data), imageCacheControl); err != nil {
			return report, &PersistenceError{Op: "put " + key, Committed: report.Uploaded, Err: err}
		}
		report.Uploaded++
		app.Logger.Info("%s uploaded %s (%d bytes)", progress, key, len(data))
	}
	return report, nil
}

// imageContentType sniffs the bytes, falling back to image/png for anything that is not an image.
func imageContentType(data []byte) string {
	mt := mimetype.Detect(data)
	if strings.HasPrefix(mt.String(), "image/") {
		return mt.String()
	}
	return "image/png"
}

// PurgeImages deletes every object under the image prefix, MaxDeleteBatch keys at a time.
func (app *Crawler) PurgeImages(ctx context.Context, store ObjectStore) (*PurgeReport, error) {
	start := time.Now()
	report := &PurgeReport{}
	defer func() { report.Duration = time.Since(start) }()

	keys, err := store.List(ctx, app.engine.BucketPrefix)
	if err != nil {
		return report, &PersistenceError{Op: "list " + app.engine.BucketPrefix, Err: err}
	}
	report.Found = len(keys)
	if len(keys) == 0 {
		app.Logger.Info("No strain images found under %s", app.engine.BucketPrefix)
		return report, nil
	}

	for lo := 0; lo < len(keys); lo += MaxDeleteBatch {
		hi := min(lo+MaxDeleteBatch, len(keys))
		res, err := store.DeleteBatch(ctx, keys[lo:hi])
		report.Deleted += res.Deleted
		report.Errors += len(res.Errors)
		for _, f := range res.Errors {
			app.Logger.Error("Failed to delete %s: %v", f.Key, f.Err)
		}
		if err != nil {
			return report, &PersistenceError{Op: "delete batch", Committed: report.Deleted, Err: err}
		}
		app.Logger.Info("Deleted %d/%d objects", report.Deleted, report.Found)
	}
	return report, nil
}
