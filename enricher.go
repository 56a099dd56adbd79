package straincrawler

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Enricher turns one Strain into an EnrichedStrain by visiting its detail page.
type Enricher struct {
	fetcher   Fetcher
	extractor *Extractor
	images    *imageDownloader
	logger    logger
}

func NewEnricher(fetcher Fetcher, imagesDir string, log logger) *Enricher {
	return &Enricher{
		fetcher:   fetcher,
		extractor: NewExtractor(),
		images:    &imageDownloader{dir: imagesDir, fetcher: fetcher},
		logger:    log,
	}
}

// Enrich never fails the whole record for a field or image problem. A missing url or a failed
// fetch returns the base record, in enriched shape, together with the error.
func (e *Enricher) Enrich(ctx context.Context, base Strain) (EnrichedStrain, error) {
	if base.Url == "" {
		return newEnrichedStrain(base), ErrNoURL
	}

	doc, err := e.fetcher.Fetch(ctx, base.Url)
	if err != nil {
		return newEnrichedStrain(base), err
	}

	rec, fieldErrs := e.extractor.ExtractWithErrors(doc, base)
	for _, fe := range fieldErrs {
		e.logger.Warn("%s: %v", base.Name, fe)
	}

	if rec.ImageUrl != nil {
		path, err := e.images.Save(ctx, base.Name, *rec.ImageUrl)
		if err != nil {
			e.logger.Warn("%s: image download failed: %v", base.Name, err)
			rec.ImageUrl = nil
		} else {
			rec.ImagePath = &path
		}
	}
	return rec, nil
}

type EnrichOptions struct {
	// Run keys checkpoint entries; empty disables checkpointing.
	Run string
	// Previous holds records from an earlier, interrupted run. Strains the checkpoint marks
	// complete are taken from here instead of being fetched again.
	Previous []EnrichedStrain
	// OnRecord is called after each record, for incremental persistence.
	OnRecord func(done []EnrichedStrain)
}

type EnrichReport struct {
	Records   []EnrichedStrain
	Total     int
	Processed int
	Enriched  int
	Failed    int
	Resumed   int
	Duration  time.Duration
}

// EnrichAll enriches strains one at a time, pausing between fetches. Per-record failures are
// counted and logged, never returned. On cancellation the records gathered so far are returned
// with the context error.
func (app *Crawler) EnrichAll(ctx context.Context, strains []Strain, opts EnrichOptions) (*EnrichReport, error) {
	start := time.Now()
	enricher := NewEnricher(app.fetcher, app.engine.ImagesDir, app.Logger)

	if app.engine.DevCrawlLimit > 0 && len(strains) > app.engine.DevCrawlLimit {
		app.Logger.Info("Dev crawl limit: enriching %d of %d strains", app.engine.DevCrawlLimit, len(strains))
		strains = strains[:app.engine.DevCrawlLimit]
	}
	report := &EnrichReport{Total: len(strains), Records: make([]EnrichedStrain, 0, len(strains))}

	resumable, err := app.resumable(ctx, opts)
	if err != nil {
		return report, err
	}

	for i, strain := range strains {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
		progress := fmt.Sprintf("[%d/%d]", i+1, len(strains))

		if prev, ok := resumable[strain.Name]; ok {
			report.Records = append(report.Records, prev)
			report.Resumed++
			report.Processed++
			app.Logger.Debug("%s %s already enriched, skipping", progress, strain.Name)
			continue
		}

		if err := app.throttle.Wait(ctx); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}

		rec, err := enricher.Enrich(ctx, strain)
		if err != nil && errors.Is(err, context.Canceled) {
			report.Duration = time.Since(start)
			return report, err
		}
		report.Processed++
		if err != nil {
			report.Failed++
			app.Logger.Error("%s %s: %v (errors so far: %d)", progress, strain.Name, err, report.Failed)
			app.markCheckpointError(ctx, opts.Run, strain.Name, err)
		} else {
			report.Enriched++
			app.Logger.Info("%s %s: %d effects, %d flavors, %d terpenes (errors so far: %d)",
				progress, strain.Name, len(rec.PositiveEffects)+len(rec.NegativeEffects),
				len(rec.Flavors), len(rec.DetailedTerpenes), report.Failed)
			app.markCheckpointComplete(ctx, opts.Run, strain.Name)
		}
		report.Records = append(report.Records, rec)
		if opts.OnRecord != nil {
			opts.OnRecord(report.Records)
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}

// resumable returns the previous records whose names the checkpoint marks complete.
func (app *Crawler) resumable(ctx context.Context, opts EnrichOptions) (map[string]EnrichedStrain, error) {
	out := map[string]EnrichedStrain{}
	if opts.Run == "" || len(opts.Previous) == 0 {
		return out, nil
	}
	done, err := app.checkpoint.Completed(ctx, opts.Run)
	if err != nil {
		return nil, &PersistenceError{Op: "read checkpoint", Err: err}
	}
	for _, rec := range opts.Previous {
		if done[rec.Name] {
			out[rec.Name] = rec
		}
	}
	if len(out) > 0 {
		app.Logger.Info("Resuming run %s: %d strains already enriched", opts.Run, len(out))
	}
	return out, nil
}
