package straincrawler

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ReconcileState is where one record stands in a reconciliation pass.
type ReconcileState int

const (
	StateComplete ReconcileState = iota
	StateMissing
	StateFetched
	StateReconciled
)

func (s ReconcileState) String() string {
	switch s {
	case StateComplete:
		return "complete"
	case StateMissing:
		return "missing"
	case StateFetched:
		return "fetched"
	case StateReconciled:
		return "reconciled"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type ReconcileOutcome struct {
	Name         string
	State        ReconcileState
	FlavorsAdded bool
	HelpsAdded   bool
	Err          error
}

type ReconcileReport struct {
	Records  []EnrichedStrain
	Outcomes []ReconcileOutcome
	Checked  int
	Missing  int
	Updated  int
	Failed   int
	Orphans  []string
	Duration time.Duration
}

// Reconciler revisits records whose flavors or helps_with came back empty.
type Reconciler struct {
	fetcher   Fetcher
	extractor *Extractor
	throttle  *throttle
	logger    logger
	baseUrl   string
}

func NewReconciler(fetcher Fetcher, baseUrl string, delay time.Duration, log logger) *Reconciler {
	return &Reconciler{
		fetcher:   fetcher,
		extractor: NewExtractor(),
		throttle:  newThrottle(delay),
		logger:    log,
		baseUrl:   strings.TrimRight(baseUrl, "/"),
	}
}

// NeedsReconcile reports whether flavors or helps_with is empty.
func NeedsReconcile(rec EnrichedStrain) bool {
	return !rec.IsComplete()
}

// Reconcile refetches only incomplete records and merges what it finds back by name. Complete
// records are returned untouched. A failed fetch leaves the record as it was. When ctx is done,
// no further fetches start and the updates gathered so far are still merged.
func (r *Reconciler) Reconcile(ctx context.Context, records []EnrichedStrain) (*ReconcileReport, error) {
	start := time.Now()
	report := &ReconcileReport{Checked: len(records)}
	var updates []EnrichedStrain
	var runErr error

	for i, rec := range records {
		outcome := ReconcileOutcome{Name: rec.Name, State: StateComplete}
		if !NeedsReconcile(rec) {
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}
		outcome.State = StateMissing
		report.Missing++

		if err := r.throttle.Wait(ctx); err != nil {
			runErr = err
			break
		}
		progress := fmt.Sprintf("[%d/%d]", i+1, len(records))

		doc, err := r.fetch(ctx, rec)
		if err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			report.Failed++
			outcome.State = StateReconciled
			outcome.Err = err
			r.logger.Error("%s %s: %v (failures so far: %d)", progress, rec.Name, err, report.Failed)
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}

		outcome.State = StateFetched
		r.logger.Debug("%s %s: %s", progress, rec.Name, outcome.State)
		updated := r.extractMissing(doc, rec)
		outcome.FlavorsAdded = len(rec.Flavors) == 0 && len(updated.Flavors) > 0
		outcome.HelpsAdded = len(rec.HelpsWith) == 0 && len(updated.HelpsWith) > 0
		outcome.State = StateReconciled
		if outcome.FlavorsAdded || outcome.HelpsAdded {
			updates = append(updates, updated)
			r.logger.Info("%s %s: flavors %d, helps_with %d", progress, rec.Name, len(updated.Flavors), len(updated.HelpsWith))
		} else {
			r.logger.Info("%s %s: nothing new found", progress, rec.Name)
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	merged, orphans := MergeByName(records, updates)
	for _, name := range orphans {
		r.logger.Error("Updated strain %q has no match in the original records", name)
	}
	report.Records = merged
	report.Orphans = orphans
	report.Updated = len(updates) - len(orphans)
	report.Duration = time.Since(start)
	return report, runErr
}

func (r *Reconciler) fetch(ctx context.Context, rec EnrichedStrain) (*Document, error) {
	pageUrl := rec.Url
	if pageUrl == "" {
		pageUrl = StrainUrl(r.baseUrl, rec.Name)
	}
	return r.fetcher.Fetch(ctx, pageUrl)
}

// extractMissing returns rec with its empty target fields re-extracted from doc.
func (r *Reconciler) extractMissing(doc *Document, rec EnrichedStrain) EnrichedStrain {
	updated := rec
	trees := r.embeddedTrees(doc)
	if len(rec.Flavors) == 0 {
		if err := extractField("flavors", func() {
			chain := append([]strategy[[]string]{embeddedFlavors(trees)}, r.extractor.flavorChain(rec.Description)...)
			if v, ok := firstOf[[]string](doc, chain...); ok {
				updated.Flavors = v
			}
		}); err != nil {
			r.logger.Warn("%s: %v", rec.Name, err)
		}
	}
	if len(rec.HelpsWith) == 0 {
		if err := extractField("helps_with", func() {
			if v, ok := firstOf[[]HelpsWith](doc, embeddedHelpsWith(trees), r.extractor.helpsWith); ok {
				updated.HelpsWith = v
			}
		}); err != nil {
			r.logger.Warn("%s: %v", rec.Name, err)
		}
	}
	return updated
}

// embeddedTrees parses every application/json script of the page, skipping broken ones.
func (r *Reconciler) embeddedTrees(doc *Document) []*jsonNode {
	var trees []*jsonNode
	doc.Find(r.extractor.sel.JsonScripts).Each(func(_ int, s *goquery.Selection) {
		tree, err := parseJSONTree(s.Text())
		if err != nil {
			r.logger.Debug("%s: skipping embedded JSON: %v", doc.Url, err)
			return
		}
		trees = append(trees, tree)
	})
	return trees
}

// embeddedFlavors reads the first flavors array found in the already parsed trees.
func embeddedFlavors(trees []*jsonNode) strategy[[]string] {
	return func(*Document) ([]string, bool) {
		for _, tree := range trees {
			if flavors := findFlavors(tree); len(flavors) > 0 {
				return flavors, true
			}
		}
		return nil, false
	}
}

func embeddedHelpsWith(trees []*jsonNode) strategy[[]HelpsWith] {
	return func(*Document) ([]HelpsWith, bool) {
		for _, tree := range trees {
			if helps := findHelpsWith(tree); len(helps) > 0 {
				return helps, true
			}
		}
		return nil, false
	}
}

// MergeByName applies updates onto original, matching strictly by name. Only flavors and
// helps_with are taken from an update, and only where the original had none. Updates whose name
// is not in original are returned as orphans.
func MergeByName(original, updates []EnrichedStrain) ([]EnrichedStrain, []string) {
	merged := make([]EnrichedStrain, len(original))
	copy(merged, original)

	index := make(map[string]int, len(original))
	for i, rec := range original {
		if _, dup := index[rec.Name]; !dup {
			index[rec.Name] = i
		}
	}

	var orphans []string
	for _, u := range updates {
		i, ok := index[u.Name]
		if !ok {
			orphans = append(orphans, u.Name)
			continue
		}
		if len(merged[i].Flavors) == 0 && len(u.Flavors) > 0 {
			merged[i].Flavors = u.Flavors
		}
		if len(merged[i].HelpsWith) == 0 && len(u.HelpsWith) > 0 {
			merged[i].HelpsWith = u.HelpsWith
		}
	}
	return merged, orphans
}

var (
	urlSlugInvalid = regexp.MustCompile(`[^a-z0-9\-]`)
	urlSlugHyphens = regexp.MustCompile(`-+`)
)

// StrainUrl derives the detail page url from a strain name.
func StrainUrl(baseUrl, name string) string {
	slug := strings.ReplaceAll(strings.ToLower(name), " ", "-")
	slug = urlSlugInvalid.ReplaceAllString(slug, "")
	slug = strings.Trim(urlSlugHyphens.ReplaceAllString(slug, "-"), "-")
	return strings.TrimRight(baseUrl, "/") + strainPath + "/" + slug
}

// Reconcile runs a reconciliation pass with the crawler's fetcher and delay.
func (app *Crawler) Reconcile(ctx context.Context, records []EnrichedStrain) (*ReconcileReport, error) {
	r := NewReconciler(app.fetcher, app.engine.BaseUrl, 0, app.Logger)
	r.throttle = app.throttle
	return r.Reconcile(ctx, records)
}
