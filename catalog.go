package straincrawler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	strainPath          = "/strains"
	catalogBlockMarker  = `"strains":[`
	catalogCardSelector = `a[data-testid="strain-card"]`
	// catalogContainer is present on every listing page, past-the-end pages included.
	catalogContainer = `[data-testid="strain-list"], #strain-list, [data-testid="pagination"], [data-testid="no-results"]`
)

// catalogItem is one element of the listing page's embedded "strains" array.
type catalogItem struct {
	Name          string      `json:"name"`
	Slug          string      `json:"slug"`
	Phenotype     string      `json:"phenotype"`
	Thc           json.Number `json:"thc"`
	Subtitle      string      `json:"subtitle"`
	AverageRating *float64    `json:"averageRating"`
	ReviewCount   json.Number `json:"reviewCount"`
	TopEffect     string      `json:"topEffect"`
	Category      string      `json:"category"`
}

// CatalogWalker pages through the strain listing until a page yields no strains.
type CatalogWalker struct {
	fetcher  Fetcher
	throttle *throttle
	logger   logger
	baseUrl  string
	strict   bool
	// dumpDir receives the body of pages that fail to parse. Empty disables dumps.
	dumpDir  string
}

func NewCatalogWalker(fetcher Fetcher, baseUrl string, delay time.Duration, strict bool, log logger) *CatalogWalker {
	return &CatalogWalker{
		fetcher:  fetcher,
		throttle: newThrottle(delay),
		logger:   log,
		baseUrl:  strings.TrimRight(baseUrl, "/"),
		strict:   strict,
	}
}

// PageUrl returns the listing url for a 1-based page number.
func (w *CatalogWalker) PageUrl(page int) string {
	if page <= 1 {
		return w.baseUrl + strainPath
	}
	return fmt.Sprintf("%s%s?page=%d", w.baseUrl, strainPath, page)
}

// Walk collects strains page by page. It stops at the first empty page, on a fetch or parse
// error, or when ctx is done; in every case the strains gathered so far are returned.
func (w *CatalogWalker) Walk(ctx context.Context) ([]Strain, error) {
	var strains []Strain
	for page := 1; ; page++ {
		if err := w.throttle.Wait(ctx); err != nil {
			return strains, err
		}
		w.logger.Info("Scraping page %d", page)

		pageStrains, err := w.ScrapePage(ctx, page)
		if err != nil {
			w.logger.Error("Page %d: %v", page, err)
			return strains, err
		}
		if len(pageStrains) == 0 {
			w.logger.Info("No strains found on page %d. Scraping complete!", page)
			return strains, nil
		}
		strains = append(strains, pageStrains...)
		w.logger.Info("Page %d complete. Found %d strains. Total so far: %d", page, len(pageStrains), len(strains))
	}
}

// ScrapePage fetches and parses one listing page.
func (w *CatalogWalker) ScrapePage(ctx context.Context, page int) ([]Strain, error) {
	pageUrl := w.PageUrl(page)
	doc, err := w.fetcher.Fetch(ctx, pageUrl)
	if err != nil {
		return nil, err
	}
	strains, err := w.ParsePage(doc)
	if err != nil && w.dumpDir != "" {
		if path, dumpErr := writePageDump(w.dumpDir, doc.Url, doc.Raw, err.Error()); dumpErr != nil {
			w.logger.Warn("Could not save page %s: %v", doc.Url, dumpErr)
		} else {
			w.logger.Info("Saved unparsed page to %s", path)
		}
	}
	return strains, err
}

// ParsePage reads the embedded data block, falling back to the visible cards.
// A block that is present but undecodable is always malformed. A page with neither a block nor
// cards is the end of the catalog only if it still looks like a listing page, unless the walker
// is lenient.
func (w *CatalogWalker) ParsePage(doc *Document) ([]Strain, error) {
	items, found, err := extractCatalogBlock(doc.Raw)
	if err != nil {
		return nil, &MalformedInputError{URL: doc.Url, Reason: "undecodable strains block", Err: err}
	}
	if found {
		return w.fromItems(items), nil
	}

	cards := w.fromCards(doc)
	if len(cards) > 0 {
		w.logger.Warn("%s: no strains block, parsed %d cards", doc.Url, len(cards))
		return cards, nil
	}
	if w.strict && doc.Find(catalogContainer).Length() == 0 {
		return nil, &MalformedInputError{URL: doc.Url, Reason: "neither strains block nor listing markup found"}
	}
	return nil, nil
}

// extractCatalogBlock decodes the array that follows the "strains":[ marker. The decoder stops at
// the end of the array, so brackets inside strings are handled correctly.
func extractCatalogBlock(raw string) ([]catalogItem, bool, error) {
	idx := strings.Index(raw, catalogBlockMarker)
	if idx < 0 {
		return nil, false, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw[idx+len(catalogBlockMarker)-1:]))
	dec.UseNumber()
	var items []catalogItem
	if err := dec.Decode(&items); err != nil {
		return nil, true, err
	}
	return items, true, nil
}

func (w *CatalogWalker) fromItems(items []catalogItem) []Strain {
	strains := make([]Strain, 0, len(items))
	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		s := Strain{
			Name:      name,
			Url:       w.baseUrl + strainPath + "/" + it.Slug,
			Type:      NormalizeStrainType(it.Phenotype),
			Thc:       formatThc(it.Thc),
			Akas:      parseAkas(it.Subtitle),
			TopEffect: it.TopEffect,
			Category:  it.Category,
		}
		if it.AverageRating != nil {
			s.Rating = *it.AverageRating
		}
		if n, err := it.ReviewCount.Float64(); err == nil {
			s.ReviewCount = int(n)
		}
		if it.Slug == "" {
			s.Url = ""
		}
		strains = append(strains, s)
	}
	return strains
}

// formatThc keeps the source number text: 18 gives "THC 18%". Missing or zero gives "THC —".
func formatThc(n json.Number) string {
	if n == "" {
		return "THC —"
	}
	if f, err := n.Float64(); err != nil || f == 0 {
		return "THC —"
	}
	return fmt.Sprintf("THC %s%%", n.String())
}

// parseAkas splits "aka Blue Dream, Azure Haze" into its names.
func parseAkas(subtitle string) []string {
	akas := []string{}
	subtitle = strings.TrimSpace(subtitle)
	if !strings.HasPrefix(subtitle, "aka ") {
		return akas
	}
	for _, aka := range strings.Split(subtitle[len("aka "):], ",") {
		if aka = strings.TrimSpace(aka); aka != "" {
			akas = append(akas, aka)
		}
	}
	return akas
}

// fromCards parses the visible strain cards.
func (w *CatalogWalker) fromCards(doc *Document) []Strain {
	var strains []Strain
	doc.Find(catalogCardSelector).Each(func(_ int, card *goquery.Selection) {
		s := Strain{Akas: []string{}, Type: Hybrid, Thc: "THC —"}

		if href, ok := card.Attr("href"); ok {
			s.Url = w.absoluteUrl(href)
			s.Name = strainNameFromHref(href)
		}

		container := card
		if parent := card.ParentsFiltered(`div[class*="shadow-low"]`).First(); parent.Length() > 0 {
			container = parent
		}
		if name := normalizedText(container.Find("div.font-bold.text-sm").First()); name != "" {
			s.Name = name
		}
		if aka := normalizedText(container.Find("div.text-xs.text-grey").First()); aka != "" {
			s.Akas = parseAkas(aka)
		}
		if typ := normalizedText(container.Find(`[class*="bg-leafly-white"]`).First()); typ != "" {
			s.Type = NormalizeStrainType(typ)
		}
		container.Find(".text-xs").EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if text := normalizedText(el); strings.HasPrefix(text, "THC") {
				s.Thc = text
				return false
			}
			return true
		})

		if s.Name != "" {
			strains = append(strains, s)
		}
	})
	return strains
}

func (w *CatalogWalker) absoluteUrl(href string) string {
	base, err := url.Parse(w.baseUrl + "/")
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// Catalog walks the listing with the crawler's fetcher and delay.
func (app *Crawler) Catalog(ctx context.Context) ([]Strain, error) {
	walker := NewCatalogWalker(app.fetcher, app.engine.BaseUrl, 0, isTrue(app.engine.StrictCatalog), app.Logger)
	walker.throttle = app.throttle
	walker.dumpDir = app.engine.PageDumpDir
	if walker.dumpDir == "" {
		walker.dumpDir = filepath.Join("storage", "logs", app.Name, "html")
	}
	return walker.Walk(ctx)
}
