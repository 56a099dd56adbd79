package straincrawler

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	testBase     = "https://www.leafly.com"
	catalogPage1 = `<html><body><main><div data-testid="strain-list"></div><script>window.__NEXT_DATA__={"props":{"data":{"strains":[
		{"name":"Blue Dream","slug":"blue-dream","phenotype":"Hybrid","thc":18,"subtitle":"aka Azure Haze, Blueberry Haze","averageRating":4.4,"reviewCount":2345,"topEffect":"Relaxed","category":"Hybrid"},
		{"name":"Northern Lights [#5]","slug":"northern-lights","phenotype":"Indica","thc":0,"subtitle":"","averageRating":null,"reviewCount":12.0,"topEffect":"Sleepy","category":"Indica"}
	],"total":2}}}</script></main></body></html>`
	catalogPastEnd = `<html><body><main><div data-testid="strain-list"></div><script>{"strains":[]}</script></main></body></html>`
)

func newTestWalker(t *testing.T, f Fetcher, strict bool) *CatalogWalker {
	return NewCatalogWalker(f, testBase+"/", 0, strict, newLoggerFromZap(zaptest.NewLogger(t)))
}

func TestWalkStopsAtFirstEmptyPage(t *testing.T) {
	f := newFakeFetcher()
	f.pages[testBase+"/strains"] = catalogPage1
	f.pages[testBase+"/strains?page=2"] = catalogPastEnd
	f.pages[testBase+"/strains?page=3"] = catalogPage1

	strains, err := newTestWalker(t, f, true).Walk(context.Background())
	require.NoError(t, err)
	require.Len(t, strains, 2)
	assert.Equal(t, []string{testBase + "/strains", testBase + "/strains?page=2"}, f.calls)

	assert.Equal(t, Strain{
		Name:        "Blue Dream",
		Url:         testBase + "/strains/blue-dream",
		Type:        Hybrid,
		Thc:         "THC 18%",
		Akas:        []string{"Azure Haze", "Blueberry Haze"},
		Rating:      4.4,
		ReviewCount: 2345,
		TopEffect:   "Relaxed",
		Category:    "Hybrid",
	}, strains[0])

	nl := strains[1]
	assert.Equal(t, "Northern Lights [#5]", nl.Name)
	assert.Equal(t, Indica, nl.Type)
	assert.Equal(t, "THC —", nl.Thc)
	assert.Equal(t, []string{}, nl.Akas)
	assert.Zero(t, nl.Rating)
	assert.Equal(t, 12, nl.ReviewCount)
}

func TestWalkKeepsPagesBeforeFetchFailure(t *testing.T) {
	f := newFakeFetcher()
	f.pages[testBase+"/strains"] = catalogPage1

	strains, err := newTestWalker(t, f, true).Walk(context.Background())
	require.Error(t, err)
	assert.True(t, IsFetchError(err))
	assert.Len(t, strains, 2)
}

func TestWalkStopsWhenCancelled(t *testing.T) {
	f := newFakeFetcher()
	f.pages[testBase+"/strains"] = catalogPage1
	f.pages[testBase+"/strains?page=2"] = catalogPage1

	ctx, cancel := context.WithCancel(context.Background())
	f.onCall = func(url string) {
		if url == testBase+"/strains?page=2" {
			cancel()
		}
	}
	strains, err := newTestWalker(t, f, true).Walk(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, strains, 4)
	assert.Len(t, f.calls, 2)
}

func TestParsePageMalformedBlock(t *testing.T) {
	doc := mustDocument(t, `<main><script>{"strains":[{"name":"Broken",</script></main>`)
	_, err := newTestWalker(t, newFakeFetcher(), false).ParsePage(doc)

	var malformed *MalformedInputError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, doc.Url, malformed.URL)
}

func TestParsePageWithoutListingMarkup(t *testing.T) {
	doc := mustDocument(t, `<html><body><p>Access denied</p></body></html>`)

	_, err := newTestWalker(t, newFakeFetcher(), true).ParsePage(doc)
	var malformed *MalformedInputError
	assert.True(t, errors.As(err, &malformed))

	strains, err := newTestWalker(t, newFakeFetcher(), false).ParsePage(doc)
	assert.NoError(t, err)
	assert.Empty(t, strains)
}

func TestParsePageRedesignedListingIsMalformed(t *testing.T) {
	doc := mustDocument(t, `<html><body><main><h1>Find your strain</h1><div class="new-grid"></div></main></body></html>`)

	strains, err := newTestWalker(t, newFakeFetcher(), true).ParsePage(doc)
	var malformed *MalformedInputError
	require.True(t, errors.As(err, &malformed))
	assert.Empty(t, strains)
}

func TestParsePageEmptyListingEndsWalk(t *testing.T) {
	for _, body := range []string{
		`<main><div data-testid="strain-list"></div></main>`,
		`<main><div id="strain-list"></div></main>`,
		`<main><p data-testid="no-results">No strains found</p></main>`,
	} {
		strains, err := newTestWalker(t, newFakeFetcher(), true).ParsePage(mustDocument(t, body))
		assert.NoError(t, err, body)
		assert.Empty(t, strains, body)
	}
}

func TestParsePageCardFallback(t *testing.T) {
	doc := mustDocument(t, `<main>
		<div class="relative shadow-low rounded">
			<a data-testid="strain-card" href="/strains/gelato"></a>
			<div class="font-bold text-sm">Gelato</div>
			<div class="text-xs text-grey">aka Larry Bird</div>
			<span class="bg-leafly-white text-xs">Indica</span>
			<div class="text-xs">THC 22%</div>
		</div>
		<a data-testid="strain-card" href="https://www.leafly.com/strains/sour-diesel"></a>
	</main>`)

	strains, err := newTestWalker(t, newFakeFetcher(), true).ParsePage(doc)
	require.NoError(t, err)
	require.Len(t, strains, 2)

	assert.Equal(t, Strain{
		Name: "Gelato",
		Url:  testBase + "/strains/gelato",
		Type: Indica,
		Thc:  "THC 22%",
		Akas: []string{"Larry Bird"},
	}, strains[0])
	assert.Equal(t, "Sour Diesel", strains[1].Name)
	assert.Equal(t, Hybrid, strains[1].Type)
	assert.Equal(t, "THC —", strains[1].Thc)
}

func TestCatalogBlockWithBracketsInStrings(t *testing.T) {
	items, found, err := extractCatalogBlock(`x "strains":[{"name":"A ] [ B","slug":"a"}] trailing ]`)
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, items, 1)
	assert.Equal(t, "A ] [ B", items[0].Name)
}

func TestPageUrl(t *testing.T) {
	w := newTestWalker(t, newFakeFetcher(), true)
	assert.Equal(t, testBase+"/strains", w.PageUrl(1))
	assert.Equal(t, testBase+"/strains?page=7", w.PageUrl(7))
}

func TestFormatThc(t *testing.T) {
	assert.Equal(t, "THC 18%", formatThc(json.Number("18")))
	assert.Equal(t, "THC 20.5%", formatThc(json.Number("20.5")))
	assert.Equal(t, "THC —", formatThc(json.Number("0")))
	assert.Equal(t, "THC —", formatThc(""))
}

func TestParseAkas(t *testing.T) {
	assert.Equal(t, []string{"Azure Haze", "Blueberry Haze"}, parseAkas("aka Azure Haze, Blueberry Haze"))
	assert.Equal(t, []string{}, parseAkas("Azure Haze"))
	assert.Equal(t, []string{}, parseAkas(""))
	assert.Equal(t, []string{"GSC"}, parseAkas("  aka GSC, ,"))
}

func TestStrainTypeDefaultsToHybrid(t *testing.T) {
	var s Strain
	require.NoError(t, json.Unmarshal([]byte(`{"name":"X","type":"ruderalis"}`), &s))
	assert.Equal(t, Hybrid, s.Type)
	require.NoError(t, json.Unmarshal([]byte(`{"name":"X","type":null}`), &s))
	assert.Equal(t, Hybrid, s.Type)
	assert.Equal(t, Sativa, NormalizeStrainType(" SATIVA "))
}

func TestScrapePageDumpsMalformedPage(t *testing.T) {
	f := newFakeFetcher()
	f.pages[testBase+"/strains?page=2"] = `<html><body><p>Access denied</p></body></html>`
	w := newTestWalker(t, f, true)
	w.dumpDir = t.TempDir()

	_, err := w.ScrapePage(context.Background(), 2)
	require.Error(t, err)

	entries, err := os.ReadDir(w.dumpDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "_www.leafly.com_strains_page_2.html"))
	body, err := os.ReadFile(filepath.Join(w.dumpDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(body), "Access denied")
	assert.Contains(t, string(body), "neither strains block nor listing markup found")
}
