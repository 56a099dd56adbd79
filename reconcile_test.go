package straincrawler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func completeRecord(name string) EnrichedStrain {
	rec := newEnrichedStrain(Strain{Name: name, Url: testBase + "/strains/" + name, Type: Sativa, Thc: "THC 20%"})
	rec.Flavors = []string{"Citrus"}
	rec.HelpsWith = []HelpsWith{{Condition: "Stress", Percentage: 40}}
	rec.PositiveEffects = []string{"Energetic"}
	rec.Description = "A bright sativa."
	return rec
}

func missingRecord(name string) EnrichedStrain {
	rec := newEnrichedStrain(Strain{Name: name, Url: testBase + "/strains/" + name, Type: Indica, Thc: "THC 15%"})
	rec.PositiveEffects = []string{"Sleepy"}
	rec.DetailedTerpenes = []Terpene{{Name: "Myrcene"}}
	rec.Description = "Tastes of grape and pine."
	return rec
}

func newTestReconciler(t *testing.T, f Fetcher) *Reconciler {
	return NewReconciler(f, testBase, 0, newLoggerFromZap(zaptest.NewLogger(t)))
}

func TestReconcileLeavesCompleteRecordsUntouched(t *testing.T) {
	f := newFakeFetcher()
	records := []EnrichedStrain{completeRecord("jack-herer"), completeRecord("durban")}
	before, err := json.Marshal(records)
	require.NoError(t, err)

	report, err := newTestReconciler(t, f).Reconcile(context.Background(), records)
	require.NoError(t, err)

	after, err := json.Marshal(report.Records)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
	assert.Equal(t, string(before), string(after))
	assert.Zero(t, f.callCount())
	for _, o := range report.Outcomes {
		assert.Equal(t, StateComplete, o.State)
	}
}

func TestReconcileFillsOnlyEmptyFields(t *testing.T) {
	f := newFakeFetcher()
	f.pages[testBase+"/strains/granddaddy"] = `<html><body>
		<script type="application/json">{"props":{"strain":{"name":"x","flavors":["grape",{"name":"berry"}],"medical":[{"name":"Insomnia","percent":"61%"},{"condition":"Pain","percentage":150}]}}}</script>
		<div id="helps-with-section"><li class="mb-xl"><a class="font-bold underline">Stress</a><span class="font-bold">12%</span></li></div>
	</body></html>`

	original := missingRecord("granddaddy")
	records := []EnrichedStrain{completeRecord("jack-herer"), original}

	report, err := newTestReconciler(t, f).Reconcile(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Missing)
	assert.Equal(t, 1, report.Updated)

	got := report.Records[1]
	assert.Equal(t, []string{"Grape", "Berry"}, got.Flavors)
	assert.Equal(t, []HelpsWith{{Condition: "Insomnia", Percentage: 61}, {Condition: "Pain", Percentage: 100}}, got.HelpsWith)

	// every other field is untouched
	got.Flavors, got.HelpsWith = original.Flavors, original.HelpsWith
	assert.Equal(t, original, got)

	assert.Equal(t, StateReconciled, report.Outcomes[1].State)
	assert.True(t, report.Outcomes[1].FlavorsAdded)
	assert.True(t, report.Outcomes[1].HelpsAdded)
	// the input slice is not modified
	assert.Empty(t, records[1].Flavors)
}

func TestReconcileFallsBackToMarkupAndKeywords(t *testing.T) {
	f := newFakeFetcher()
	f.pages[testBase+"/strains/granddaddy"] = `<html><body>
		<script type="application/json">not json</script>
		<div id="helps-with-section"><li class="mb-xl"><a class="font-bold underline">Stress</a><span class="font-bold">12%</span></li></div>
	</body></html>`

	report, err := newTestReconciler(t, f).Reconcile(context.Background(), []EnrichedStrain{missingRecord("granddaddy")})
	require.NoError(t, err)
	got := report.Records[0]
	assert.Equal(t, []string{"Pine", "Grape"}, got.Flavors)
	assert.Equal(t, []HelpsWith{{Condition: "Stress", Percentage: 12}}, got.HelpsWith)
}

func TestReconcileFetchFailureLeavesRecord(t *testing.T) {
	f := newFakeFetcher()
	original := missingRecord("gone")
	report, err := newTestReconciler(t, f).Reconcile(context.Background(), []EnrichedStrain{original})
	require.NoError(t, err)

	assert.Equal(t, original, report.Records[0])
	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Updated)
	assert.Equal(t, StateReconciled, report.Outcomes[0].State)
	assert.True(t, IsFetchError(report.Outcomes[0].Err))
}

func TestReconcileDerivesUrlFromName(t *testing.T) {
	f := newFakeFetcher()
	rec := missingRecord("Girl Scout Cookies #2")
	rec.Url = ""
	_, err := newTestReconciler(t, f).Reconcile(context.Background(), []EnrichedStrain{rec})
	require.NoError(t, err)
	assert.Equal(t, []string{testBase + "/strains/girl-scout-cookies-2"}, f.calls)
}

func TestReconcileCancelledKeepsGatheredUpdates(t *testing.T) {
	f := newFakeFetcher()
	f.pages[testBase+"/strains/first"] = `<div id="strain-flavors-section"><p data-testid="item-name">lime</p></div>`
	ctx, cancel := context.WithCancel(context.Background())
	f.onCall = func(string) { cancel() }

	records := []EnrichedStrain{missingRecord("first"), missingRecord("second")}
	report, err := newTestReconciler(t, f).Reconcile(ctx, records)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"Lime"}, report.Records[0].Flavors)
	assert.Empty(t, report.Records[1].Flavors)
	assert.Equal(t, 1, f.callCount())
}

func TestMergeByName(t *testing.T) {
	original := []EnrichedStrain{missingRecord("a"), completeRecord("b")}
	update := missingRecord("a")
	update.Flavors = []string{"Lime"}
	update.PositiveEffects = []string{"ignored"}
	stranger := missingRecord("zeta")
	stranger.Flavors = []string{"Mint"}
	overwrite := completeRecord("b")
	overwrite.Flavors = []string{"Other"}

	merged, orphans := MergeByName(original, []EnrichedStrain{update, stranger, overwrite})
	assert.Equal(t, []string{"zeta"}, orphans)
	assert.Len(t, merged, 2)
	assert.Equal(t, []string{"Lime"}, merged[0].Flavors)
	assert.Equal(t, []string{"Sleepy"}, merged[0].PositiveEffects)
	assert.Equal(t, []string{"Citrus"}, merged[1].Flavors)
	assert.Empty(t, original[0].Flavors)
}

func TestNeedsReconcile(t *testing.T) {
	assert.False(t, NeedsReconcile(completeRecord("a")))
	assert.True(t, NeedsReconcile(missingRecord("a")))
	half := completeRecord("a")
	half.HelpsWith = []HelpsWith{}
	assert.True(t, NeedsReconcile(half))
}

func TestStrainUrl(t *testing.T) {
	assert.Equal(t, testBase+"/strains/blue-dream", StrainUrl(testBase+"/", "Blue Dream"))
	assert.Equal(t, testBase+"/strains/ak-47", StrainUrl(testBase, "AK-47"))
	assert.Equal(t, testBase+"/strains/girl-scout-cookies-2", StrainUrl(testBase, "Girl Scout Cookies #2"))
}

func TestJSONTreeVisitor(t *testing.T) {
	tree, err := parseJSONTree(`{"a":[{"flavors":[]},{"b":{"flavors":["  mint ","Mint","sage"]}}],"z":{"flavors":["late"]}}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mint", "Sage"}, findFlavors(tree))

	tree, err = parseJSONTree(`{"x":{"conditions":["Anxiety"," "]},"y":{"treats":[{"name":"Pain"}]}}`)
	require.NoError(t, err)
	assert.Equal(t, []HelpsWith{{Condition: "Anxiety"}}, findHelpsWith(tree))

	_, err = parseJSONTree(`{"a":1} {"b":2}`)
	assert.Error(t, err)
}

func TestReconcileParsesEmbeddedJSONOnce(t *testing.T) {
	f := newFakeFetcher()
	f.pages[testBase+"/strains/granddaddy"] = `<html><body>
		<script type="application/json">{broken</script>
		<script type="application/json">{"flavors":["grape"],"conditions":["Insomnia"]}</script>
	</body></html>`

	core, logs := observer.New(zapcore.DebugLevel)
	r := NewReconciler(f, testBase, 0, newLoggerFromZap(zap.New(core)))
	report, err := r.Reconcile(context.Background(), []EnrichedStrain{missingRecord("granddaddy")})
	require.NoError(t, err)

	assert.Equal(t, []string{"Grape"}, report.Records[0].Flavors)
	assert.Equal(t, []HelpsWith{{Condition: "Insomnia"}}, report.Records[0].HelpsWith)
	assert.Equal(t, 1, logs.FilterMessageSnippet("skipping embedded JSON").Len())
}
