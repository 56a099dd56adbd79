package straincrawler

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichedSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "enhanced-data.json")
	rec := completeRecord("Blue Dream")
	rec.ImageUrl = strPtr("https://img.example/a.png?x=1&y=<2>")
	rec.GrowInfo.Notes = strPtr("Easy")

	snap := NewEnrichedSnapshot("run-9", []EnrichedStrain{rec, missingRecord("Sparse")})
	require.NoError(t, SaveEnriched(path, snap))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"enhanced_strains"`)
	assert.Contains(t, string(raw), `&y=<2>`)
	assert.Contains(t, string(raw), `"image_url": null`)

	loaded, err := LoadEnriched(path)
	require.NoError(t, err)
	if diff := cmp.Diff(snap, loaded); diff != "" {
		t.Errorf("snapshot mismatch (-saved +loaded):\n%s", diff)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestLoadEnrichedFillsMissingCollections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"enhanced_strains":[{"name":"Old","type":"indica"}]}`), 0644))

	snap, err := LoadEnriched(path)
	require.NoError(t, err)
	require.Len(t, snap.EnhancedStrains, 1)
	rec := snap.EnhancedStrains[0]
	assert.Equal(t, 1, snap.TotalStrains)
	assert.Equal(t, Indica, rec.Type)
	assert.Equal(t, []string{}, rec.Flavors)
	assert.Equal(t, []string{}, rec.Genetics.Children)
}

func TestCatalogSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, SaveCatalog(path, NewCatalogSnapshot("r", nil)))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"strains": []`)

	require.NoError(t, os.WriteFile(path, []byte(`{"total_strains":9,"strains":[{"name":"A"}]}`), 0644))
	snap, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.TotalStrains)
	assert.Equal(t, Hybrid, snap.Strains[0].Type)
	assert.Equal(t, []string{}, snap.Strains[0].Akas)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestMarkReconciled(t *testing.T) {
	snap := NewEnrichedSnapshot("r", nil)
	snap.MarkReconciled(3)
	require.NotNil(t, snap.UpdatedStrainsCount)
	assert.Equal(t, 3, *snap.UpdatedStrainsCount)
	assert.NotEmpty(t, snap.MissingDataUpdateTimestamp)
}

func TestExportEnrichedToCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export", "strains.csv")
	rec := completeRecord("Blue Dream")
	rec.Description = "Line one\nline two"
	rec.Genetics.Parents = []string{"Blueberry", "Haze"}
	require.NoError(t, ExportEnrichedToCSV(path, []EnrichedStrain{rec}))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, csvHeader, rows[0])

	row := map[string]string{}
	for i, h := range rows[0] {
		row[h] = rows[1][i]
	}
	assert.Equal(t, "Blue Dream", row["name"])
	assert.Equal(t, "Sativa", row["type"])
	assert.Equal(t, "Line one\nline two", row["description"])
	assert.Equal(t, `["Blueberry","Haze"]`, row["parents"])
	assert.Equal(t, `[{"condition":"Stress","percentage":40}]`, row["helps_with"])
	assert.True(t, strings.HasPrefix(row["flavors"], `["Citrus"`))
	assert.Empty(t, row["image_url"])
}
