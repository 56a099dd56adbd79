package straincrawler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

const timestampLayout = "2006-01-02 15:04:05"

// CatalogSnapshot is the output of the catalog phase and the input of enrichment.
type CatalogSnapshot struct {
	TotalStrains    int      `json:"total_strains"`
	ScrapeTimestamp string   `json:"scrape_timestamp"`
	RunID           string   `json:"run_id,omitempty"`
	Strains         []Strain `json:"strains"`
}

// EnrichedSnapshot is the output of enrichment and of reconciliation.
type EnrichedSnapshot struct {
	TotalStrains               int              `json:"total_strains"`
	ScrapeTimestamp            string           `json:"scrape_timestamp"`
	RunID                      string           `json:"run_id,omitempty"`
	MissingDataUpdateTimestamp string           `json:"missing_data_update_timestamp,omitempty"`
	UpdatedStrainsCount        *int             `json:"updated_strains_count,omitempty"`
	EnhancedStrains            []EnrichedStrain `json:"enhanced_strains"`
}

func NewCatalogSnapshot(runID string, strains []Strain) CatalogSnapshot {
	if strains == nil {
		strains = []Strain{}
	}
	return CatalogSnapshot{
		TotalStrains:    len(strains),
		ScrapeTimestamp: time.Now().Format(timestampLayout),
		RunID:           runID,
		Strains:         strains,
	}
}

func NewEnrichedSnapshot(runID string, records []EnrichedStrain) EnrichedSnapshot {
	if records == nil {
		records = []EnrichedStrain{}
	}
	return EnrichedSnapshot{
		TotalStrains:    len(records),
		ScrapeTimestamp: time.Now().Format(timestampLayout),
		RunID:           runID,
		EnhancedStrains: records,
	}
}

// MarkReconciled stamps the snapshot with the outcome of a reconciliation pass.
func (s *EnrichedSnapshot) MarkReconciled(updated int) {
	s.MissingDataUpdateTimestamp = time.Now().Format(timestampLayout)
	s.UpdatedStrainsCount = &updated
}

func SaveCatalog(path string, snap CatalogSnapshot) error {
	return writeJSONFile(path, snap)
}

func LoadCatalog(path string) (CatalogSnapshot, error) {
	var snap CatalogSnapshot
	if err := readJSONFile(path, &snap); err != nil {
		return snap, err
	}
	for i := range snap.Strains {
		if snap.Strains[i].Akas == nil {
			snap.Strains[i].Akas = []string{}
		}
		if snap.Strains[i].Type == "" {
			snap.Strains[i].Type = Hybrid
		}
	}
	snap.TotalStrains = len(snap.Strains)
	return snap, nil
}

func SaveEnriched(path string, snap EnrichedSnapshot) error {
	return writeJSONFile(path, snap)
}

func LoadEnriched(path string) (EnrichedSnapshot, error) {
	var snap EnrichedSnapshot
	if err := readJSONFile(path, &snap); err != nil {
		return snap, err
	}
	snap.TotalStrains = len(snap.EnhancedStrains)
	return snap, nil
}

// writeJSONFile writes through a temp file and a rename, so an interrupted write never leaves a
// truncated snapshot behind.
func writeJSONFile(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return eris.Wrap(err, "failed to create directories")
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "failed to create temp file")
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return eris.Wrapf(err, "failed to encode %s", path)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "failed to close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "failed to move snapshot into %s", path)
	}
	return nil
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "failed to read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "failed to decode %s", path)
	}
	return nil
}
