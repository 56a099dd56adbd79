package straincrawler

import (
	"encoding/json"
	"strings"
	"time"
)

type StrainType string

const (
	Indica StrainType = "Indica"
	Sativa StrainType = "Sativa"
	Hybrid StrainType = "Hybrid"
)

// NormalizeStrainType maps free text to a StrainType, defaulting to Hybrid.
func NormalizeStrainType(s string) StrainType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "indica":
		return Indica
	case "sativa":
		return Sativa
	default:
		return Hybrid
	}
}

func (t *StrainType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// null or a non-string phenotype
		*t = Hybrid
		return nil
	}
	*t = NormalizeStrainType(s)
	return nil
}

// Strain is one catalog item. Name is the join key for every later phase and is never rewritten.
type Strain struct {
	Name        string     `json:"name" bson:"name"`
	Url         string     `json:"url" bson:"url"`
	Type        StrainType `json:"type" bson:"type"`
	Thc         string     `json:"thc" bson:"thc"`
	Akas        []string   `json:"akas" bson:"akas"`
	Rating      float64    `json:"rating" bson:"rating"`
	ReviewCount int        `json:"review_count" bson:"review_count"`
	TopEffect   string     `json:"top_effect" bson:"top_effect"`
	Category    string     `json:"category" bson:"category"`
}

type Terpene struct {
	Name        string `json:"name" bson:"name"`
	Type        string `json:"type" bson:"type"`
	Description string `json:"description" bson:"description"`
}

type HelpsWith struct {
	Condition  string `json:"condition" bson:"condition"`
	Percentage int    `json:"percentage" bson:"percentage"`
}

type Genetics struct {
	Parents  []string `json:"parents" bson:"parents"`
	Children []string `json:"children" bson:"children"`
}

type GrowInfo struct {
	Notes *string `json:"notes" bson:"notes"`
}

// EnrichedStrain is a Strain plus everything scraped from its detail page.
// ImageUrl and ImagePath are set together or not at all.
type EnrichedStrain struct {
	Strain
	Description         string      `json:"description,omitempty" bson:"description"`
	ImageUrl            *string     `json:"image_url" bson:"image_url"`
	ImagePath           *string     `json:"image_path" bson:"image_path"`
	PositiveEffects     []string    `json:"positive_effects" bson:"positive_effects"`
	NegativeEffects     []string    `json:"negative_effects" bson:"negative_effects"`
	Flavors             []string    `json:"flavors" bson:"flavors"`
	DetailedTerpenes    []Terpene   `json:"detailed_terpenes" bson:"detailed_terpenes"`
	HelpsWith           []HelpsWith `json:"helps_with" bson:"helps_with"`
	Genetics            Genetics    `json:"genetics" bson:"genetics"`
	GrowInfo            GrowInfo    `json:"grow_info" bson:"grow_info"`
	DetailedReviewCount *string     `json:"detailed_review_count" bson:"detailed_review_count"`
}

// newEnrichedStrain copies base into an enriched record with every collection empty.
func newEnrichedStrain(base Strain) EnrichedStrain {
	base.Akas = append([]string{}, base.Akas...)
	e := EnrichedStrain{Strain: base}
	e.ensureDefaults()
	return e
}

func (e *EnrichedStrain) ensureDefaults() {
	if e.Akas == nil {
		e.Akas = []string{}
	}
	if e.PositiveEffects == nil {
		e.PositiveEffects = []string{}
	}
	if e.NegativeEffects == nil {
		e.NegativeEffects = []string{}
	}
	if e.Flavors == nil {
		e.Flavors = []string{}
	}
	if e.DetailedTerpenes == nil {
		e.DetailedTerpenes = []Terpene{}
	}
	if e.HelpsWith == nil {
		e.HelpsWith = []HelpsWith{}
	}
	if e.Genetics.Parents == nil {
		e.Genetics.Parents = []string{}
	}
	if e.Genetics.Children == nil {
		e.Genetics.Children = []string{}
	}
}

func (e *EnrichedStrain) UnmarshalJSON(b []byte) error {
	type plain EnrichedStrain
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*e = EnrichedStrain(p)
	e.ensureDefaults()
	return nil
}

// IsComplete reports whether the fields reconciliation backfills are both populated.
func (e *EnrichedStrain) IsComplete() bool {
	return len(e.Flavors) > 0 && len(e.HelpsWith) > 0
}

// CheckpointEntry tracks one strain's progress within a run.
type CheckpointEntry struct {
	Run       string    `json:"run" bson:"run"`
	Name      string    `json:"name" bson:"name"`
	Status    bool      `json:"status" bson:"status"`
	Error     bool      `json:"error" bson:"error"`
	Attempts  int       `json:"attempts" bson:"attempts"`
	LastError string    `json:"last_error" bson:"last_error" datastore:",noindex"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}
