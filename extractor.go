package straincrawler

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// strategy extracts one field from a document. ok is false when the strategy found nothing.
type strategy[T any] func(doc *Document) (value T, ok bool)

// firstOf runs the strategies in order and returns the first hit.
func firstOf[T any](doc *Document, strategies ...strategy[T]) (T, bool) {
	for _, s := range strategies {
		if v, ok := s(doc); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Extractor runs the per-field strategy chains over a detail document.
type Extractor struct {
	sel DetailSelectors
}

func NewExtractor() *Extractor {
	return &Extractor{sel: defaultSelectors}
}

// NewExtractorWithSelectors allows a different markup variant.
func NewExtractorWithSelectors(sel DetailSelectors) *Extractor {
	return &Extractor{sel: sel}
}

// Extract is ExtractWithErrors without the error list.
func (x *Extractor) Extract(doc *Document, base Strain) EnrichedStrain {
	rec, _ := x.ExtractWithErrors(doc, base)
	return rec
}

// ExtractWithErrors fills an enriched copy of base from doc. Each field is extracted in isolation:
// a failing field stays empty, is reported in the returned slice and does not affect the others.
// The image file is not downloaded here; ImagePath is left nil for the enricher.
func (x *Extractor) ExtractWithErrors(doc *Document, base Strain) (EnrichedStrain, []*FieldError) {
	rec := newEnrichedStrain(base)
	var errs []*FieldError
	run := func(field string, fn func()) {
		if err := extractField(field, fn); err != nil {
			errs = append(errs, err)
		}
	}

	run("image", func() {
		if u, ok := firstOf[string](doc, x.imageFromSrcset, x.imageFromSrc, x.imageFromOgMeta); ok {
			rec.ImageUrl = &u
		}
	})
	run("description", func() {
		if d, ok := x.description(doc); ok {
			rec.Description = d
		}
	})
	run("positive_effects", func() {
		if v, ok := firstOf[[]string](doc, x.effectsIn(x.sel.SensationsSection, x.sel.PositiveHeading), x.effectsIn(x.sel.SensationsById, x.sel.PositiveHeading)); ok {
			rec.PositiveEffects = v
		}
	})
	run("negative_effects", func() {
		if v, ok := firstOf[[]string](doc, x.effectsIn(x.sel.SensationsSection, x.sel.NegativeHeading), x.effectsIn(x.sel.SensationsById, x.sel.NegativeHeading)); ok {
			rec.NegativeEffects = v
		}
	})
	run("flavors", func() {
		if v, ok := firstOf[[]string](doc, x.flavorChain(rec.Description)...); ok {
			rec.Flavors = v
		}
	})
	run("detailed_terpenes", func() {
		if v, ok := firstOf[[]Terpene](doc, x.structuredTerpenes, x.terpeneChips); ok {
			rec.DetailedTerpenes = v
		}
	})
	run("helps_with", func() {
		if v, ok := x.helpsWith(doc); ok {
			rec.HelpsWith = v
		}
	})
	run("genetics", func() {
		if v, ok := x.genetics(doc); ok {
			rec.Genetics = v
		}
	})
	run("grow_info", func() {
		if v, ok := x.growNotes(doc); ok {
			rec.GrowInfo.Notes = &v
		}
	})
	run("detailed_review_count", func() {
		if v, ok := firstOf[string](doc, x.ratingCountFromSpans, x.ratingCountFromText); ok {
			rec.DetailedReviewCount = &v
		}
	})
	return rec, errs
}

// flavorChain is shared with reconciliation, which supplies the description of the stored record.
func (x *Extractor) flavorChain(description string) []strategy[[]string] {
	return []strategy[[]string]{x.flavorTiles, x.flavorSection, keywordFlavors(description)}
}

// extractField runs fn, converting a panic into a FieldError.
func extractField(field string, fn func()) (fieldErr *FieldError) {
	defer func() {
		if r := recover(); r != nil {
			fieldErr = &FieldError{Field: field, Err: eris.New(fmt.Sprint(r))}
		}
	}()
	fn()
	return nil
}

// titleCase builds a fresh caser per call; cases.Caser keeps state between calls.
func titleCase(s string) string {
	return cases.Title(language.English).String(strings.TrimSpace(s))
}

// appendUnique appends v unless an entry equal under case folding is already present.
func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if strings.EqualFold(existing, v) {
			return list
		}
	}
	return append(list, v)
}
