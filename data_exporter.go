package straincrawler

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var csvHeader = []string{
	"name",
	"url",
	"type",
	"thc",
	"akas",
	"rating",
	"review_count",
	"top_effect",
	"category",
	"description",
	"image_url",
	"image_path",
	"positive_effects",
	"negative_effects",
	"flavors",
	"detailed_terpenes",
	"helps_with",
	"parents",
	"children",
	"grow_notes",
	"detailed_review_count",
}

// ExportEnrichedToCSV writes one row per strain. List fields are JSON encoded.
func ExportEnrichedToCSV(filename string, records []EnrichedStrain) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range records {
		row, err := convertFieldsToStrings(rec)
		if err != nil {
			return fmt.Errorf("failed to convert %s: %w", rec.Name, err)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write record to CSV: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func convertFieldsToStrings(rec EnrichedStrain) ([]string, error) {
	lists := []interface{}{
		rec.Akas, rec.PositiveEffects, rec.NegativeEffects, rec.Flavors,
		rec.DetailedTerpenes, rec.HelpsWith, rec.Genetics.Parents, rec.Genetics.Children,
	}
	encoded := make([]string, len(lists))
	for i, l := range lists {
		b, err := json.Marshal(l)
		if err != nil {
			return nil, err
		}
		encoded[i] = processEncodedString(string(b))
	}

	return []string{
		rec.Name,
		rec.Url,
		string(rec.Type),
		rec.Thc,
		encoded[0],
		strconv.FormatFloat(rec.Rating, 'f', -1, 64),
		strconv.Itoa(rec.ReviewCount),
		rec.TopEffect,
		rec.Category,
		rec.Description,
		deref(rec.ImageUrl),
		deref(rec.ImagePath),
		encoded[1],
		encoded[2],
		encoded[3],
		encoded[4],
		encoded[5],
		encoded[6],
		encoded[7],
		deref(rec.GrowInfo.Notes),
		deref(rec.DetailedReviewCount),
	}, nil
}

func processEncodedString(text string) string {
	replacer := strings.NewReplacer("\\n", "\n", "\\u003e", ">", "\\u003c", "<", "\\u0026", "&")
	return replacer.Replace(text)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
