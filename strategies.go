package straincrawler

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var ratingCountPattern = regexp.MustCompile(`\(([0-9,]+)\s+ratings?\)`)

func (x *Extractor) imageFromSrcset(doc *Document) (string, bool) {
	srcset, ok := doc.Find(x.sel.Image).First().Attr("srcset")
	if !ok {
		return "", false
	}
	// candidates are "url descriptor" pairs; the first listed wins
	first := strings.TrimSpace(strings.Split(srcset, ",")[0])
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}

func (x *Extractor) imageFromSrc(doc *Document) (string, bool) {
	src, ok := doc.Find(x.sel.Image).First().Attr("src")
	src = strings.TrimSpace(src)
	return src, ok && src != ""
}

func (x *Extractor) imageFromOgMeta(doc *Document) (string, bool) {
	content, ok := doc.Find(x.sel.OgImage).First().Attr("content")
	content = strings.TrimSpace(content)
	return content, ok && content != ""
}

func (x *Extractor) description(doc *Document) (string, bool) {
	container := doc.Find(x.sel.Description).First()
	if container.Length() == 0 {
		return "", false
	}
	text := normalizedText(container)
	return text, text != ""
}

// effectsIn finds the sub-heading inside section and reads the tiles of the row that follows it.
func (x *Extractor) effectsIn(section, heading string) strategy[[]string] {
	return func(doc *Document) ([]string, bool) {
		sec := doc.Find(section).First()
		if sec.Length() == 0 {
			return nil, false
		}
		h := sec.Find("h3").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.Contains(s.Text(), heading)
		}).First()
		if h.Length() == 0 {
			return nil, false
		}
		return x.tileNames(doc.findNext(h, x.sel.EffectsRow))
	}
}

func (x *Extractor) tileNames(row *goquery.Selection) ([]string, bool) {
	var names []string
	row.Find(x.sel.TileName).Each(func(_ int, s *goquery.Selection) {
		label := normalizedText(s)
		if label == "" || strings.HasPrefix(label, "Loading") {
			return
		}
		names = appendUnique(names, titleCase(label))
	})
	return names, len(names) > 0
}

func (x *Extractor) flavorTiles(doc *Document) ([]string, bool) {
	h := doc.Find(x.sel.FlavorHeadings).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(strings.ToLower(s.Text()), x.sel.FlavorHeadingText)
	}).First()
	if h.Length() == 0 {
		return nil, false
	}
	return x.tileNames(doc.findNext(h, x.sel.EffectsRow))
}

func (x *Extractor) flavorSection(doc *Document) ([]string, bool) {
	var names []string
	doc.Find(x.sel.FlavorSection).Each(func(_ int, s *goquery.Selection) {
		label := normalizedText(s)
		if label == "" || strings.HasPrefix(label, "Loading") {
			return
		}
		names = appendUnique(names, titleCase(label))
	})
	return names, len(names) > 0
}

// keywordFlavors is the last resort: vocabulary terms found in the description, in vocabulary order.
func keywordFlavors(description string) strategy[[]string] {
	return func(*Document) ([]string, bool) {
		if description == "" {
			return nil, false
		}
		lower := strings.ToLower(description)
		var found []string
		for _, kw := range flavorVocabulary {
			if strings.Contains(lower, kw) {
				found = appendUnique(found, titleCase(kw))
			}
		}
		return found, len(found) > 0
	}
}

func (x *Extractor) structuredTerpenes(doc *Document) ([]Terpene, bool) {
	h := doc.Find(x.sel.TerpeneHeadings).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(strings.ToLower(s.Text()), "terpenes")
	}).First()
	if h.Length() == 0 {
		return nil, false
	}
	container := doc.findNext(h, "div")

	var terpenes []Terpene
	container.Find(x.sel.TerpeneEntry).Each(func(_ int, entry *goquery.Selection) {
		name := normalizedText(entry.Find(x.sel.TerpeneName).First())
		if name == "" {
			return
		}
		t := Terpene{Name: name}
		typ := normalizedText(entry.Find(x.sel.TerpeneType).First())
		if strings.HasPrefix(typ, "(") && strings.HasSuffix(typ, ")") {
			t.Type = strings.TrimSpace(typ[1 : len(typ)-1])
		}
		desc := normalizedText(entry.Find(x.sel.TerpeneDesc).First())
		if desc != "" && !strings.HasPrefix(desc, "(") {
			t.Description = desc
		}
		terpenes = append(terpenes, t)
	})
	return terpenes, len(terpenes) > 0
}

func (x *Extractor) terpeneChips(doc *Document) ([]Terpene, bool) {
	var terpenes []Terpene
	doc.Find(x.sel.TerpeneChip).Each(func(_ int, s *goquery.Selection) {
		if name := normalizedText(s); name != "" {
			terpenes = append(terpenes, Terpene{Name: name})
		}
	})
	return terpenes, len(terpenes) > 0
}

func (x *Extractor) helpsWith(doc *Document) ([]HelpsWith, bool) {
	var items []HelpsWith
	doc.Find(x.sel.HelpsItems).Each(func(_ int, li *goquery.Selection) {
		cond := li.Find(x.sel.HelpsCondition).First()
		pct := li.Find(x.sel.HelpsPercent).First()
		if cond.Length() == 0 || pct.Length() == 0 {
			return
		}
		name := normalizedText(cond)
		if name == "" {
			return
		}
		items = append(items, HelpsWith{Condition: name, Percentage: parsePercentage(normalizedText(pct))})
	})
	return items, len(items) > 0
}

// parsePercentage turns "87%" into 87. Anything unparsable is 0; results are clamped to 0..100.
func parsePercentage(text string) int {
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "%"))
	n, err := strconv.Atoi(text)
	if err != nil {
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > 1e9 {
			return 0
		}
		n = int(math.Round(f))
	}
	return clampPercentage(n)
}

func clampPercentage(n int) int {
	switch {
	case n < 0:
		return 0
	case n > 100:
		return 100
	}
	return n
}

func (x *Extractor) genetics(doc *Document) (Genetics, bool) {
	g := Genetics{Parents: []string{}, Children: []string{}}
	links := doc.Find(x.sel.LineageLinks)
	if links.Length() == 0 {
		return g, false
	}
	links.Each(func(_ int, link *goquery.Selection) {
		name := strainNameFromHref(link.AttrOr("href", ""))
		if name == "" {
			return
		}
		switch normalizedText(link.Find(x.sel.LineageLabel).First()) {
		case "parent":
			g.Parents = appendUnique(g.Parents, name)
		case "child":
			g.Children = appendUnique(g.Children, name)
		}
	})
	return g, len(g.Parents)+len(g.Children) > 0
}

// strainNameFromHref turns ".../strains/blue-dream?x=1" into "Blue Dream".
func strainNameFromHref(href string) string {
	if u, err := url.Parse(href); err == nil {
		href = u.Path
	}
	idx := strings.LastIndex(href, strainPath+"/")
	if idx < 0 {
		return ""
	}
	slug := strings.Trim(href[idx+len(strainPath)+1:], "/")
	if slug == "" || strings.Contains(slug, "/") {
		return ""
	}
	return titleCase(strings.ReplaceAll(slug, "-", " "))
}

func (x *Extractor) growNotes(doc *Document) (string, bool) {
	notes := doc.Find(x.sel.GrowNotes).First()
	if notes.Length() == 0 {
		return "", false
	}
	text := normalizedText(notes)
	return text, text != ""
}

func (x *Extractor) ratingCountFromSpans(doc *Document) (string, bool) {
	var count string
	doc.Find(x.sel.RatingSpans).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := normalizedText(s)
		if !strings.Contains(text, "rating") {
			return true
		}
		if m := ratingCountPattern.FindStringSubmatch(text); m != nil {
			count = m[1]
			return false
		}
		return true
	})
	return count, count != ""
}

func (x *Extractor) ratingCountFromText(doc *Document) (string, bool) {
	m := ratingCountPattern.FindStringSubmatch(normalizedText(doc.Find("body")))
	if m == nil {
		return "", false
	}
	return m[1], true
}
