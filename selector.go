package straincrawler

// DetailSelectors lists every anchor the field extractor relies on. Markup variants are handled by
// editing this table, not the strategies.
type DetailSelectors struct {
	Image             string
	OgImage           string
	Description       string
	SensationsSection string
	SensationsById    string
	EffectsRow        string
	TileName          string
	PositiveHeading   string
	NegativeHeading   string
	FlavorHeadings    string
	FlavorHeadingText string
	FlavorSection     string
	TerpeneHeadings   string
	TerpeneEntry      string
	TerpeneName       string
	TerpeneType       string
	TerpeneDesc       string
	TerpeneChip       string
	HelpsItems        string
	HelpsCondition    string
	HelpsPercent      string
	LineageLinks      string
	LineageLabel      string
	GrowNotes         string
	RatingSpans       string
	JsonScripts       string
}

// defaultSelectors matches the strain detail page markup.
var defaultSelectors = DetailSelectors{
	Image:             `img[data-testid="image-picture-image"]`,
	OgImage:           `meta[property="og:image"]`,
	Description:       `div[data-testid="strain-description-container"]`,
	SensationsSection: `section[id*="strain-sensations"]`,
	SensationsById:    `div#strain-sensations-section`,
	EffectsRow:        `div.row`,
	TileName:          `a[data-testid="icon-tile-link"] p[data-testid="item-name"]`,
	PositiveHeading:   "Positive Effects",
	NegativeHeading:   "Negative Effects",
	FlavorHeadings:    `h2`,
	FlavorHeadingText: "strain flavors",
	FlavorSection:     `[id*="strain-flavors"] p[data-testid="item-name"]`,
	TerpeneHeadings:   `h3`,
	TerpeneEntry:      `div.flex.relative.mb-sm`,
	TerpeneName:       `span.font-bold`,
	TerpeneType:       `span.text-grey`,
	TerpeneDesc:       `div.text-xs`,
	TerpeneChip:       `div.inline-flex.relative.mb-sm[class~="mr-[24px]"]`,
	HelpsItems:        `div#helps-with-section li.mb-xl`,
	HelpsCondition:    `a.font-bold.underline`,
	HelpsPercent:      `span.font-bold`,
	LineageLinks:      `section#strain-lineage-section a[href*="/strains/"]`,
	LineageLabel:      `div.text-green.text-xs`,
	GrowNotes:         `section#strain-grow-info-section [data-testid="grow-notes"]`,
	RatingSpans:       `span`,
	JsonScripts:       `script[type="application/json"]`,
}

// flavorVocabulary is scanned, in order, against the description when no flavor tiles exist.
var flavorVocabulary = []string{
	"vanilla", "pepper", "butter", "lemon", "citrus", "berry", "sweet", "sour",
	"earthy", "pine", "diesel", "cheese", "mint", "chocolate", "coffee", "grape",
	"apple", "cherry", "orange", "tropical", "floral", "spicy", "herbal",
}
