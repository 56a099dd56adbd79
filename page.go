package straincrawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is one parsed page. Raw keeps the decoded body for scans that selectors cannot do.
type Document struct {
	*goquery.Document
	Url   string
	Raw   string
	order map[*html.Node]int
}

// NewDocument parses a decoded HTML body.
func NewDocument(pageUrl, body string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	return &Document{Document: doc, Url: pageUrl, Raw: body}, nil
}

// position returns the pre-order index of n, building the index on first use.
func (d *Document) position(n *html.Node) int {
	if d.order == nil {
		d.order = make(map[*html.Node]int)
		i := 0
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			d.order[n] = i
			i++
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		for _, root := range d.Document.Nodes {
			walk(root)
		}
	}
	pos, ok := d.order[n]
	if !ok {
		return -1
	}
	return pos
}

// findNext returns the first element matching selector that follows from in document order,
// descendants of from included. The result is empty when nothing follows.
func (d *Document) findNext(from *goquery.Selection, selector string) *goquery.Selection {
	if from.Length() == 0 {
		return from
	}
	start := d.position(from.Get(0))
	var next *goquery.Selection
	d.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if d.position(s.Get(0)) > start {
			next = s
			return false
		}
		return true
	})
	if next == nil {
		return from.Slice(0, 0)
	}
	return next
}

// normalizedText joins the element's text nodes with single spaces.
func normalizedText(s *goquery.Selection) string {
	var parts []string
	for _, n := range s.Nodes {
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if n.Type == html.TextNode {
				if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
					parts = append(parts, t)
				}
				return
			}
			if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
				return
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(n)
	}
	return strings.Join(parts, " ")
}
