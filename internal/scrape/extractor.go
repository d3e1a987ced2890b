package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors describe the markup of the stock page.
type Selectors struct {
	// Heading matches the generic category headings.
	Heading string
	// HeadingTag is the element searched for exact-label headings.
	HeadingTag string
	// List is the sibling element that follows a heading and holds the entries.
	List string
	// Entry matches one stock entry inside List.
	Entry string
	// Image carries the item name in its alt attribute.
	Image string
	// Quantity carries the quantity label as visible text.
	Quantity string
}

// DefaultSelectors match the current stock page layout.
func DefaultSelectors() Selectors {
	return Selectors{
		Heading:    "h2.text-xl.font-bold.mb-2.text-center",
		HeadingTag: "h2",
		List:       "ul",
		Entry:      "li.bg-gray-900",
		Image:      "img",
		Quantity:   "span.text-gray-400",
	}
}

func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	if strings.TrimSpace(s.Heading) == "" {
		s.Heading = d.Heading
	}
	if strings.TrimSpace(s.HeadingTag) == "" {
		s.HeadingTag = d.HeadingTag
	}
	if strings.TrimSpace(s.List) == "" {
		s.List = d.List
	}
	if strings.TrimSpace(s.Entry) == "" {
		s.Entry = d.Entry
	}
	if strings.TrimSpace(s.Image) == "" {
		s.Image = d.Image
	}
	if strings.TrimSpace(s.Quantity) == "" {
		s.Quantity = d.Quantity
	}
	return s
}

// Section is a located category: its label and the list that holds its entries.
type Section struct {
	Label string
	List  *goquery.Selection
}

// CategoryExtractor locates category sections in a parsed document.
type CategoryExtractor interface {
	Sections(doc *goquery.Document) []Section
}

// LabelExtractor finds one category by exact heading text. It is used for
// categories whose headings don't reliably carry the generic heading classes.
type LabelExtractor struct {
	Label     string
	Selectors Selectors
}

func (e LabelExtractor) Sections(doc *goquery.Document) []Section {
	sel := e.Selectors.withDefaults()
	var out []Section
	doc.Find(sel.HeadingTag).EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if strings.TrimSpace(h.Text()) != e.Label {
			return true
		}
		list := h.NextAllFiltered(sel.List).First()
		if list.Length() == 0 {
			return true
		}
		out = append(out, Section{Label: e.Label, List: list})
		return false
	})
	return out
}

// SelectorExtractor finds every heading matching the generic heading selector,
// skipping labels owned by a dedicated extractor.
type SelectorExtractor struct {
	Selectors Selectors
	Skip      map[string]struct{}
}

func (e SelectorExtractor) Sections(doc *goquery.Document) []Section {
	sel := e.Selectors.withDefaults()
	var out []Section
	doc.Find(sel.Heading).Each(func(_ int, h *goquery.Selection) {
		label := strings.TrimSpace(h.Text())
		if label == "" {
			return
		}
		if _, skip := e.Skip[label]; skip {
			return
		}
		list := h.NextAllFiltered(sel.List).First()
		if list.Length() == 0 {
			return
		}
		out = append(out, Section{Label: label, List: list})
	})
	return out
}
