package scrape

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"stockbot/internal/fault"
	"stockbot/internal/inventory"
)

// DedicatedCategories are parsed by exact heading label rather than by the
// generic heading selector.
var DedicatedCategories = []string{"SEEDS STOCK", "EGGS STOCK"}

// Parser converts a raw document into a snapshot.
type Parser interface {
	Parse(doc []byte) (inventory.Snapshot, error)
}

// DocumentParser runs its extractors in order and collects their sections.
type DocumentParser struct {
	selectors  Selectors
	extractors []CategoryExtractor
}

// NewDocumentParser builds the standard extractor chain: the first dedicated
// label, the generic selector, then the remaining dedicated labels.
func NewDocumentParser(sel Selectors, dedicated []string) *DocumentParser {
	sel = sel.withDefaults()
	skip := make(map[string]struct{}, len(dedicated))
	for _, l := range dedicated {
		skip[l] = struct{}{}
	}

	var ex []CategoryExtractor
	if len(dedicated) > 0 {
		ex = append(ex, LabelExtractor{Label: dedicated[0], Selectors: sel})
	}
	ex = append(ex, SelectorExtractor{Selectors: sel, Skip: skip})
	for _, l := range dedicated[min(1, len(dedicated)):] {
		ex = append(ex, LabelExtractor{Label: l, Selectors: sel})
	}
	return &DocumentParser{selectors: sel, extractors: ex}
}

// WithExtractors replaces the extractor chain.
func (p *DocumentParser) WithExtractors(ex ...CategoryExtractor) *DocumentParser {
	cp := *p
	cp.extractors = ex
	return &cp
}

func (p *DocumentParser) Parse(raw []byte) (snap inventory.Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			snap = inventory.Snapshot{}
			err = fault.Parse(fmt.Sprint(r), nil)
		}
	}()

	doc, derr := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if derr != nil {
		return inventory.Snapshot{}, fault.Parse("read document", derr)
	}

	for _, ex := range p.extractors {
		for _, sec := range ex.Sections(doc) {
			snap.Ensure(sec.Label)
			for _, it := range p.entries(sec.List) {
				snap.Add(sec.Label, it)
			}
		}
	}
	return snap, nil
}

func (p *DocumentParser) entries(list *goquery.Selection) []inventory.Item {
	var out []inventory.Item
	list.Find(p.selectors.Entry).Each(func(_ int, li *goquery.Selection) {
		img := li.Find(p.selectors.Image).First()
		qty := li.Find(p.selectors.Quantity).First()
		if img.Length() == 0 || qty.Length() == 0 {
			return
		}
		alt, ok := img.Attr("alt")
		name := strings.TrimSpace(alt)
		if !ok || name == "" {
			return
		}
		out = append(out, inventory.Item{Name: name, Quantity: visibleText(qty)})
	})
	return out
}

// visibleText concatenates the trimmed text nodes under sel, so markup
// and line breaks inside a label never reach the item value.
func visibleText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "#text":
				b.WriteString(strings.TrimSpace(c.Text()))
			case "#comment":
			default:
				walk(c)
			}
		})
	}
	walk(sel)
	return b.String()
}
