package scrape

import (
	"reflect"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"stockbot/internal/fault"
	"stockbot/internal/inventory"
)

func TestDocumentParserCategories(t *testing.T) {
	t.Parallel()
	p := NewDocumentParser(Selectors{}, DedicatedCategories)
	snap, err := p.Parse([]byte(stockPage))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	var names []string
	for _, c := range snap.Categories {
		names = append(names, c.Name)
	}
	// Dedicated labels bracket the generic pass; EGGS is not picked up twice.
	want := []string{"SEEDS STOCK", "GEAR STOCK", "COSMETICS STOCK", "EGGS STOCK"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("categories = %v, want %v", names, want)
	}

	tests := []struct {
		category string
		items    []inventory.Item
	}{
		{"GEAR STOCK", []inventory.Item{{Name: "Watering Can", Quantity: "x3"}, {Name: "Trowel", Quantity: "x1"}}},
		{"SEEDS STOCK", []inventory.Item{{Name: "Carrot Seed", Quantity: "x5"}, {Name: "Blueberry Seed", Quantity: "x2"}}},
		{"EGGS STOCK", []inventory.Item{{Name: "Common Egg", Quantity: "x2"}}},
		{"COSMETICS STOCK", nil},
	}
	for _, tt := range tests {
		got, ok := snap.Items(tt.category)
		if !ok {
			t.Fatalf("category %q missing", tt.category)
		}
		if len(got) == 0 && len(tt.items) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.items) {
			t.Fatalf("%s items = %+v, want %+v", tt.category, got, tt.items)
		}
	}
}

func TestDocumentParserQuantityVisibleText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		span string
		want string
	}{
		{"plain", `x5`, "x5"},
		{"padded", `  x5  `, "x5"},
		{"nested multiline", "x\n  <b>5</b> ", "x5"},
		{"deep nesting", `<i> x </i><b><u> 1 </u>2</b>`, "x12"},
		{"comment", `x<!-- stale -->3`, "x3"},
		{"empty", ` `, ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			page := `<div><h2 class="text-xl font-bold mb-2 text-center">GEAR STOCK</h2><ul>` +
				`<li class="bg-gray-900"><img alt="Carrot Seed"><span class="text-gray-400">` +
				tt.span + `</span></li></ul></div>`
			snap, err := NewDocumentParser(Selectors{}, nil).Parse([]byte(page))
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			got, _ := snap.Items("GEAR STOCK")
			want := []inventory.Item{{Name: "Carrot Seed", Quantity: tt.want}}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("items = %+v, want %+v", got, want)
			}
		})
	}
}

func TestDocumentParserEmptyDocument(t *testing.T) {
	t.Parallel()
	snap, err := NewDocumentParser(Selectors{}, DedicatedCategories).Parse([]byte("<html><body><p>maintenance</p></body></html>"))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if snap.Len() != 0 {
		t.Fatalf("expected empty snapshot, got %d categories", snap.Len())
	}
}

type panicExtractor struct{}

func (panicExtractor) Sections(_ *goquery.Document) []Section { panic("boom") }

func TestDocumentParserRecoversPanics(t *testing.T) {
	t.Parallel()
	p := NewDocumentParser(Selectors{}, nil).WithExtractors(panicExtractor{})
	_, err := p.Parse([]byte(stockPage))
	if !fault.Is(err, fault.KindParse) {
		t.Fatalf("expected parse fault, got %v", err)
	}
}
