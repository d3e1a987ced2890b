package inventory

import "sort"

// Item is one stock entry as displayed on the source page.
type Item struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
}

// Category is a named, ordered group of items.
type Category struct {
	Name  string `json:"name"`
	Items []Item `json:"items"`
}

// Snapshot is the full categorized inventory captured at one poll.
//
// Categories keep document order for display only; lookups are by name.
// Item names within a category are not required to be unique.
type Snapshot struct {
	Categories []Category `json:"categories"`
}

// Add appends an item to the named category, creating it on first use.
func (s *Snapshot) Add(category string, it Item) {
	for i := range s.Categories {
		if s.Categories[i].Name == category {
			s.Categories[i].Items = append(s.Categories[i].Items, it)
			return
		}
	}
	s.Categories = append(s.Categories, Category{Name: category, Items: []Item{it}})
}

// Ensure registers an (possibly empty) category without adding items.
func (s *Snapshot) Ensure(category string) {
	if _, ok := s.Items(category); ok {
		return
	}
	s.Categories = append(s.Categories, Category{Name: category, Items: []Item{}})
}

// Items returns the items of a category and whether the category exists.
func (s Snapshot) Items(category string) ([]Item, bool) {
	for _, c := range s.Categories {
		if c.Name == category {
			return c.Items, true
		}
	}
	return nil, false
}

func (s Snapshot) Len() int { return len(s.Categories) }

func (s Snapshot) ItemCount() int {
	n := 0
	for _, c := range s.Categories {
		n += len(c.Items)
	}
	return n
}

// Clone returns a deep copy so callers can't mutate retained state.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Categories: make([]Category, 0, len(s.Categories))}
	for _, c := range s.Categories {
		out.Categories = append(out.Categories, Category{
			Name:  c.Name,
			Items: append([]Item{}, c.Items...),
		})
	}
	return out
}

// KnownSet is the deduplicated set of item names present in one snapshot.
type KnownSet map[string]struct{}

// Known rebuilds the known item set from scratch.
func (s Snapshot) Known() KnownSet {
	ks := KnownSet{}
	for _, c := range s.Categories {
		for _, it := range c.Items {
			ks[it.Name] = struct{}{}
		}
	}
	return ks
}

// Sorted returns the names in lexical order.
func (k KnownSet) Sorted() []string {
	out := make([]string, 0, len(k))
	for n := range k {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
