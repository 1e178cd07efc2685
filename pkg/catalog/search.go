package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Sort orders search results.
type Sort string

const (
	SortRating    Sort = "rating" // best first
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
	SortName      Sort = "name"
)

// Query filters a section. Zero fields do not filter.
type Query struct {
	Kind        Kind
	Subkind     string
	Text        string
	MinPrice    float64
	MaxPrice    float64
	MinCapacity int
	MinRating   float64
	Sort        Sort
}

// Search returns the listings of q.Kind matching every set filter.
// Text matches case-insensitively against names, plain-text descriptions and features.
func (c *Catalog) Search(q Query) ([]Item, error) {
	kind, err := ParseKind(string(q.Kind))
	if err != nil {
		return nil, err
	}
	order := q.Sort
	if order == "" {
		order = SortRating
	}
	switch order {
	case SortRating, SortPriceAsc, SortPriceDesc, SortName:
	default:
		return nil, fmt.Errorf("unknown sort %q", q.Sort)
	}

	terms := strings.Fields(strings.ToLower(q.Text))
	var out []Item
	for i, it := range c.items[kind] {
		if q.Subkind != "" && !strings.EqualFold(it.Subkind, q.Subkind) {
			continue
		}
		if q.MinPrice > 0 && it.Price < q.MinPrice {
			continue
		}
		if q.MaxPrice > 0 && it.Price > q.MaxPrice {
			continue
		}
		if q.MinCapacity > 0 && it.Capacity < q.MinCapacity {
			continue
		}
		if q.MinRating > 0 && it.Rating < q.MinRating {
			continue
		}
		if !matchesAll(c.text[ref{kind: kind, idx: i}], terms) {
			continue
		}
		out = append(out, it)
	}

	sort.SliceStable(out, less(out, order))
	return out, nil
}

func matchesAll(text string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(text, t) {
			return false
		}
	}
	return true
}

func less(items []Item, order Sort) func(i, j int) bool {
	return func(i, j int) bool {
		a, b := items[i], items[j]
		switch order {
		case SortPriceAsc:
			if a.Price != b.Price {
				return a.Price < b.Price
			}
		case SortPriceDesc:
			if a.Price != b.Price {
				return a.Price > b.Price
			}
		case SortName:
			if n := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); n != 0 {
				return n < 0
			}
		default:
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
		}
		return a.ID < b.ID
	}
}
