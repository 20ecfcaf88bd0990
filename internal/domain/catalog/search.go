package catalog

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// AllCategories matches every category in a Query.
const AllCategories = "all"

// Query filters catalog items the way the POS product picker does.
type Query struct {
	// Text is matched case-insensitively against the item name and code.
	Text string
	// Category restricts results to one category. Empty or AllCategories
	// disables the filter.
	Category string
}

// Search returns the items matching q, preserving input order.
func Search(items []Item, q Query) []Item {
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(q.Text))

	out := make([]Item, 0, len(items))
	for _, it := range items {
		if q.Category != "" && q.Category != AllCategories && it.Category != q.Category {
			continue
		}
		if needle != "" &&
			!strings.Contains(fold.String(it.Name), needle) &&
			!strings.Contains(fold.String(it.Code), needle) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Categories returns the distinct non-empty categories, sorted.
func Categories(items []Item) []string {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.Category == "" {
			continue
		}
		seen[it.Category] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
