package storage

import (
	"encoding/json"
	"sort"
	"time"

	"serpcarousel/internal/carousel"
)

// ItemRow is one carousel item flattened for persistence.
//
// ItemKey is the content-derived dedupe key; together with Source and
// Category it forms the row's logical identity. Position is the 0-based
// carousel rank within the category. Image is nil when no image was found
// for the item, and stores as SQL NULL.
type ItemRow struct {
	Source      string
	Category    string
	Position    int
	ItemKey     string
	Name        string
	Extensions  []string
	Link        string
	Image       *string
	ExtractedAt time.Time
}

// RowsFromResult flattens one extraction result into rows, categories in
// name order so batches are deterministic.
func RowsFromResult(source string, carousels map[string][]carousel.Item, extractedAt time.Time) []ItemRow {
	categories := make([]string, 0, len(carousels))
	for name := range carousels {
		categories = append(categories, name)
	}
	sort.Strings(categories)

	var rows []ItemRow
	for _, category := range categories {
		for i, it := range carousels[category] {
			rows = append(rows, ItemRow{
				Source:      source,
				Category:    category,
				Position:    i,
				ItemKey:     ItemKey(category, it.Title, it.Link),
				Name:        it.Title,
				Extensions:  it.Extensions,
				Link:        it.Link,
				Image:       it.Image,
				ExtractedAt: extractedAt,
			})
		}
	}
	return rows
}

// ExtensionsJSON renders the row's extensions as a JSON array string, "[]"
// when empty. Backends store this in a TEXT column; a JSON array survives
// every engine's text round-trip and keeps ordering.
func (r ItemRow) ExtensionsJSON() string {
	if len(r.Extensions) == 0 {
		return "[]"
	}
	b, err := json.Marshal(r.Extensions)
	if err != nil {
		// []string cannot fail to marshal; keep the row storable anyway.
		return "[]"
	}
	return string(b)
}
