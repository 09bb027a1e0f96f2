package carousel

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"serpcarousel/internal/imageparser"
)

// Handler runs carousel extraction over one parsed document.
//
// Construction does all the work: parse, extract every configured category,
// run the optional image-recovery pass. A run cannot fail; malformed input
// only shrinks the result. The handler owns its parsed tree and item lists
// for the duration of one run, and nothing it returns references the tree.
type Handler struct {
	doc   *goquery.Document
	rules []Rule
	items map[string][]Item
	stats map[string]CategoryStats
}

// CategoryStats counts extraction outcomes for one category of one run.
// The metrics layer reads these; the core ignores them.
type CategoryStats struct {
	Extracted      int // items successfully parsed
	Dropped        int // item nodes that failed extraction
	Recovered      int // images recovered from script payloads
	RecoveryMisses int // id lookups that found no payload
}

// NewHandler parses markup and extracts every category in rules.
//
// Failure policy, outermost first:
//   - markup that cannot be parsed at all behaves like a page with no
//     carousels: every category comes back empty.
//   - a category whose container class is absent, or matches no item nodes,
//     yields an empty list. The two cases are not distinguished.
//   - an item node that fails extraction is dropped; its siblings survive.
//   - a failed image recovery leaves the item's previous image in place.
//
// Duplicate rule names collapse to the last rule's result, matching map
// semantics in the output; by convention names are unique.
func NewHandler(markup string, rules []Rule) *Handler {
	h := &Handler{
		rules: rules,
		items: make(map[string][]Item, len(rules)),
		stats: make(map[string]CategoryStats, len(rules)),
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		for _, r := range rules {
			h.items[r.Name] = []Item{}
			h.stats[r.Name] = CategoryStats{}
		}
		return h
	}
	h.doc = doc

	for _, r := range rules {
		items, st := h.extractCategory(r)
		h.items[r.Name] = items
		h.stats[r.Name] = st
	}
	return h
}

// extractCategory locates the rule's container, extracts each matching item
// node, and runs the image-recovery pass unless the rule skips it.
func (h *Handler) extractCategory(rule Rule) ([]Item, CategoryStats) {
	items := []Item{}
	var st CategoryStats

	container := h.doc.Find(divClassSelector(rule.ContainerClass)).First()
	if container.Length() == 0 {
		return items, st
	}

	container.Find(divClassSelector(rule.ItemClass)).Each(func(_ int, node *goquery.Selection) {
		it, err := extractItem(node, rule.Schema)
		if err != nil {
			st.Dropped++
			return
		}
		items = append(items, it)
	})
	st.Extracted = len(items)

	if rule.SkipImageLookup {
		return items, st
	}

	// Recovery runs for every item that carries an id: a found payload
	// overwrites whatever image the card itself offered (typically a
	// placeholder thumbnail), a miss keeps it.
	for i := range items {
		if items[i].ID == "" {
			continue
		}
		payload, err := imageparser.FindImage(h.doc, items[i].ID)
		if err != nil {
			st.RecoveryMisses++
			continue
		}
		items[i].Image = &payload
		st.Recovered++
	}

	return items, st
}

// ToObj returns the JSON-ready result mapping: one entry per configured
// category, each an ordered item list. Empty categories are empty non-nil
// slices so they serialize as [] rather than null. The returned map and
// slices are copies; mutating them does not affect the handler.
func (h *Handler) ToObj() map[string][]Item {
	out := make(map[string][]Item, len(h.items))
	for name, items := range h.items {
		list := make([]Item, len(items))
		copy(list, items)
		out[name] = list
	}
	return out
}

// Stats returns per-category extraction counters for the run.
func (h *Handler) Stats() map[string]CategoryStats {
	out := make(map[string]CategoryStats, len(h.stats))
	for name, st := range h.stats {
		out[name] = st
	}
	return out
}
