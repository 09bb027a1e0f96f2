package carousel

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// dividerFragment is the cosmetic separator between song metadata sub-fields.
// It appears as a bare text node between spans and carries no data.
const dividerFragment = " · "

// divClassSelector turns a space-separated class constant into a goquery
// selector matching div nodes that carry every listed class.
//
//	"Z8r5Gb X8kvh PZPZlf" -> "div.Z8r5Gb.X8kvh.PZPZlf"
func divClassSelector(classes string) string {
	return "div." + strings.Join(strings.Fields(classes), ".")
}

// extractItem parses one carousel card into an Item using the selector set
// for schema.
//
// Field rules:
//   - anchor, image node, info container, extensions container, and the
//     anchor's href are required; a missing one yields a StructureError.
//   - the image source prefers the full-resolution data-src attribute, falls
//     back to the src thumbnail, and may stay unset. Attribute values are
//     entity-unescaped verbatim, never trimmed.
//   - the image node's id attribute is captured whenever present, regardless
//     of which image source was used. It feeds the deferred script lookup,
//     whose result overwrites a thumbnail on success.
//   - the title is entity-unescaped text; a missing node or empty text yields
//     a TitleMissingError.
//
// Errors never escape the handler: a failing item is dropped and its
// siblings still extract.
func extractItem(node *goquery.Selection, schema Schema) (Item, error) {
	sel, ok := schema.selectors()
	if !ok {
		return Item{}, &StructureError{Schema: schema, Missing: "selector table entry"}
	}

	anchor := node.Find("a").First()
	if anchor.Length() == 0 {
		return Item{}, &StructureError{Schema: schema, Missing: "a"}
	}
	img := anchor.Find("img").First()
	if img.Length() == 0 {
		return Item{}, &StructureError{Schema: schema, Missing: "img"}
	}
	info := anchor.Find(divClassSelector(sel.info)).First()
	if info.Length() == 0 {
		return Item{}, &StructureError{Schema: schema, Missing: "info container"}
	}

	var it Item

	if v, ok := img.Attr("data-src"); ok {
		s := html.UnescapeString(v)
		it.Image = &s
	} else if v, ok := img.Attr("src"); ok {
		s := html.UnescapeString(v)
		it.Image = &s
	}
	if v, ok := img.Attr("id"); ok {
		it.ID = v
	}

	href, ok := anchor.Attr("href")
	if !ok {
		return Item{}, &StructureError{Schema: schema, Missing: "href"}
	}
	it.Link = QualifyLink(href)

	titleNode := info.Find(divClassSelector(sel.title)).First()
	if titleNode.Length() == 0 {
		return Item{}, &TitleMissingError{Schema: schema}
	}
	title := html.UnescapeString(titleNode.Text())
	if title == "" {
		return Item{}, &TitleMissingError{Schema: schema}
	}
	it.Title = title

	extNode := info.Find(divClassSelector(sel.extensions)).First()
	if extNode.Length() == 0 {
		return Item{}, &StructureError{Schema: schema, Missing: "extensions container"}
	}
	it.Extensions = childFragments(extNode, sel.dropDivider)

	return it, nil
}

// childFragments collects the text of the container's immediate children
// (element and text nodes alike) in document order. With dropDivider set,
// fragments exactly equal to the lone " · " separator are skipped; everything
// else, including whitespace-bearing fragments, passes through verbatim.
func childFragments(container *goquery.Selection, dropDivider bool) []string {
	var out []string
	container.Contents().Each(func(_ int, c *goquery.Selection) {
		text := c.Text()
		if dropDivider && text == dividerFragment {
			return
		}
		out = append(out, text)
	})
	return out
}
