// Package carousel extracts structured records (artworks, books, songs) from
// the carousel widgets of a saved Google search results page.
//
// The package is the pure core of the pipeline: it parses one markup string,
// applies a set of category rules against the document tree, and assembles a
// JSON-ready mapping of category name to item list. Loading pages and writing
// output belong to the callers in cmd/; nothing here touches the network.
package carousel

import (
	"fmt"
	"strings"
)

// Schema selects the field-extraction rules for one item variant.
//
// The set is closed: extraction dispatches over exactly these three variants,
// so adding a schema means extending the selector table and the parser below.
type Schema int

const (
	SchemaArtwork Schema = iota
	SchemaBook
	SchemaSong
)

// String returns the lowercase schema name used in rules files and errors.
func (s Schema) String() string {
	switch s {
	case SchemaArtwork:
		return "artwork"
	case SchemaBook:
		return "book"
	case SchemaSong:
		return "song"
	default:
		return fmt.Sprintf("schema(%d)", int(s))
	}
}

// ParseSchema maps a rules-file schema name to a Schema, case-insensitively.
func ParseSchema(name string) (Schema, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "artwork":
		return SchemaArtwork, nil
	case "book":
		return SchemaBook, nil
	case "song":
		return SchemaSong, nil
	default:
		return 0, fmt.Errorf("unknown schema %q (want artwork, book, or song)", name)
	}
}

// schemaSelectors holds the class predicates consumed by extractItem for one
// schema. All lookups are div-tag class matches inside the item's anchor.
type schemaSelectors struct {
	info        string // info container under the anchor
	title       string // title node under the info container
	extensions  string // extensions container under the info container
	dropDivider bool   // drop lone " · " fragments (song metadata separator)
}

// selectors returns the class predicates for s. The constants track the
// production page markup and are treated as opaque exact-match values.
func (s Schema) selectors() (schemaSelectors, bool) {
	switch s {
	case SchemaArtwork:
		return schemaSelectors{info: "KHK6lb", title: "pgNMRc", extensions: "cxzHyb"}, true
	case SchemaBook:
		return schemaSelectors{info: "TT9RUc uV10if", title: "JjtOHd", extensions: "ellip yF4Rkc AqEFvb"}, true
	case SchemaSong:
		return schemaSelectors{info: "junCMe", title: "CYJS5e title", extensions: "uDMnUc wYIIv", dropDivider: true}, true
	default:
		return schemaSelectors{}, false
	}
}

// Rule ties an output category name to the markup that carries its items.
//
// ContainerClass locates the carousel widget in the document; ItemClass
// locates one card inside it. Both are class predicates: a node matches when
// it carries every class listed in the (possibly space-separated) value.
type Rule struct {
	Name            string
	Schema          Schema
	ContainerClass  string
	ItemClass       string
	SkipImageLookup bool
}

// DefaultRules returns the category set for a standard google.com results
// page. A fresh slice is returned on every call; callers own their copy and
// may trim or extend it without affecting other runs.
//
// Image recovery is only attempted for artworks: book and song cards carry
// usable thumbnails directly, while artwork thumbnails are placeholders whose
// real payload hides in inline scripts.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "artworks", Schema: SchemaArtwork, ContainerClass: "Cz5hV", ItemClass: "iELo6"},
		{Name: "books", Schema: SchemaBook, ContainerClass: "JCZQSb", ItemClass: "Z8r5Gb X8kvh PZPZlf", SkipImageLookup: true},
		{Name: "songs", Schema: SchemaSong, ContainerClass: "uciohe", ItemClass: "kIXOkb cULTof", SkipImageLookup: true},
	}
}

// Item is one extracted carousel record, shaped for JSON output.
//
// Image is a pointer so the serialized object always carries an "image" key,
// null when no image was found. Extensions is omitted entirely when empty.
// ID is the short token correlating the card to an inline-script image
// payload; it only drives the deferred image lookup and is never serialized.
type Item struct {
	Title      string   `json:"name"`
	Extensions []string `json:"extensions,omitempty"`
	Link       string   `json:"link"`
	Image      *string  `json:"image"`
	ID         string   `json:"-"`
}
