package carousel

import "fmt"

// StructureError reports that a required node or attribute was missing from
// an item subtree. Items raising it are malformed and get dropped by the
// handler; the error itself only surfaces through extractItem in tests.
type StructureError struct {
	Schema  Schema
	Missing string // what could not be located, e.g. "a", "img", "href"
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("invalid %s item structure: missing %s", e.Schema, e.Missing)
}

// TitleMissingError reports an item whose title node is absent or empty.
// The title is the only text field whose absence is fatal for the item.
type TitleMissingError struct {
	Schema Schema
}

func (e *TitleMissingError) Error() string {
	return fmt.Sprintf("%s item is missing a title", e.Schema)
}
