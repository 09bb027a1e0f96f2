// Package imageparser recovers full-resolution carousel images from the
// inline-script payloads of a search results page.
//
// Artwork cards ship with placeholder thumbnails; the real image travels as a
// base64 data URI assigned to `var s` inside a script block, tied back to the
// card by a `var ii=['<id>']` marker where <id> matches the id attribute of
// the card's img node. This package is "no browser, no JS execution": it
// pattern-matches the assignment and the marker, nothing more.
package imageparser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NotFoundError reports that no script block carried a confirmed image
// payload for the identifier.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no script image payload for id %q", e.ID)
}

// reImageAssign matches `var s = <quoted data URI>`. The quote may be single,
// double, or backtick; the closing quote must match the opening one, and the
// payload never contains any of the three quote characters.
var reImageAssign = regexp.MustCompile(
	"var\\s+s\\s*=\\s*(?:'(data:image[^'\"`]+)'|\"(data:image[^'\"`]+)\"|`(data:image[^'\"`]+)`)")

// FindImage scans every inline script block of doc in document order and
// returns the image payload whose block also carries the `var ii=['<id>']`
// marker. The first block satisfying both conditions wins; a block matching
// the assignment but naming a different id is skipped and the scan continues.
//
// Before returning, every literal `\x3d` in the payload is replaced with `=`:
// an upstream escaping step corrupts the base64 padding that way.
//
// If no block confirms the identifier, FindImage returns a NotFoundError.
//
// Scripts appear in the same relative order as the images they back, so a
// position hint could bound this scan; with one lookup per artwork card the
// full scan is cheap enough.
func FindImage(doc *goquery.Document, id string) (string, error) {
	marker := "var ii=['" + id + "']"

	var payload string
	found := false
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		candidate, ok := dataImagePayload(text)
		if !ok {
			return true
		}
		// The marker sits at the tail of megabyte-scale image blocks;
		// searching from the back avoids re-walking the payload.
		if strings.LastIndex(text, marker) == -1 {
			return true
		}
		payload = strings.ReplaceAll(candidate, `\x3d`, "=")
		found = true
		return false
	})

	if !found {
		return "", &NotFoundError{ID: id}
	}
	return payload, nil
}

// dataImagePayload returns the first quoted data URI assigned to `var s` in
// script, or ok=false when the block carries no such assignment.
func dataImagePayload(script string) (string, bool) {
	m := reImageAssign.FindStringSubmatch(script)
	if m == nil {
		return "", false
	}
	for _, group := range m[1:] {
		if group != "" {
			return group, true
		}
	}
	return "", false
}
