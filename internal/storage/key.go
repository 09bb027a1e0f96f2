package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// keyFolder strips diacritic marks: decompose, drop combining marks,
// recompose.
var keyFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeKey canonicalizes a display name for keying: trim, lowercase,
// collapse whitespace runs, fold diacritics. "Café  Terrace" and
// "cafe terrace" key identically, so re-extractions of the same page with
// cosmetic markup drift dedupe correctly.
func NormalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	if folded, _, err := transform.String(keyFolder, s); err == nil {
		s = folded
	}
	return s
}

// ItemKey computes the content-derived dedupe key for one item: a SHA-256
// over the normalized category, the normalized name, and the link, joined
// with ASCII Unit Separator (0x1f).
//
// Extensions, image, and position are excluded on purpose: Google reshuffles
// carousel order, swaps thumbnails for recovered payloads, and drifts the
// little subtitle fragments between downloads, and none of that makes the
// card a different item.
//
// Output is a lowercase hex string (length 64), always non-empty, so the
// UNIQUE constraint never sees a NULL component.
func ItemKey(category, name, link string) string {
	var b strings.Builder
	b.Grow(len(category) + len(name) + len(link) + 2)

	b.WriteString(NormalizeKey(category))
	b.WriteByte('\x1f')
	b.WriteString(NormalizeKey(name))
	b.WriteByte('\x1f')
	b.WriteString(link)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
