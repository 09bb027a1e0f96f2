package carousel

import "strings"

// googleOrigin is prepended to relative carousel links. Region-specific
// domains (google.de, google.co.uk, ...) are not handled; links extracted
// from such pages still point at the .com origin. Known limitation.
const googleOrigin = "https://www.google.com"

// QualifyLink returns link unchanged when it already carries an http:// or
// https:// scheme, and otherwise prepends the google.com origin. The result
// is not validated as a URL. Idempotent: qualifying twice equals qualifying
// once, and QualifyLink("") is the bare origin.
func QualifyLink(link string) string {
	if strings.HasPrefix(link, "https://") || strings.HasPrefix(link, "http://") {
		return link
	}
	return googleOrigin + link
}
