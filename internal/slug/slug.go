// Package slug derives URL-safe identifiers from article titles.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents decomposes characters and removes combining marks, so that
// "política" and "politica" produce the same slug.
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Make converts a title into its canonical slug: lowercase, accents
// stripped, anything but letters, digits, hyphens and spaces dropped,
// whitespace runs collapsed to single hyphens.
func Make(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))

	if out, _, err := transform.String(stripAccents, s); err == nil {
		s = out
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == ' ':
			b.WriteRune(r)
		}
	}

	return strings.Trim(strings.Join(strings.Fields(b.String()), "-"), "-")
}
