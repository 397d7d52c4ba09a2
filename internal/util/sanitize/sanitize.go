// Package sanitize cleans names typed or pasted by users before they are
// sent to the backend.
//
// It removes:
//   - invisible Unicode characters (zero-width spaces, BOM, soft hyphen)
//   - line breaks and tabs
//   - runs of whitespace
package sanitize

import (
	"regexp"
	"strings"
)

var invisibleChars = strings.NewReplacer(
	"\u200B", "", // Zero-width space
	"\u200C", "", // Zero-width non-joiner
	"\u200D", "", // Zero-width joiner
	"\uFEFF", "", // Zero-width no-break space (BOM)
	"\u00AD", "", // Soft hyphen
	"\u2060", "", // Word joiner
	"\u180E", "", // Mongolian vowel separator
)

var whitespace = regexp.MustCompile(`\s+`)

// Name returns s as a single trimmed line with invisible characters removed
// and whitespace collapsed to single spaces.
func Name(s string) string {
	if s == "" {
		return s
	}
	s = invisibleChars.Replace(s)
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
