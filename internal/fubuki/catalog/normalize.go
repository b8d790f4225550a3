package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize is the single canonical normalization applied to both keywords
// (at load time) and user input (at resolution time). The two sides must go
// through the same function or containment matching silently breaks for
// accented titles.
//
// Steps: NFKD decomposition, combining-mark removal (diacritic folding),
// lowercasing, whitespace collapse.
func Normalize(s string) string {
	decomposed := norm.NFKD.String(s)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
