package shared

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// FoldSearchTerm lowercases a search term and strips diacritics, so that
// "José" and "jose" hit the same rows. Client and user names are routinely
// accented; the listings match them accent-insensitively.
func FoldSearchTerm(term string) string {
	term = strings.TrimSpace(strings.ToLower(term))
	if term == "" {
		return ""
	}
	folded, _, err := transform.String(foldTransformer, term)
	if err != nil {
		return term
	}
	return folded
}
