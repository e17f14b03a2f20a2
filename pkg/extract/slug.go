package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const slugSeparator = '_'

// Slugify lowercases s, folds accented letters to their base form and joins
// the remaining alphanumeric runs with underscores.
func Slugify(s string) string {
	var b strings.Builder

	pending := false

	for _, r := range norm.NFKD.String(s) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pending && b.Len() > 0 {
				b.WriteRune(slugSeparator)
			}

			pending = false

			b.WriteRune(unicode.ToLower(r))
		default:
			pending = true
		}
	}

	return b.String()
}
