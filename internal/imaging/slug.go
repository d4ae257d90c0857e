package imaging

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Slug ascii-folds, lowercases, and collapses runs of non-alphanumerics to a
// single '-', per §4.4 step 5's key-naming rule.
func Slug(s string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		r = foldASCII(r)
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// foldASCII maps a handful of common accented Latin letters to their
// unaccented ASCII equivalent; anything else passes through untouched and
// falls to Slug's non-alphanumeric collapse.
func foldASCII(r rune) rune {
	switch r {
	case 'à', 'á', 'â', 'ã', 'ä', 'å':
		return 'a'
	case 'è', 'é', 'ê', 'ë':
		return 'e'
	case 'ì', 'í', 'î', 'ï':
		return 'i'
	case 'ò', 'ó', 'ô', 'õ', 'ö':
		return 'o'
	case 'ù', 'ú', 'û', 'ü':
		return 'u'
	case 'ñ':
		return 'n'
	case 'ç':
		return 'c'
	default:
		return r
	}
}

// ImageKey builds the deterministic per-punch storage key described in
// §4.4 step 5: YYYY/MM/DD/<emp-slug>/<location-slug>/<punch>_<capture-ts>_<location-slug>.jpg.
func ImageKey(captureTime time.Time, empSlug, locationSlug, punchType string) string {
	datePart := captureTime.Format("2006/01/02")
	tsPart := captureTime.Format("20060102T150405Z0700")
	return fmt.Sprintf("%s/%s/%s/%s_%s_%s.jpg",
		datePart, empSlug, locationSlug, strings.ToLower(punchType), tsPart, locationSlug)
}
