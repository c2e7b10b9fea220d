package sanitizer

import "unicode/utf8"

// SignificantCleaningRatio is the share of removed characters above which a
// "show original" toggle is worth offering.
const SignificantCleaningRatio = 0.2

// HasSignificantCleaning reports whether cleaning removed more than
// SignificantCleaningRatio of raw. Lengths are counted in runes. Either input
// being empty yields false.
func HasSignificantCleaning(raw, cleaned string) bool {
	if raw == "" || cleaned == "" {
		return false
	}

	rawLen := utf8.RuneCountInString(raw)
	cleanedLen := utf8.RuneCountInString(cleaned)
	return float64(rawLen-cleanedLen)/float64(rawLen) > SignificantCleaningRatio
}
