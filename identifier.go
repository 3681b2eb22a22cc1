package session

import "strings"

// NormalizeIdentifier converts a user-supplied identifier into the provider's
// addressable form: whitespace replaced with the filler rune and the namespace
// suffix appended. Identifiers already carrying the suffix are returned with
// only the whitespace substitution, so the transform is idempotent.
func NormalizeIdentifier(identifier, suffix string, filler rune) string {
	identifier = replaceWhitespace(strings.TrimSpace(identifier), filler)

	if suffix == "" {
		return identifier
	}

	if strings.Contains(identifier, suffix) {
		return identifier
	}

	return identifier + "@" + suffix
}

// DeriveIdentifier builds the addressable identifier a registration creates
// from a display name. Same transform as NormalizeIdentifier; kept separate
// so call sites read as what they do.
func DeriveIdentifier(displayName, suffix string, filler rune) string {
	return NormalizeIdentifier(displayName, suffix, filler)
}

func replaceWhitespace(s string, filler rune) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return filler
		}
		return r
	}, s)
}
