package shared

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeIdentifier trims surrounding whitespace and applies NFC so that
// visually identical SKUs or names imported from spreadsheets compare equal.
func NormalizeIdentifier(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// NormalizeUpper normalizes and upper-cases enum-like CSV values.
func NormalizeUpper(s string) string {
	return strings.ToUpper(NormalizeIdentifier(s))
}
