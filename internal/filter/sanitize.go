package filter

import "strings"

// SanitizeNumeric drops every character outside [0-9.]. Signs are dropped,
// so the result is never negative.
func SanitizeNumeric(raw string) string {
	return strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, raw)
}

// IsNumericField reports whether the state key belongs to a numeric
// capability.
func IsNumericField(field string) bool {
	c, ok := OwnerOf(field)
	return ok && c.Numeric
}
