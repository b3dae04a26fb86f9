// Package stringutils normalizes optional text fields from request payloads.
package stringutils

import "strings"

// NullIfBlank returns nil for a missing or whitespace-only value and the
// trimmed string otherwise, ready to be bound as a nullable column.
func NullIfBlank(value *string) any {
	if v, ok := Trimmed(value); ok {
		return v
	}
	return nil
}

// Trimmed reports the trimmed value and whether anything was left.
func Trimmed(value *string) (string, bool) {
	if value == nil {
		return "", false
	}
	v := strings.TrimSpace(*value)
	return v, v != ""
}
