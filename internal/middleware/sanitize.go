package middleware

import (
	"strings"
	"unicode"
)

// SanitizeJobDescription removes null bytes and control characters other than
// tab, newline and carriage return. Everything else is kept verbatim; output
// escaping is left to the templates.
func SanitizeJobDescription(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	result.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || r == '\t' || r == '\n' || r == '\r' {
			result.WriteRune(r)
		}
	}

	return result.String()
}
