package validators

import "strings"

// SanitizeString collapses runs of whitespace and truncates to maxRunes
// characters. A non-positive maxRunes disables truncation.
func SanitizeString(input string, maxRunes int) string {
	cleaned := strings.Join(strings.Fields(input), " ")
	if maxRunes <= 0 {
		return cleaned
	}
	runes := []rune(cleaned)
	if len(runes) <= maxRunes {
		return cleaned
	}
	return strings.TrimSpace(string(runes[:maxRunes]))
}
