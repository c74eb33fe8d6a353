package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize trims the string and collapses internal whitespace
// runs to single spaces.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizeName normalizes a classroom display name.
func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeRoomNumber normalizes a room number. Room numbers are
// compared case-insensitively, so they are stored uppercase.
func NormalizeRoomNumber(room string) string {
	normalized := TrimAndNormalize(room)
	return strings.ToUpper(normalized)
}
