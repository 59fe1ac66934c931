package tools

import (
	"fmt"
	"unicode/utf8"
)

// MaxToolResponseSize is the default cap on a rendered tool result in bytes
const MaxToolResponseSize = 4000

// TruncateString truncates s to at most maxLen bytes on a rune boundary
// and appends a truncation notice
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}

	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf("\n\n[TRUNCATED - result exceeded %d bytes]", maxLen)
}
