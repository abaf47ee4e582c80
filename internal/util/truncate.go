// Package util holds small string helpers shared by the logging paths.
package util

import "unicode"

const ellipsis = "..."

// Truncate shortens s to at most max runes, ending in "..." when cut. With
// wordBoundary set the cut moves back to the last whitespace if there is one.
func Truncate(s string, max int, wordBoundary bool) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= len(ellipsis) {
		return ellipsis[:max]
	}
	cut := max - len(ellipsis)
	if wordBoundary {
		for i := cut - 1; i > 0; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
	}
	return string(runes[:cut]) + ellipsis
}
