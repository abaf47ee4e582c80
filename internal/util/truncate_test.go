package util

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name         string
		in           string
		max          int
		wordBoundary bool
		want         string
	}{
		{"short", "Council tender", 20, false, "Council tender"},
		{"exact", "abcde", 5, false, "abcde"},
		{"cut", "Council tenders excavator hire", 10, false, "Council..."},
		{"word boundary", "Council tenders excavator hire", 20, true, "Council tenders..."},
		{"no space", "excavatorhireexcavatorhire", 10, true, "excavat..."},
		{"tiny", "Council", 2, false, ".."},
		{"zero", "Council", 0, false, ""},
		{"multibyte", "Überschwemmung im Landkreis", 8, false, "Übers..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.in, tt.max, tt.wordBoundary)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), tt.max)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
