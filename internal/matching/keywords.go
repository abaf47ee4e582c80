package matching

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		// articles, conjunctions, prepositions
		"the", "and", "for", "with", "from", "into", "that", "this", "are", "was",
		"has", "have", "its", "new", "over", "after", "about", "will",
		// generic industry and geography filler
		"news", "report", "update", "latest", "company", "group", "ltd", "inc",
		"pty", "limited", "industry", "market", "sector", "australia", "australian",
		"nsw", "vic", "qld", "global", "national", "local", "region", "regional",
	} {
		stopWords[w] = struct{}{}
	}
}

// ExtractKeywords lowercases text, replaces punctuation with spaces and
// returns the distinct tokens longer than two characters that are not stop
// words, in order of first appearance.
func ExtractKeywords(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)

	seen := make(map[string]struct{})
	var out []string
	for _, tok := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(tok) <= 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// SharedKeywords counts the distinct keywords present in both a and b.
func SharedKeywords(a, b string) int {
	left := ExtractKeywords(a)
	if len(left) == 0 {
		return 0
	}
	right := make(map[string]struct{})
	for _, k := range ExtractKeywords(b) {
		right[k] = struct{}{}
	}
	n := 0
	for _, k := range left {
		if _, ok := right[k]; ok {
			n++
		}
	}
	return n
}
