// Package similarity scores how alike two metadata strings are.
package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Ratio returns a similarity score in [0, 1] between two strings.
// Comparison is case-insensitive and whitespace-trimmed; two empty
// strings are identical, one empty string matches nothing.
func Ratio(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}

	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// Best returns the highest Ratio between target and any of the
// candidates, 0 when candidates is empty.
func Best(target string, candidates []string) float64 {
	var best float64
	for _, c := range candidates {
		if s := Ratio(target, c); s > best {
			best = s
		}
	}
	return best
}
