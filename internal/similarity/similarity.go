// Package similarity scores how alike two short strings are, such as a
// company name and the label of a domain it might own.
package similarity

import (
	"github.com/pmezard/go-difflib/difflib"
)

// Ratio returns the Ratcliff/Obershelp similarity of a and b in [0, 1]:
// twice the number of characters in recursively matched blocks divided by
// the combined length of both strings.
//
// Two empty strings are identical and score 1. The matcher's tie-breaking
// between equally long blocks depends on argument order, so the larger of
// the two orderings is returned to keep Ratio(a, b) == Ratio(b, a).
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	ra, rb := runes(a), runes(b)
	forward := difflib.NewMatcherWithJunk(ra, rb, false, nil).Ratio()
	backward := difflib.NewMatcherWithJunk(rb, ra, false, nil).Ratio()
	if backward > forward {
		return backward
	}
	return forward
}

// runes splits s into one element per character, the unit the matcher compares.
func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
