// Package normalize provides the canonical cleaning and keying of entity names.
//
// Every component that deduplicates names (candidate extraction, the authority
// cache, the graph assembler's identity maps) keys on Key so that two spellings
// differing only in case, Unicode compatibility form, or whitespace collapse to
// the same entry.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// trimCutset is stripped from both ends of a cleaned name.
const trimCutset = " ,;.:"

// Clean applies NFKC normalization, collapses internal whitespace to single
// spaces, and strips surrounding punctuation noise.
func Clean(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, trimCutset)
}

// Key returns the case-folded form of Clean(s).
func Key(s string) string {
	return cases.Fold().String(Clean(s))
}

// Equal reports whether a and b normalize to the same key.
func Equal(a, b string) bool {
	return Key(a) == Key(b)
}
