// Package fuzzy provides 0-100 string similarity scores for name and title matching.
package fuzzy

import (
	"sort"
	"strings"
	"unicode"
)

// Ratio returns the similarity of a and b on a 0-100 scale from their
// insertion/deletion distance: 100 * (1 - indel / (len(a)+len(b))), counted
// in runes. A substitution costs two edits, so strings sharing no rune score 0.
func Ratio(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 100
	}
	indel := total - 2*lcsLength(ra, rb)
	return roundScore(float64(total-indel) / float64(total) * 100)
}

// lcsLength is the length of the longest common subsequence of a and b.
func lcsLength(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// TokenSetRatio compares the lower-cased token sets of a and b, ignoring word
// order and duplicated words. A token set fully contained in the other scores 100.
func TokenSetRatio(a, b string) int {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var common, onlyA, onlyB []string
	for tok := range ta {
		if tb[tok] {
			common = append(common, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range tb {
		if !ta[tok] {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	if len(common) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	base := strings.Join(common, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := Ratio(withA, withB)
	if base != "" {
		best = max(best, Ratio(base, withA), Ratio(base, withB))
	}
	return best
}

// PartialRatio scores how well needle appears somewhere inside haystack: the
// best Ratio between needle and any haystack window of the same rune length.
// Comparison is case-insensitive and a literal substring scores 100.
func PartialRatio(needle, haystack string) int {
	needle = strings.ToLower(strings.TrimSpace(needle))
	haystack = strings.ToLower(strings.TrimSpace(haystack))
	if needle == "" || haystack == "" {
		return 0
	}
	if strings.Contains(haystack, needle) {
		return 100
	}

	n, h := []rune(needle), []rune(haystack)
	if len(n) > len(h) {
		n, h = h, n
	}
	short := string(n)
	best := 0
	for i := 0; i+len(n) <= len(h); i++ {
		if score := Ratio(short, string(h[i:i+len(n)])); score > best {
			best = score
			if best == 100 {
				break
			}
		}
	}
	return best
}

// tokenSet splits s into a set of lower-cased alphanumeric tokens.
func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), isSeparator) {
		set[tok] = true
	}
	return set
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func roundScore(f float64) int {
	return int(f + 0.5)
}
