package person

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitName splits a full name into its first token (given name) and the
// remaining tokens (family name). A single-token name has no family name.
func SplitName(full string) (given, family string) {
	fields := strings.Fields(full)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

var stopwords = map[string]bool{
	"about": true, "above": true, "across": true, "after": true, "against": true,
	"among": true, "analysis": true, "approach": true, "based": true, "before": true,
	"being": true, "below": true, "between": true, "both": true, "case": true,
	"does": true, "during": true, "each": true, "from": true, "have": true,
	"into": true, "more": true, "most": true, "novel": true, "only": true,
	"other": true, "over": true, "paper": true, "some": true, "study": true,
	"such": true, "than": true, "that": true, "their": true, "them": true,
	"then": true, "there": true, "these": true, "they": true, "this": true,
	"those": true, "through": true, "toward": true, "towards": true, "under": true,
	"using": true, "very": true, "what": true, "when": true, "where": true,
	"which": true, "while": true, "with": true, "within": true, "without": true,
}

// Keywords returns the distinct lower-cased content words of title, in
// order, that are at least minLen characters long and not stopwords.
func Keywords(title string, minLen int) []string {
	tokens := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(tokens))
	var out []string
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) < minLen || stopwords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}
