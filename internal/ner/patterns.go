package ner

import (
	"regexp"
	"strings"
	"unicode"
)

// grantPattern matches a grant, contract or award code, including the
// "grant agreement No. 12345" phrasing. Group 1 is the code.
var grantPattern = regexp.MustCompile(
	`(?i)\b(?:grant|contract|award)s?(?:\s+agreement)?(?:\s+(?:no|nos|number|n°|nr)\.?)?[\s:#]*([A-Z0-9][A-Z0-9\-/.]*[A-Z0-9])`)

// programmePattern matches funder programme names that are projects in
// their own right.
var programmePattern = regexp.MustCompile(
	`(?i)\b(Horizon 2020|Horizon Europe|H2020|FP7|Seventh Framework Programme|Marie Sk[łl]odowska[- ]Curie(?: Actions)?)\b`)

// GrantCodes returns the codes following grant/contract/award phrasing.
// A code must contain at least one digit.
func GrantCodes(text string) []string {
	var codes []string
	for _, m := range grantPattern.FindAllStringSubmatch(text, -1) {
		if strings.IndexFunc(m[1], unicode.IsDigit) >= 0 {
			codes = append(codes, m[1])
		}
	}
	return codes
}

// Programmes returns the known funder programme names mentioned in text.
func Programmes(text string) []string {
	return programmePattern.FindAllString(text, -1)
}
