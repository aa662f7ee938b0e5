// Package account extracts canonical account codes from free text and applies
// the per-account sign convention between the two sources.
package account

import (
	"regexp"
	"sort"
	"strings"
)

// Patterns in priority order: letter-prefixed codes win over plain codes.
var codePatterns = []*regexp.Regexp{
	regexp.MustCompile(`[A-Za-z]\d{3}-\d{4}`),
	regexp.MustCompile(`\d{4}-\d{4}`),
}

var canonicalCode = regexp.MustCompile(`^(?:[A-Za-z]\d{3}-\d{4}|\d{4}-\d{4})$`)

// Normalize returns the first canonical account code found in text, or the
// trimmed text when none is present.
//
//	"6101-6001 GI revenue" -> "6101-6001"
//	"  Salaries "          -> "Salaries"
func Normalize(text string) string {
	for _, re := range codePatterns {
		if m := re.FindString(text); m != "" {
			return m
		}
	}
	return strings.TrimSpace(text)
}

// IsCanonical reports whether s is exactly an account code.
func IsCanonical(s string) bool {
	return canonicalCode.MatchString(strings.TrimSpace(s))
}

// FindAll lists every distinct account code in text in order of appearance.
func FindAll(text string) []string {
	type hit struct {
		pos  int
		code string
	}
	var hits []hit
	taken := make([]bool, len(text))
	for _, re := range codePatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			overlap := false
			for i := loc[0]; i < loc[1]; i++ {
				if taken[i] {
					overlap = true
					break
				}
			}
			if overlap {
				continue
			}
			for i := loc[0]; i < loc[1]; i++ {
				taken[i] = true
			}
			hits = append(hits, hit{pos: loc[0], code: text[loc[0]:loc[1]]})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	seen := make(map[string]struct{}, len(hits))
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		if _, ok := seen[h.code]; ok {
			continue
		}
		seen[h.code] = struct{}{}
		out = append(out, h.code)
	}
	return out
}

// Same reports whether text identifies the account named by member. Codes
// compare exactly; free-form names compare case-insensitively.
func Same(text, member string) bool {
	a, b := Normalize(text), Normalize(member)
	if IsCanonical(a) || IsCanonical(b) {
		return a == b
	}
	return strings.EqualFold(a, b)
}

var columnNames = []string{"CAReportName", "Account", "Account Number", "AccountNumber", "Acct"}

// ColumnName picks the column holding account identifiers: a known name
// first, then any column whose name contains "account".
func ColumnName(columns []string) (string, bool) {
	for _, want := range columnNames {
		for _, c := range columns {
			if strings.EqualFold(strings.TrimSpace(c), want) {
				return c, true
			}
		}
	}
	for _, c := range columns {
		if strings.Contains(strings.ToLower(c), "account") {
			return c, true
		}
	}
	return "", false
}
