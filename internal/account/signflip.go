package account

import (
	"sort"
	"strings"

	"finrecon/internal/table"
)

// FlipSet holds the accounts whose values carry the opposite sign in the
// query-origin source. A nil FlipSet flips nothing.
type FlipSet map[string]struct{}

// NewFlipSet trims each account and skips blanks.
func NewFlipSet(accounts ...string) FlipSet {
	s := make(FlipSet, len(accounts))
	for _, a := range accounts {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		s[a] = struct{}{}
	}
	return s
}

// ShouldFlip matches the extracted code of accountText against the set.
// Substrings never match.
func (s FlipSet) ShouldFlip(accountText string) bool {
	if len(s) == 0 {
		return false
	}
	_, ok := s[Normalize(accountText)]
	return ok
}

// Apply negates value when accountText is flip-eligible. Values that do not
// coerce to a number are returned unchanged.
func (s FlipSet) Apply(value any, accountText string) any {
	if !s.ShouldFlip(accountText) {
		return value
	}
	f, ok := table.ToFloat(value)
	if !ok {
		return value
	}
	return -f
}

// Accounts lists the set in sorted order.
func (s FlipSet) Accounts() []string {
	out := make([]string, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
