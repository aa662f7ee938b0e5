package formula

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Binding maps a user-facing name (a category like "Gross Revenue" or an
// account code like "1234-5678") to the identifier it was rewritten to.
type Binding struct {
	Name  string
	Ident string
}

// Bind rewrites every whole-word occurrence of names in src to a safe
// identifier so names with spaces or dashes survive tokenization. Longer
// names are tried first so "Revenue Net" wins over "Revenue".
func Bind(src string, names []string) (string, []Binding) {
	ordered := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		ordered = append(ordered, n)
	}
	sort.SliceStable(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })

	bindings := make([]Binding, len(ordered))
	for i, n := range ordered {
		bindings[i] = Binding{Name: n, Ident: fmt.Sprintf("__ref%d", i)}
	}

	var b strings.Builder
	for i := 0; i < len(src); {
		matched := false
		if atBoundary(src, i) {
			for _, bd := range bindings {
				end := i + len(bd.Name)
				if strings.HasPrefix(src[i:], bd.Name) && atBoundaryEnd(src, end) {
					b.WriteString(bd.Ident)
					i = end
					matched = true
					break
				}
			}
		}
		if !matched {
			_, size := utf8.DecodeRuneInString(src[i:])
			b.WriteString(src[i : i+size])
			i += size
		}
	}
	return b.String(), bindings
}

func isWordRune(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

func atBoundary(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func atBoundaryEnd(s string, end int) bool {
	if end >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[end:])
	return !isWordRune(r)
}
