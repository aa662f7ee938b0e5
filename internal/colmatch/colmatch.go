// Package colmatch aligns column names between the spreadsheet-origin and
// query-origin row sets.
//
// Matching is greedy and order dependent: left columns are visited in their
// original order and a right column, once used, is never offered again.
package colmatch

import (
	"strings"
	"unicode"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

const (
	DefaultThreshold  = 0.6
	fallbackThreshold = 0.3
	positionalScore   = 0.5
)

// Method records which pass produced a pair.
type Method string

const (
	MethodExact      Method = "exact"
	MethodFuzzy      Method = "fuzzy"
	MethodSequence   Method = "sequence"
	MethodPositional Method = "positional"
)

type Pair struct {
	LeftIndex  int     `json:"left_index"`
	Left       string  `json:"left_column"`
	RightIndex int     `json:"right_index"`
	Right      string  `json:"right_column"`
	Score      float64 `json:"match_score"`
	Method     Method  `json:"method"`
}

// Mapping is ordered by left column index.
type Mapping struct {
	Pairs      []Pair `json:"pairs"`
	Positional bool   `json:"positional,omitempty"`
}

func (m Mapping) Empty() bool { return len(m.Pairs) == 0 }

// ByLeft returns the pair for a left column name.
func (m Mapping) ByLeft(name string) (Pair, bool) {
	for _, p := range m.Pairs {
		if p.Left == name {
			return p, true
		}
	}
	return Pair{}, false
}

func (m Mapping) LeftColumns() []string {
	out := make([]string, len(m.Pairs))
	for i, p := range m.Pairs {
		out[i] = p.Left
	}
	return out
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "of": {}, "in": {}, "for": {}, "to": {}, "a": {}, "an": {},
}

// NormalizeName lowercases a header, turns punctuation into spaces, drops
// stop words and collapses whitespace.
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		if _, stop := stopWords[w]; stop {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// CompactName is NormalizeName without spaces ("CA Report Name" -> "careportname").
func CompactName(name string) string {
	return strings.ReplaceAll(NormalizeName(name), " ", "")
}

// Scores is the breakdown behind a fuzzy score.
type Scores struct {
	Sequence    float64 `json:"sequence"`
	Overlap     float64 `json:"overlap"`
	Containment float64 `json:"containment"`
}

func (s Scores) Best() float64 {
	best := s.Sequence
	if s.Overlap > best {
		best = s.Overlap
	}
	if s.Containment > best {
		best = s.Containment
	}
	return best
}

// Similarity scores two already-normalized names.
func Similarity(a, b string) Scores {
	return Scores{
		Sequence:    sequenceRatio(a, b),
		Overlap:     wordOverlap(a, b),
		Containment: containment(a, b),
	}
}

func sequenceRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	ar, br := []rune(a), []rune(b)
	if len(ar)+len(br) == 0 {
		return 1
	}
	return levenshtein.RatioForStrings(ar, br, levenshtein.DefaultOptions)
}

func wordOverlap(a, b string) float64 {
	aw := wordSet(a)
	bw := wordSet(b)
	if len(aw) == 0 || len(bw) == 0 {
		return 0
	}
	shared := 0
	for w := range aw {
		if _, ok := bw[w]; ok {
			shared++
		}
	}
	larger := len(aw)
	if len(bw) > larger {
		larger = len(bw)
	}
	return float64(shared) / float64(larger)
}

func containment(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if !strings.Contains(a, b) && !strings.Contains(b, a) {
		return 0
	}
	la, lb := len([]rune(a)), len([]rune(b))
	if la > lb {
		la, lb = lb, la
	}
	return float64(la) / float64(lb)
}

func wordSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		out[w] = struct{}{}
	}
	return out
}

// Match aligns left columns to right columns. A non-positive threshold means
// DefaultThreshold. The mapping is empty when nothing is comparable.
func Match(left, right []string, threshold float64) Mapping {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	leftNorm := make([]string, len(left))
	for i, c := range left {
		leftNorm[i] = NormalizeName(c)
	}
	rightNorm := make([]string, len(right))
	for i, c := range right {
		rightNorm[i] = NormalizeName(c)
	}

	m := &matcher{
		left: left, right: right,
		leftNorm: leftNorm, rightNorm: rightNorm,
		byLeft:    make(map[int]Pair),
		usedRight: make(map[int]bool),
	}
	m.exactPass()
	m.scoredPass(threshold, MethodFuzzy, func(a, b string) float64 { return Similarity(a, b).Best() })
	if len(m.byLeft) == 0 {
		m.scoredPass(fallbackThreshold, MethodSequence, sequenceRatio)
	}
	if len(m.byLeft) == 0 {
		if m.positionalPass() {
			return Mapping{Pairs: m.ordered(), Positional: true}
		}
	}
	return Mapping{Pairs: m.ordered()}
}

type matcher struct {
	left, right         []string
	leftNorm, rightNorm []string
	byLeft              map[int]Pair
	usedRight           map[int]bool
}

func (m *matcher) record(li, ri int, score float64, method Method) {
	m.byLeft[li] = Pair{
		LeftIndex:  li,
		Left:       m.left[li],
		RightIndex: ri,
		Right:      m.right[ri],
		Score:      score,
		Method:     method,
	}
	m.usedRight[ri] = true
}

func (m *matcher) exactPass() {
	for li, ln := range m.leftNorm {
		if ln == "" {
			continue
		}
		for ri, rn := range m.rightNorm {
			if m.usedRight[ri] || rn != ln {
				continue
			}
			m.record(li, ri, 1.0, MethodExact)
			break
		}
	}
}

func (m *matcher) scoredPass(threshold float64, method Method, score func(a, b string) float64) {
	for li, ln := range m.leftNorm {
		if _, done := m.byLeft[li]; done {
			continue
		}
		best, bestIdx := threshold, -1
		for ri, rn := range m.rightNorm {
			if m.usedRight[ri] {
				continue
			}
			if s := score(ln, rn); s > best {
				best, bestIdx = s, ri
			}
		}
		if bestIdx >= 0 {
			m.record(li, bestIdx, best, method)
		}
	}
}

func (m *matcher) positionalPass() bool {
	sheet := -1
	for i, c := range m.left {
		if IsSheetLabel(c) {
			sheet = i
			break
		}
	}
	if sheet < 0 {
		return false
	}
	ri := 0
	for li := range m.left {
		if li == sheet {
			continue
		}
		if ri >= len(m.right) {
			break
		}
		m.record(li, ri, positionalScore, MethodPositional)
		ri++
	}
	return len(m.byLeft) > 0
}

func (m *matcher) ordered() []Pair {
	out := make([]Pair, 0, len(m.byLeft))
	for li := range m.left {
		if p, ok := m.byLeft[li]; ok {
			out = append(out, p)
		}
	}
	return out
}

// IsSheetLabel reports whether a header names the worksheet a row came from.
func IsSheetLabel(name string) bool {
	switch CompactName(name) {
	case "sheetname", "sheet", "sheetlabel":
		return true
	}
	return false
}
