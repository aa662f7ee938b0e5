// Package compare decides, cell by cell, whether two aligned columns agree.
package compare

import (
	"math"
	"strings"

	"finrecon/internal/account"
	"finrecon/internal/table"
)

const DefaultTolerance = 0.001

const (
	KindNull   = "NULL mismatch"
	KindString = "String mismatch"
)

// Input is one aligned column pair over the matched rows. Accounts and Keys
// are optional and, when set, parallel to Left and Right.
type Input struct {
	LeftColumn  string
	RightColumn string
	Left        []any
	Right       []any
	Accounts    []string
	Keys        []string
}

type Mismatch struct {
	Row        int      `json:"row"`
	Key        string   `json:"key,omitempty"`
	Left       any      `json:"left"`
	Right      any      `json:"right"`
	Difference *float64 `json:"difference,omitempty"`
	Kind       string   `json:"kind,omitempty"`
}

type ColumnResult struct {
	LeftColumn      string     `json:"left_column"`
	RightColumn     string     `json:"right_column"`
	IsNumeric       bool       `json:"is_numeric"`
	Matches         int        `json:"matches"`
	Mismatches      int        `json:"mismatches"`
	NullMismatches  int        `json:"null_mismatches"`
	MismatchRows    []Mismatch `json:"mismatch_rows"`
	MatchPercentage float64    `json:"match_percentage"`
}

// IsNumericColumn reports whether more than half of the values coerce to a
// number. Nulls count against the ratio.
func IsNumericColumn(values []any) bool {
	if len(values) == 0 {
		return false
	}
	n := 0
	for _, v := range values {
		if _, ok := table.ToFloat(v); ok {
			n++
		}
	}
	return n*2 > len(values)
}

// Compare runs the per-cell rules over one column pair. The column is
// numeric only when both sides are; the right value is sign-flipped per row
// before any comparison when an account series is present.
func Compare(in Input, flips account.FlipSet, tolerance float64) ColumnResult {
	res := ColumnResult{
		LeftColumn:   in.LeftColumn,
		RightColumn:  in.RightColumn,
		IsNumeric:    IsNumericColumn(in.Left) && IsNumericColumn(in.Right),
		MismatchRows: []Mismatch{},
	}
	n := len(in.Left)
	if len(in.Right) < n {
		n = len(in.Right)
	}
	for i := 0; i < n; i++ {
		lv, rv := in.Left[i], in.Right[i]
		if res.IsNumeric && i < len(in.Accounts) {
			rv = flips.Apply(rv, in.Accounts[i])
		}
		m := Mismatch{Row: i, Left: recorded(lv), Right: recorded(rv)}
		if i < len(in.Keys) {
			m.Key = in.Keys[i]
		}

		switch outcome, diff := cell(lv, rv, res.IsNumeric, tolerance); outcome {
		case outcomeMatch:
			res.Matches++
		case outcomeNull:
			res.Mismatches++
			res.NullMismatches++
			m.Kind = KindNull
			res.MismatchRows = append(res.MismatchRows, m)
		case outcomeString:
			res.Mismatches++
			m.Kind = KindString
			res.MismatchRows = append(res.MismatchRows, m)
		case outcomeNumeric:
			res.Mismatches++
			m.Difference = &diff
			res.MismatchRows = append(res.MismatchRows, m)
		}
	}
	if total := res.Matches + res.Mismatches; total > 0 {
		res.MatchPercentage = float64(res.Matches) / float64(total) * 100
	}
	return res
}

// recorded drops null cells to nil so a NaN never reaches the JSON encoder.
func recorded(v any) any {
	if table.IsNull(v) {
		return nil
	}
	return v
}

type outcome int

const (
	outcomeMatch outcome = iota
	outcomeNull
	outcomeString
	outcomeNumeric
)

func cell(lv, rv any, numeric bool, tolerance float64) (outcome, float64) {
	lnull, rnull := table.IsNull(lv), table.IsNull(rv)
	switch {
	case lnull && rnull:
		return outcomeMatch, 0
	case lnull || rnull:
		if numeric && blankEqualsZero(lv, rv, lnull) {
			return outcomeMatch, 0
		}
		return outcomeNull, 0
	}
	if numeric {
		lf, lok := table.ToFloat(lv)
		rf, rok := table.ToFloat(rv)
		if lok && rok {
			if WithinTolerance(lf, rf, tolerance) {
				return outcomeMatch, 0
			}
			return outcomeNumeric, lf - rf
		}
	}
	if TextEqual(lv, rv) {
		return outcomeMatch, 0
	}
	return outcomeString, 0
}

// blankEqualsZero is the financial-sheet rule that an empty cell and a zero
// amount agree.
func blankEqualsZero(lv, rv any, leftIsNull bool) bool {
	other := lv
	if leftIsNull {
		other = rv
	}
	f, ok := table.ToFloat(other)
	return ok && f == 0
}

// WithinTolerance applies a relative tolerance above magnitude 1 and an
// absolute tolerance at or below it.
func WithinTolerance(left, right, tolerance float64) bool {
	diff := math.Abs(left - right)
	scale := math.Max(math.Abs(left), math.Abs(right))
	if scale > 1 {
		return diff/scale <= tolerance
	}
	return diff <= tolerance
}

// TextEqual compares trimmed, case-folded string forms.
func TextEqual(a, b any) bool {
	return strings.EqualFold(table.Text(a), table.Text(b))
}
