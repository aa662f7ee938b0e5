// Package discrepancy lists row-level financial differences between the two
// sources and labels each one minor or major.
package discrepancy

import (
	"math"
	"sort"

	"finrecon/internal/account"
	"finrecon/internal/join"
	"finrecon/internal/table"
)

type Severity string

const (
	Minor Severity = "minor"
	Major Severity = "major"
)

type Record struct {
	Key            string            `json:"key"`
	Keys           map[string]string `json:"keys,omitempty"`
	Account        string            `json:"account,omitempty"`
	Column         string            `json:"column"`
	Variance       float64           `json:"variance"`
	MissingInLeft  bool              `json:"missing_in_left"`
	MissingInRight bool              `json:"missing_in_right"`
	Severity       Severity          `json:"severity,omitempty"`
}

func (r Record) Missing() bool { return r.MissingInLeft || r.MissingInRight }

// Column is a numeric column pair to scan for variances.
type Column struct {
	Left  string
	Right string
}

type Input struct {
	Rows         []join.Row
	Keys         join.Keys
	Columns      []Column
	AccountLeft  string
	AccountRight string
	Flips        account.FlipSet
}

// Build emits one record per joined row and numeric column whose variance is
// nonzero (rounded to six decimals) or whose key is missing on one side.
// Variance is left minus the sign-flipped right; a missing side counts as 0.
func Build(in Input) []Record {
	var out []Record
	for _, row := range in.Rows {
		acct := accountText(row, in.AccountLeft, in.AccountRight)
		keyVals := keyValues(row, in.Keys)
		for _, col := range in.Columns {
			lv := row.LeftValue(col.Left)
			rv := row.RightValue(col.Right)
			if acct != "" {
				rv = in.Flips.Apply(rv, acct)
			}
			lf, _ := table.ToFloat(lv)
			rf, _ := table.ToFloat(rv)
			rec := Record{
				Key:            row.Key,
				Keys:           keyVals,
				Column:         col.Left,
				Variance:       round6(lf - rf),
				MissingInLeft:  row.Left == nil,
				MissingInRight: row.Right == nil,
			}
			if acct != "" {
				rec.Account = account.Normalize(acct)
			}
			if rec.Variance == 0 && !rec.Missing() {
				continue
			}
			out = append(out, rec)
		}
	}
	return out
}

func accountText(row join.Row, leftCol, rightCol string) string {
	if leftCol != "" {
		if v := row.LeftValue(leftCol); !table.IsNull(v) {
			return table.Text(v)
		}
	}
	if rightCol != "" {
		return table.Text(row.RightValue(rightCol))
	}
	return ""
}

func keyValues(row join.Row, keys join.Keys) map[string]string {
	if len(keys.Left) == 0 {
		return nil
	}
	out := make(map[string]string, len(keys.Left))
	for i, c := range keys.Left {
		v := row.LeftValue(c)
		if row.Left == nil && i < len(keys.Right) {
			v = row.RightValue(keys.Right[i])
		}
		out[c] = table.KeyString(v)
	}
	return out
}

// Classify labels every record against one threshold computed over the whole
// input: median(|variance|) plus its sample standard deviation. The standard
// deviation is dropped when undefined (a single record). Records with a
// missing side are always major. The input slice is not modified.
func Classify(records []Record) []Record {
	out := append([]Record(nil), records...)
	if len(out) == 0 {
		return out
	}
	abs := make([]float64, len(out))
	for i, r := range out {
		abs[i] = math.Abs(r.Variance)
	}
	threshold := Threshold(abs)
	for i := range out {
		switch {
		case out[i].Missing():
			out[i].Severity = Major
		case abs[i] > threshold:
			out[i].Severity = Major
		default:
			out[i].Severity = Minor
		}
	}
	return out
}

// Threshold is median + sample stddev of xs, or the median alone when the
// stddev is undefined.
func Threshold(xs []float64) float64 {
	med := median(xs)
	sd := stddev(xs)
	if math.IsNaN(sd) {
		return med
	}
	return med + sd
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	ss := 0.0
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }
