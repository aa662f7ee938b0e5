package recon

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"finrecon/internal/aggregate"
	"finrecon/internal/colmatch"
	"finrecon/internal/compare"
	"finrecon/internal/discrepancy"
	"finrecon/internal/join"
)

type Status string

const (
	StatusOK                  Status = "ok"
	StatusEmptyInput          Status = "empty_input"
	StatusNoComparableColumns Status = "no_comparable_columns"
	StatusNoKeyColumns        Status = "no_key_columns"
)

// OverallMatchPercent is the mismatch percentage below which a run is
// reported as an overall match.
const OverallMatchPercent = 1.0

type Summary struct {
	TotalCells         int     `json:"total_cells"`
	MatchingCells      int     `json:"matching_cells"`
	MismatchingCells   int     `json:"mismatching_cells"`
	MismatchPercentage float64 `json:"mismatch_percentage"`
	OverallMatch       bool    `json:"overall_match"`
}

type Report struct {
	Status          Status                 `json:"status"`
	Reason          string                 `json:"reason,omitempty"`
	Tolerance       float64                `json:"tolerance"`
	SignFlip        []string               `json:"sign_flip_accounts"`
	Mapping         colmatch.Mapping       `json:"column_mapping"`
	Keys            join.Keys              `json:"join_keys"`
	LeftRows        int                    `json:"left_rows"`
	RightRows       int                    `json:"right_rows"`
	MatchedRows     int                    `json:"matched_rows"`
	LeftOnlyRows    int                    `json:"left_only_rows"`
	RightOnlyRows   int                    `json:"right_only_rows"`
	Duplicates      join.Duplicates        `json:"duplicates"`
	Columns         []compare.ColumnResult `json:"columns"`
	Summary         Summary                `json:"summary"`
	Discrepancies   []discrepancy.Record   `json:"discrepancies"`
	FormulaFailures []aggregate.Failure    `json:"formula_failures,omitempty"`
}

func (r Report) OK() bool { return r.Status == StatusOK }

func (r Report) fail(s Status, reason string) Report {
	r.Status = s
	r.Reason = reason
	return r
}

const topMismatches = 10

// HumanSummary renders a report as plain text for terminals.
func HumanSummary(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s\n", r.Status)
	if !r.OK() {
		fmt.Fprintf(&b, "Reason: %s\n", r.Reason)
		fmt.Fprintf(&b, "Rows: left %s, right %s\n", humanize.Comma(int64(r.LeftRows)), humanize.Comma(int64(r.RightRows)))
		return b.String()
	}
	fmt.Fprintf(&b, "Rows: left %s, right %s, matched %s (left only %s, right only %s)\n",
		humanize.Comma(int64(r.LeftRows)), humanize.Comma(int64(r.RightRows)), humanize.Comma(int64(r.MatchedRows)),
		humanize.Comma(int64(r.LeftOnlyRows)), humanize.Comma(int64(r.RightOnlyRows)))
	keyDesc := strings.Join(r.Keys.Left, ", ")
	if r.Keys.Positional {
		keyDesc = "row position"
	}
	fmt.Fprintf(&b, "Join key: %s (%s)\n", keyDesc, r.Keys.Reason)
	fmt.Fprintf(&b, "Cells: %s compared, %s matching, %s mismatching (%.2f%%)\n",
		humanize.Comma(int64(r.Summary.TotalCells)), humanize.Comma(int64(r.Summary.MatchingCells)),
		humanize.Comma(int64(r.Summary.MismatchingCells)), r.Summary.MismatchPercentage)
	if r.Summary.OverallMatch {
		b.WriteString("Overall: MATCH\n")
	} else {
		b.WriteString("Overall: MISMATCH\n")
	}
	if r.Duplicates.Any() {
		fmt.Fprintf(&b, "Warning: duplicate join keys (left %d, right %d); matched counts include cross-product rows\n",
			len(r.Duplicates.Left), len(r.Duplicates.Right))
	}
	if len(r.FormulaFailures) > 0 {
		fmt.Fprintf(&b, "Warning: %d formula values could not be computed\n", len(r.FormulaFailures))
	}

	if len(r.Columns) > 0 {
		b.WriteString("\nColumns:\n")
	}
	for _, c := range r.Columns {
		kind := "text"
		if c.IsNumeric {
			kind = "numeric"
		}
		fmt.Fprintf(&b, "  %s <-> %s [%s]: %.2f%% match (%d matches, %d mismatches, %d null)\n",
			c.LeftColumn, c.RightColumn, kind, c.MatchPercentage, c.Matches, c.Mismatches, c.NullMismatches)
	}

	top := append([]discrepancy.Record(nil), r.Discrepancies...)
	sort.SliceStable(top, func(i, j int) bool { return math.Abs(top[i].Variance) > math.Abs(top[j].Variance) })
	if len(top) > topMismatches {
		top = top[:topMismatches]
	}
	if len(top) > 0 {
		fmt.Fprintf(&b, "\nTop discrepancies (%d total):\n", len(r.Discrepancies))
	}
	for _, d := range top {
		side := ""
		switch {
		case d.MissingInLeft:
			side = " missing in left"
		case d.MissingInRight:
			side = " missing in right"
		}
		fmt.Fprintf(&b, "  [%s] %s %s %s%s\n", d.Severity, d.Key, d.Column, humanize.CommafWithDigits(d.Variance, 2), side)
	}
	return b.String()
}
