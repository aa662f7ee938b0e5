package recon

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrecon/internal/aggregate"
	"finrecon/internal/discrepancy"
	"finrecon/internal/join"
	"finrecon/internal/source"
	"finrecon/internal/table"
)

var ledgerColumns = []string{"Center", "CAReportName", "Amount"}

func ledger(rows ...table.Row) *table.RowSet { return table.New(ledgerColumns, rows) }

func TestRunSignFlipEndToEnd(t *testing.T) {
	left := ledger(table.Row{"Center": "1", "CAReportName": "1234-5678", "Amount": 100.0})
	right := ledger(table.Row{"Center": "1", "CAReportName": "1234-5678", "Amount": -100.0})

	opts := DefaultOptions()
	opts.SignFlip = []string{"1234-5678"}
	rep := New(opts).Run(left, right)

	require.Equal(t, StatusOK, rep.Status, rep.Reason)
	assert.Equal(t, join.ReasonCenterReport, rep.Keys.Reason)
	assert.Equal(t, 1, rep.MatchedRows)
	require.Len(t, rep.Columns, 1)
	assert.Equal(t, 0, rep.Columns[0].Mismatches)
	assert.True(t, rep.Summary.OverallMatch)
	assert.Equal(t, 0, rep.Summary.MismatchingCells)
	assert.Empty(t, rep.Discrepancies)
}

func TestRunIdenticalCopyWithZeroTolerance(t *testing.T) {
	left := ledger(
		table.Row{"Center": "1", "CAReportName": "1111-1111", "Amount": 10.25},
		table.Row{"Center": "2", "CAReportName": "Salaries", "Amount": "1,200.00"},
		table.Row{"Center": "2", "CAReportName": "2222-2222", "Amount": nil},
	)
	rep := New(Options{Tolerance: 0}).Run(left, left.Clone())
	require.True(t, rep.OK())
	assert.Equal(t, 3, rep.Summary.TotalCells)
	assert.Equal(t, 3, rep.Summary.MatchingCells)
	assert.Equal(t, 0.0, rep.Summary.MismatchPercentage)
}

func TestRunMismatchesAndMissingSides(t *testing.T) {
	left := ledger(
		table.Row{"Center": "1", "CAReportName": "1111-1111", "Amount": 10.0},
		table.Row{"Center": "1", "CAReportName": "2222-2222", "Amount": 20.0},
		table.Row{"Center": "1", "CAReportName": "3333-3333", "Amount": 30.0},
	)
	right := ledger(
		table.Row{"Center": "1", "CAReportName": "1111-1111", "Amount": 10.0},
		table.Row{"Center": "1", "CAReportName": "2222-2222", "Amount": 25.0},
		table.Row{"Center": "1", "CAReportName": "4444-4444", "Amount": 5.0},
	)
	rep := New(DefaultOptions()).Run(left, right)
	require.True(t, rep.OK())

	assert.Equal(t, 2, rep.MatchedRows)
	assert.Equal(t, 1, rep.LeftOnlyRows)
	assert.Equal(t, 1, rep.RightOnlyRows)
	assert.Equal(t, rep.LeftRows, rep.MatchedRows+rep.LeftOnlyRows)
	assert.Equal(t, rep.RightRows, rep.MatchedRows+rep.RightOnlyRows)

	assert.Equal(t, Summary{TotalCells: 2, MatchingCells: 1, MismatchingCells: 1, MismatchPercentage: 50}, rep.Summary)
	require.Len(t, rep.Columns[0].MismatchRows, 1)
	assert.Equal(t, "1-2222-2222", rep.Columns[0].MismatchRows[0].Key)
	assert.InDelta(t, -5.0, *rep.Columns[0].MismatchRows[0].Difference, 1e-12)

	require.Len(t, rep.Discrepancies, 3)
	assert.Equal(t, "2222-2222", rep.Discrepancies[0].Account)
	assert.Equal(t, discrepancy.Minor, rep.Discrepancies[0].Severity)
	assert.True(t, rep.Discrepancies[1].MissingInRight)
	assert.Equal(t, discrepancy.Major, rep.Discrepancies[1].Severity)
	assert.True(t, rep.Discrepancies[2].MissingInLeft)
	assert.Equal(t, "4444-4444", rep.Discrepancies[2].Account)
	assert.Equal(t, "1", rep.Discrepancies[2].Keys["Center"])

	text := HumanSummary(rep)
	assert.Contains(t, text, "Overall: MISMATCH")
	assert.Contains(t, text, "Top discrepancies (3 total)")
}

func TestRunDuplicateKeysAreReportedAndLogged(t *testing.T) {
	left := ledger(table.Row{"Center": "1", "CAReportName": "1111-1111", "Amount": 10.0})
	right := ledger(
		table.Row{"Center": "1", "CAReportName": "1111-1111", "Amount": 4.0},
		table.Row{"Center": "1", "CAReportName": "1111-1111", "Amount": 6.0},
	)
	var buf bytes.Buffer
	rep := New(DefaultOptions(), WithLogger(zerolog.New(&buf))).Run(left, right)
	require.True(t, rep.OK())
	assert.Equal(t, 2, rep.MatchedRows, "many-to-many rows are expanded")
	assert.Equal(t, map[string]int{"1-1111-1111": 2}, rep.Duplicates.Right)
	assert.Empty(t, rep.Duplicates.Left)
	assert.Contains(t, buf.String(), "duplicate join keys")
	assert.Contains(t, HumanSummary(rep), "Warning: duplicate join keys")
}

func TestRunFatalConditionsAreData(t *testing.T) {
	e := New(DefaultOptions())

	rep := e.Run(ledger(), ledger(table.Row{"Center": "1"}))
	assert.Equal(t, StatusEmptyInput, rep.Status)

	rep = e.Run(
		table.New([]string{"alpha"}, []table.Row{{"alpha": 1}}),
		table.New([]string{"zzz"}, []table.Row{{"zzz": 1}}),
	)
	assert.Equal(t, StatusNoComparableColumns, rep.Status)
	assert.NotEmpty(t, rep.Reason)

	rep = e.Run(
		table.New([]string{"Amount"}, []table.Row{{"Amount": 1}}),
		table.New([]string{"Amounts"}, []table.Row{{"Amounts": 1}}),
	)
	assert.Equal(t, StatusNoKeyColumns, rep.Status)
	assert.True(t, strings.HasPrefix(HumanSummary(rep), "Status: no_key_columns"))
}

func TestRunComparesAggregatedRows(t *testing.T) {
	left := ledger(
		table.Row{"Center": "1", "CAReportName": "1234-5678", "Amount": 100.0},
		table.Row{"Center": "1", "CAReportName": "9999-0000", "Amount": 50.0},
	)
	right := ledger(
		table.Row{"Center": "1", "CAReportName": "1234-5678", "Amount": -100.0},
		table.Row{"Center": "1", "CAReportName": "9999-0000", "Amount": 50.0},
	)
	opts := DefaultOptions()
	opts.SignFlip = []string{"1234-5678"}
	opts.Categories = []aggregate.Category{
		{Name: "CatA", Accounts: []string{"1234-5678"}},
		{Name: "CatB", Accounts: []string{"9999-0000"}},
	}
	opts.Formulas = []aggregate.Formula{{Name: "Net", Expression: "CatA + CatB"}}

	rep := New(opts).Run(left, right)
	require.True(t, rep.OK(), rep.Reason)
	assert.Equal(t, 5, rep.LeftRows)
	assert.Equal(t, 5, rep.MatchedRows)
	assert.Equal(t, 5, rep.Summary.MatchingCells)
	assert.True(t, rep.Summary.OverallMatch)
	assert.Empty(t, rep.FormulaFailures)
}

func TestRunAggregatesLoadedCSV(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}
	left, err := source.LoadCSV(write("left.csv", "Center,CAReportName,Amount\n1,1234-5678,-100\n1,9999-0000,50\n"))
	require.NoError(t, err)
	right, err := source.LoadCSV(write("right.csv", "Center,CAReportName,Amount\n1,1234-5678,100\n1,9999-0000,60\n"))
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.SignFlip = []string{"1234-5678"}
	opts.GroupColumn = "Center"
	opts.Categories = []aggregate.Category{
		{Name: "CatA", Accounts: []string{"1234-5678"}},
		{Name: "CatB", Accounts: []string{"9999-0000"}},
	}
	opts.Formulas = []aggregate.Formula{{Name: "Net", Expression: "CatA + CatB"}}

	rep := New(opts).Run(left, right)
	require.True(t, rep.OK(), rep.Reason)
	assert.Equal(t, 5, rep.MatchedRows)
	assert.Empty(t, rep.FormulaFailures)
	require.Len(t, rep.Columns, 1)

	// raw 9999-0000, CatB and Net disagree; CatA agrees after the flip
	amount := rep.Columns[0]
	assert.Equal(t, 2, amount.Matches)
	require.Equal(t, 3, amount.Mismatches)
	var pairs [][2]any
	for _, m := range amount.MismatchRows {
		pairs = append(pairs, [2]any{m.Left, m.Right})
	}
	assert.Contains(t, pairs, [2]any{50.0, 60.0})
	assert.Contains(t, pairs, [2]any{-50.0, -40.0})
}
