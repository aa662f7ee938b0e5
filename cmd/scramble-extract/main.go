package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"finrecon/internal/account"
	"finrecon/internal/colmatch"
	"finrecon/internal/compare"
	"finrecon/internal/source"
	"finrecon/internal/table"
)

const (
	defaultInput  = "outputs/ledger_left.csv"
	defaultOutput = "outputs/ledger_right.csv"
	defaultSeed   = int64(20260224)
)

type scrambleOptions struct {
	Seed       int64
	SampleRows int
	Abbreviate bool
	Flips      account.FlipSet
}

func main() {
	inPath := flag.String("input", defaultInput, "Input CSV path")
	outPath := flag.String("output", defaultOutput, "Output CSV path")
	seed := flag.Int64("seed", defaultSeed, "Deterministic shuffle seed")
	sampleRows := flag.Int("sample-rows", 0, "If > 0, keep only this many rows after shuffling")
	abbreviate := flag.Bool("abbreviate", false, "Abbreviate column words (Amount -> Amt) so names need fuzzy matching")
	flip := flag.String("flip", "", "Comma-separated accounts whose amounts are negated in the output")
	flag.Parse()

	in, err := source.LoadCSV(*inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load csv error: %v\n", err)
		os.Exit(1)
	}

	opts := scrambleOptions{Seed: *seed, SampleRows: *sampleRows, Abbreviate: *abbreviate, Flips: account.NewFlipSet(strings.Split(*flip, ",")...)}
	out, renameMap := scramble(in, opts)
	if err := writeCSV(*outPath, out); err != nil {
		fmt.Fprintf(os.Stderr, "write csv error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Input:  %s\n", *inPath)
	fmt.Printf("Output: %s\n", *outPath)
	fmt.Printf("Seed:   %d\n", *seed)
	fmt.Printf("Rows:   %d\n", out.Len())
	fmt.Printf("Cols:   %d\n", len(out.Columns))
	if accts := opts.Flips.Accounts(); len(accts) > 0 {
		fmt.Printf("Flipped accounts: %s\n", strings.Join(accts, ", "))
	}
	fmt.Println("Column mapping (output order):")
	for _, c := range in.Columns {
		fmt.Printf("  %s -> %s\n", c, renameMap[c])
	}
}

// scramble shuffles columns and rows, renames columns to lexical variants the
// column matcher still aligns, and negates numeric cells of flipped accounts.
func scramble(in *table.RowSet, opts scrambleOptions) (*table.RowSet, map[string]string) {
	rng := rand.New(rand.NewSource(opts.Seed))
	shuffledCols := append([]string(nil), in.Columns...)
	rng.Shuffle(len(shuffledCols), func(i, j int) { shuffledCols[i], shuffledCols[j] = shuffledCols[j], shuffledCols[i] })

	shuffledRows := append([]table.Row(nil), in.Rows...)
	rng.Shuffle(len(shuffledRows), func(i, j int) { shuffledRows[i], shuffledRows[j] = shuffledRows[j], shuffledRows[i] })
	if opts.SampleRows > 0 && opts.SampleRows < len(shuffledRows) {
		shuffledRows = shuffledRows[:opts.SampleRows]
	}

	variants := make([]int, len(shuffledCols))
	for i := range variants {
		variants[i] = rng.Intn(renameVariants)
	}
	renamed, renameMap := buildUniqueNames(shuffledCols, variants, opts.Abbreviate)

	acctCol, hasAcct := account.ColumnName(in.Columns)
	// key columns (center, sheet label) keep their values even when numeric
	numeric := map[string]bool{}
	for _, c := range in.Columns {
		keyLike := colmatch.CompactName(c) == "center" || colmatch.IsSheetLabel(c)
		numeric[c] = c != acctCol && !keyLike && compare.IsNumericColumn(in.Column(c))
	}

	rows := make([]table.Row, 0, len(shuffledRows))
	for _, r := range shuffledRows {
		flip := hasAcct && opts.Flips.ShouldFlip(table.Text(r[acctCol]))
		out := make(table.Row, len(r))
		for _, c := range shuffledCols {
			v := r[c]
			if flip && numeric[c] {
				v = negate(v)
			}
			out[renameMap[c]] = v
		}
		rows = append(rows, out)
	}
	return table.New(renamed, rows), renameMap
}

func negate(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	d, ok := table.ParseDecimal(s)
	if !ok {
		return v
	}
	return d.Neg().String()
}

const renameVariants = 4

var abbreviations = [][2]string{
	{"Amount", "Amt"},
	{"amount", "amt"},
	{"Number", "No"},
	{"number", "no"},
	{"Description", "Desc"},
	{"description", "desc"},
	{"Department", "Dept"},
	{"department", "dept"},
}

// slightRename returns a variant that normalizes to the same column name:
// lower snake case, upper case, a leading stop word, or dashes.
func slightRename(col string, variant int, abbreviate bool) string {
	out := col
	if abbreviate {
		for _, rep := range abbreviations {
			out = strings.ReplaceAll(out, rep[0], rep[1])
		}
	}
	switch variant {
	case 0:
		out = strings.ToLower(strings.ReplaceAll(out, " ", "_"))
	case 1:
		out = strings.ToUpper(out)
	case 2:
		out = "The " + out
	default:
		out = strings.ReplaceAll(out, " ", "-")
	}
	return out
}

func buildUniqueNames(columns []string, variants []int, abbreviate bool) ([]string, map[string]string) {
	renameMap := make(map[string]string, len(columns))
	used := make(map[string]int)
	out := make([]string, 0, len(columns))
	for i, col := range columns {
		candidate := slightRename(col, variants[i], abbreviate)
		if n, ok := used[candidate]; ok {
			n++
			used[candidate] = n
			candidate = candidate + "_" + strconv.Itoa(n)
		} else {
			used[candidate] = 1
		}
		renameMap[col] = candidate
		out = append(out, candidate)
	}
	return out, renameMap
}

func writeCSV(path string, rs *table.RowSet) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}
	if err := writeCSVRecordPythonStyle(f, rs.Columns); err != nil {
		return err
	}
	for _, row := range rs.Rows {
		rec := make([]string, 0, len(rs.Columns))
		for _, col := range rs.Columns {
			rec = append(rec, table.KeyString(row[col]))
		}
		if err := writeCSVRecordPythonStyle(f, rec); err != nil {
			return err
		}
	}
	return f.Close()
}

func writeCSVRecordPythonStyle(w io.Writer, rec []string) error {
	for i, field := range rec {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if needsCSVQuote(field) {
			escaped := `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
			if _, err := io.WriteString(w, escaped); err != nil {
				return err
			}
			continue
		}
		if _, err := io.WriteString(w, field); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

func needsCSVQuote(s string) bool {
	return strings.ContainsAny(s, ",\"\n\r")
}
