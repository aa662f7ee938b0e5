package join

import (
	"strconv"
	"strings"

	"finrecon/internal/table"
)

const keyDelimiter = "-"

// Row is one output row of the outer join. A side with no matching key has a
// nil row and index -1.
type Row struct {
	Key        string    `json:"key"`
	LeftIndex  int       `json:"left_index"`
	RightIndex int       `json:"right_index"`
	Left       table.Row `json:"-"`
	Right      table.Row `json:"-"`
}

func (r Row) Matched() bool { return r.Left != nil && r.Right != nil }

// LeftValue returns the left cell for col, nil when the left side is absent.
func (r Row) LeftValue(col string) any {
	if r.Left == nil {
		return nil
	}
	return r.Left[col]
}

func (r Row) RightValue(col string) any {
	if r.Right == nil {
		return nil
	}
	return r.Right[col]
}

// Duplicates counts keys seen two or more times within one source.
type Duplicates struct {
	Left  map[string]int `json:"left"`
	Right map[string]int `json:"right"`
}

func (d Duplicates) Any() bool { return len(d.Left) > 0 || len(d.Right) > 0 }

type Result struct {
	Rows       []Row      `json:"-"`
	Duplicates Duplicates `json:"duplicates"`
	Matched    int        `json:"matched_rows"`
	LeftOnly   int        `json:"left_only_rows"`
	RightOnly  int        `json:"right_only_rows"`
}

// MatchedRows returns the joined rows present on both sides, in join order.
func (r Result) MatchedRows() []Row {
	out := make([]Row, 0, r.Matched)
	for _, row := range r.Rows {
		if row.Matched() {
			out = append(out, row)
		}
	}
	return out
}

// CompositeKey joins the key-string form of each key column with "-".
func CompositeKey(row table.Row, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = table.KeyString(row[c])
	}
	return strings.Join(parts, keyDelimiter)
}

func buildKeys(rows []table.Row, cols []string, positional bool) []string {
	keys := make([]string, len(rows))
	for i, r := range rows {
		if positional {
			keys[i] = "#" + strconv.Itoa(i)
			continue
		}
		keys[i] = CompositeKey(r, cols)
	}
	return keys
}

func duplicates(keys []string) map[string]int {
	counts := make(map[string]int, len(keys))
	for _, k := range keys {
		counts[k]++
	}
	out := map[string]int{}
	for k, n := range counts {
		if n >= 2 {
			out[k] = n
		}
	}
	return out
}

// Join performs a full outer join. Duplicate keys expand to the cross product
// of their rows on both sides and are reported, never removed. Output order is
// left rows in input order, each followed by its right matches in right order,
// then right-only rows in right order.
func Join(left, right *table.RowSet, keys Keys) Result {
	leftKeys := buildKeys(left.Rows, keys.Left, keys.Positional)
	rightKeys := buildKeys(right.Rows, keys.Right, keys.Positional)

	rightIndex := make(map[string][]int, len(rightKeys))
	for i, k := range rightKeys {
		rightIndex[k] = append(rightIndex[k], i)
	}

	res := Result{
		Duplicates: Duplicates{Left: duplicates(leftKeys), Right: duplicates(rightKeys)},
	}
	seenRight := make(map[string]bool, len(rightIndex))
	for li, k := range leftKeys {
		matches := rightIndex[k]
		if len(matches) == 0 {
			res.Rows = append(res.Rows, Row{Key: k, LeftIndex: li, RightIndex: -1, Left: left.Rows[li]})
			res.LeftOnly++
			continue
		}
		seenRight[k] = true
		for _, ri := range matches {
			res.Rows = append(res.Rows, Row{Key: k, LeftIndex: li, RightIndex: ri, Left: left.Rows[li], Right: right.Rows[ri]})
			res.Matched++
		}
	}
	for ri, k := range rightKeys {
		if seenRight[k] {
			continue
		}
		res.Rows = append(res.Rows, Row{Key: k, LeftIndex: -1, RightIndex: ri, Right: right.Rows[ri]})
		res.RightOnly++
	}
	return res
}
