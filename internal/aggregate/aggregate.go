// Package aggregate rolls raw account rows up into user-defined categories and
// evaluates formulas over the category and account totals.
package aggregate

import (
	"github.com/shopspring/decimal"

	"finrecon/internal/account"
	"finrecon/internal/colmatch"
	"finrecon/internal/formula"
	"finrecon/internal/table"
)

type Category struct {
	Name     string   `yaml:"name" json:"name"`
	Accounts []string `yaml:"accounts" json:"accounts"`
}

type Formula struct {
	Name       string `yaml:"name" json:"name"`
	Expression string `yaml:"expression" json:"expression"`
}

type Options struct {
	Categories  []Category
	Formulas    []Formula
	GroupColumn string
	Flips       account.FlipSet
}

// Failure records one formula value that could not be computed. The
// corresponding cell is nil; sibling columns and groups are unaffected.
type Failure struct {
	Formula string `json:"formula"`
	Group   string `json:"group,omitempty"`
	Column  string `json:"column,omitempty"`
	Err     error  `json:"-"`
	Message string `json:"error"`
}

type Result struct {
	Rows          *table.RowSet
	AccountColumn string
	Failures      []Failure
}

type group struct {
	key   string
	value any
	rows  []table.Row
}

// Compute returns a copy of rows followed by one synthetic row per category
// per group and then one per formula per group. When no account column can
// be identified the copy is returned without synthetic rows.
func Compute(rows *table.RowSet, opts Options) Result {
	out := rows.Clone()
	acctCol, ok := account.ColumnName(rows.Columns)
	if !ok || (len(opts.Categories) == 0 && len(opts.Formulas) == 0) {
		return Result{Rows: out, AccountColumn: acctCol}
	}
	grouped := opts.GroupColumn != "" && rows.HasColumn(opts.GroupColumn)
	groups := partition(rows.Rows, opts.GroupColumn, grouped)
	numeric := numericColumns(rows, acctCol, opts.GroupColumn)

	res := Result{AccountColumn: acctCol}
	synth := func(name string, g group, values map[string]any) table.Row {
		r := table.Row{acctCol: name}
		if grouped {
			r[opts.GroupColumn] = g.value
		}
		for _, c := range numeric {
			r[c] = values[c]
		}
		return r
	}

	// categoryTotals[groupIndex][category][column]
	categoryTotals := make([]map[string]map[string]decimal.Decimal, len(groups))
	for gi, g := range groups {
		categoryTotals[gi] = make(map[string]map[string]decimal.Decimal, len(opts.Categories))
		for _, cat := range opts.Categories {
			categoryTotals[gi][cat.Name] = sumMatching(g.rows, acctCol, numeric, cat.Accounts, opts.Flips)
		}
	}
	for _, cat := range opts.Categories {
		for gi, g := range groups {
			out.Rows = append(out.Rows, synth(cat.Name, g, floats(categoryTotals[gi][cat.Name])))
		}
	}

	for _, f := range opts.Formulas {
		ev := newEvaluator(f, opts.Categories, rows.Rows, acctCol)
		for gi, g := range groups {
			values := make(map[string]any, len(numeric))
			accountTotals := make(map[string]map[string]decimal.Decimal, len(ev.accounts))
			for _, code := range ev.accounts {
				accountTotals[code] = sumMatching(g.rows, acctCol, numeric, []string{code}, opts.Flips)
			}
			for _, col := range numeric {
				v, err := ev.eval(col, categoryTotals[gi], accountTotals)
				if err != nil {
					res.Failures = append(res.Failures, Failure{
						Formula: f.Name, Group: g.key, Column: col, Err: err, Message: err.Error(),
					})
					values[col] = nil
					continue
				}
				values[col] = v
			}
			out.Rows = append(out.Rows, synth(f.Name, g, values))
		}
	}
	res.Rows = out
	return res
}

func partition(rows []table.Row, col string, grouped bool) []group {
	if !grouped {
		return []group{{rows: rows}}
	}
	var groups []group
	index := map[string]int{}
	for _, r := range rows {
		k := table.KeyString(r[col])
		gi, ok := index[k]
		if !ok {
			gi = len(groups)
			index[k] = gi
			groups = append(groups, group{key: k, value: r[col]})
		}
		groups[gi].rows = append(groups[gi].rows, r)
	}
	return groups
}

// numericColumns scans every row, not just the first. A column qualifies when
// it holds a cell of a numeric type, or when every non-null string in it
// parses as an amount, the way loaded CSV and spreadsheet text arrives.
// Booleans never qualify, and neither do center or sheet-label columns, which
// are join keys even when their values look numeric.
func numericColumns(rows *table.RowSet, acctCol, groupCol string) []string {
	var out []string
	for _, c := range rows.Columns {
		if c == acctCol || c == groupCol || colmatch.CompactName(c) == "center" || colmatch.IsSheetLabel(c) {
			continue
		}
		typed, text, other := false, false, false
		for _, r := range rows.Rows {
			switch v := r[c].(type) {
			case string:
				if table.IsNull(v) {
					continue
				}
				if _, ok := table.ParseDecimal(v); ok {
					text = true
				} else {
					other = true
				}
			default:
				if table.IsNumber(v) {
					typed = true
				}
			}
		}
		if typed || (text && !other) {
			out = append(out, c)
		}
	}
	return out
}

// amount coerces one cell for summing. Non-numeric strings and booleans are
// skipped.
func amount(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case string:
		return table.ParseDecimal(t)
	}
	if !table.IsNumber(v) {
		return decimal.Zero, false
	}
	f, ok := table.ToFloat(v)
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

func sumMatching(rows []table.Row, acctCol string, numeric []string, members []string, flips account.FlipSet) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal, len(numeric))
	for _, c := range numeric {
		totals[c] = decimal.Zero
	}
	for _, r := range rows {
		acct := table.Text(r[acctCol])
		if acct == "" || !matchesAny(acct, members) {
			continue
		}
		flip := flips.ShouldFlip(acct)
		for _, c := range numeric {
			d, ok := amount(r[c])
			if !ok {
				continue
			}
			if flip {
				d = d.Neg()
			}
			totals[c] = totals[c].Add(d)
		}
	}
	return totals
}

func matchesAny(acct string, members []string) bool {
	for _, m := range members {
		if account.Same(acct, m) {
			return true
		}
	}
	return false
}

func floats(totals map[string]decimal.Decimal) map[string]any {
	out := make(map[string]any, len(totals))
	for c, d := range totals {
		f, _ := d.Float64()
		out[c] = f
	}
	return out
}

type evaluator struct {
	expr     *formula.Expr
	parseErr error
	// ident -> category name or account code
	categories map[string]string
	accountsBy map[string]string
	accounts   []string
}

// newEvaluator binds category names and account codes found in the
// expression. Any other free identifier is taken as a raw account name when
// some row's account matches it; otherwise it stays unbound and evaluation
// reports it.
func newEvaluator(f Formula, cats []Category, rows []table.Row, acctCol string) *evaluator {
	ev := &evaluator{categories: map[string]string{}, accountsBy: map[string]string{}}
	catNames := make(map[string]bool, len(cats))
	names := make([]string, 0, len(cats))
	for _, c := range cats {
		catNames[c.Name] = true
		names = append(names, c.Name)
	}
	for _, code := range account.FindAll(f.Expression) {
		if catNames[code] {
			continue
		}
		ev.accounts = append(ev.accounts, code)
		names = append(names, code)
	}
	src, bindings := formula.Bind(f.Expression, names)
	for _, b := range bindings {
		if catNames[b.Name] {
			ev.categories[b.Ident] = b.Name
		} else {
			ev.accountsBy[b.Ident] = b.Name
		}
	}
	ev.expr, ev.parseErr = formula.Parse(src)
	if ev.parseErr != nil {
		return ev
	}
	for _, ident := range ev.expr.Identifiers() {
		if _, ok := ev.categories[ident]; ok {
			continue
		}
		if _, ok := ev.accountsBy[ident]; ok {
			continue
		}
		if hasAccount(rows, acctCol, ident) {
			ev.accountsBy[ident] = ident
			ev.accounts = append(ev.accounts, ident)
		}
	}
	return ev
}

func hasAccount(rows []table.Row, acctCol, name string) bool {
	for _, r := range rows {
		if acct := table.Text(r[acctCol]); acct != "" && account.Same(acct, name) {
			return true
		}
	}
	return false
}

func (ev *evaluator) eval(col string, cats map[string]map[string]decimal.Decimal, accts map[string]map[string]decimal.Decimal) (float64, error) {
	if ev.parseErr != nil {
		return 0, ev.parseErr
	}
	vars := make(map[string]float64, len(ev.categories)+len(ev.accountsBy))
	for ident, name := range ev.categories {
		f, _ := cats[name][col].Float64()
		vars[ident] = f
	}
	for ident, code := range ev.accountsBy {
		f, _ := accts[code][col].Float64()
		vars[ident] = f
	}
	return ev.expr.Eval(vars)
}
