// Package recon runs one reconciliation between a spreadsheet-origin row set
// and a query-origin row set.
package recon

import (
	"github.com/rs/zerolog"

	"finrecon/internal/account"
	"finrecon/internal/aggregate"
	"finrecon/internal/colmatch"
	"finrecon/internal/compare"
	"finrecon/internal/discrepancy"
	"finrecon/internal/join"
	"finrecon/internal/table"
)

type Options struct {
	Tolerance       float64
	ColumnThreshold float64
	SignFlip        []string
	Categories      []aggregate.Category
	Formulas        []aggregate.Formula
	GroupColumn     string
}

func DefaultOptions() Options {
	return Options{Tolerance: compare.DefaultTolerance, ColumnThreshold: colmatch.DefaultThreshold}
}

// Engine is stateless between runs and safe for concurrent use.
type Engine struct {
	opts  Options
	flips account.FlipSet
	log   zerolog.Logger
}

type Option func(*Engine)

// WithLogger sends run telemetry (column scores, key choice, duplicate keys,
// formula failures) to l.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New builds an engine that logs nowhere unless WithLogger is given.
func New(opts Options, options ...Option) *Engine {
	e := &Engine{
		opts:  opts,
		flips: account.NewFlipSet(opts.SignFlip...),
		log:   zerolog.Nop(),
	}
	for _, o := range options {
		o(e)
	}
	return e
}

func (e *Engine) Options() Options { return e.opts }

// Run reconciles left against right. Fatal conditions come back as a Report
// with a non-ok Status; Run never fails otherwise.
func (e *Engine) Run(left, right *table.RowSet) Report {
	rep := Report{
		Status:    StatusOK,
		Tolerance: e.opts.Tolerance,
		SignFlip:  e.flips.Accounts(),
		LeftRows:  left.Len(),
		RightRows: right.Len(),
	}
	if left.Len() == 0 || right.Len() == 0 {
		return rep.fail(StatusEmptyInput, "left or right row set has no rows")
	}

	if len(e.opts.Categories) > 0 || len(e.opts.Formulas) > 0 {
		left, right = e.aggregate(left, right, &rep)
		rep.LeftRows, rep.RightRows = left.Len(), right.Len()
	}

	rep.Mapping = colmatch.Match(left.Columns, right.Columns, e.opts.ColumnThreshold)
	for _, p := range rep.Mapping.Pairs {
		e.log.Debug().
			Str("left", p.Left).
			Str("right", p.Right).
			Float64("score", p.Score).
			Str("method", string(p.Method)).
			Msg("column mapped")
	}
	if rep.Mapping.Empty() {
		return rep.fail(StatusNoComparableColumns, "no left column could be aligned to a right column")
	}

	keys, ok := join.ResolveKeys(rep.Mapping)
	if !ok {
		return rep.fail(StatusNoKeyColumns, "no center/report-name pair, exact column or sheet label to join on")
	}
	rep.Keys = keys
	e.log.Debug().Strs("left", keys.Left).Strs("right", keys.Right).Str("reason", string(keys.Reason)).Msg("join key resolved")

	jr := join.Join(left, right, keys)
	rep.MatchedRows, rep.LeftOnlyRows, rep.RightOnlyRows = jr.Matched, jr.LeftOnly, jr.RightOnly
	rep.Duplicates = jr.Duplicates
	if jr.Duplicates.Any() {
		e.log.Warn().
			Int("left", len(jr.Duplicates.Left)).
			Int("right", len(jr.Duplicates.Right)).
			Msg("duplicate join keys expand to a cross product")
	}

	acctLeft, acctRight := e.accountColumns(rep.Mapping)
	matched := jr.MatchedRows()
	accounts, rowKeys := accountSeries(matched, acctLeft, acctRight)

	var numeric []discrepancy.Column
	for _, p := range rep.Mapping.Pairs {
		if keys.Contains(p.Left) {
			continue
		}
		in := compare.Input{
			LeftColumn:  p.Left,
			RightColumn: p.Right,
			Left:        make([]any, len(matched)),
			Right:       make([]any, len(matched)),
			Accounts:    accounts,
			Keys:        rowKeys,
		}
		for i, row := range matched {
			in.Left[i] = row.LeftValue(p.Left)
			in.Right[i] = row.RightValue(p.Right)
		}
		res := compare.Compare(in, e.flips, e.opts.Tolerance)
		rep.Columns = append(rep.Columns, res)
		if res.IsNumeric {
			numeric = append(numeric, discrepancy.Column{Left: p.Left, Right: p.Right})
		}
	}
	rep.Summary = summarize(rep.Columns)

	rep.Discrepancies = discrepancy.Classify(discrepancy.Build(discrepancy.Input{
		Rows:         jr.Rows,
		Keys:         keys,
		Columns:      numeric,
		AccountLeft:  acctLeft,
		AccountRight: acctRight,
		Flips:        e.flips,
	}))

	e.log.Info().
		Int("cells", rep.Summary.TotalCells).
		Int("mismatching", rep.Summary.MismatchingCells).
		Int("discrepancies", len(rep.Discrepancies)).
		Bool("overall_match", rep.Summary.OverallMatch).
		Msg("reconciliation finished")
	return rep
}

// aggregate appends category and formula rows to both sides. Only the right
// side is sign-flipped, matching the comparator's convention.
func (e *Engine) aggregate(left, right *table.RowSet, rep *Report) (*table.RowSet, *table.RowSet) {
	opts := aggregate.Options{
		Categories:  e.opts.Categories,
		Formulas:    e.opts.Formulas,
		GroupColumn: e.opts.GroupColumn,
	}
	l := aggregate.Compute(left, opts)
	opts.Flips = e.flips
	r := aggregate.Compute(right, opts)
	sides := []struct {
		name string
		res  aggregate.Result
	}{{"left", l}, {"right", r}}
	for _, s := range sides {
		for _, f := range s.res.Failures {
			e.log.Warn().Str("side", s.name).Str("formula", f.Formula).Str("group", f.Group).
				Str("column", f.Column).Err(f.Err).Msg("formula evaluation failed")
		}
	}
	rep.FormulaFailures = append(append(rep.FormulaFailures, l.Failures...), r.Failures...)
	return l.Rows, r.Rows
}

func (e *Engine) accountColumns(m colmatch.Mapping) (string, string) {
	name, ok := account.ColumnName(m.LeftColumns())
	if !ok {
		return "", ""
	}
	p, _ := m.ByLeft(name)
	return p.Left, p.Right
}

func accountSeries(rows []join.Row, leftCol, rightCol string) (accounts, keys []string) {
	keys = make([]string, len(rows))
	for i, r := range rows {
		keys[i] = r.Key
	}
	if leftCol == "" {
		return nil, keys
	}
	accounts = make([]string, len(rows))
	for i, r := range rows {
		v := r.LeftValue(leftCol)
		if table.IsNull(v) {
			v = r.RightValue(rightCol)
		}
		accounts[i] = table.Text(v)
	}
	return accounts, keys
}

func summarize(cols []compare.ColumnResult) Summary {
	var s Summary
	for _, c := range cols {
		s.MatchingCells += c.Matches
		s.MismatchingCells += c.Mismatches
	}
	s.TotalCells = s.MatchingCells + s.MismatchingCells
	if s.TotalCells > 0 {
		s.MismatchPercentage = float64(s.MismatchingCells) / float64(s.TotalCells) * 100
	}
	s.OverallMatch = s.MismatchPercentage < OverallMatchPercent
	return s
}
