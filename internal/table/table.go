// Package table holds the in-memory row sets the reconciliation engine works on.
//
// A cell is nil, a bool, an integer or float kind, a decimal.Decimal or a
// string. Empty strings and NaN floats are treated as null.
package table

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Row maps column names to scalar cell values.
type Row map[string]any

// RowSet is an ordered sequence of rows sharing one column list.
type RowSet struct {
	Columns []string
	Rows    []Row
}

var reNumeric = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?$`)

// New copies the column list; rows are used as given.
func New(columns []string, rows []Row) *RowSet {
	return &RowSet{Columns: append([]string(nil), columns...), Rows: rows}
}

// Len is nil-safe.
func (s *RowSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// HasColumn reports whether name is in the column list.
func (s *RowSet) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns the values of one column in row order; missing cells are nil.
func (s *RowSet) Column(name string) []any {
	out := make([]any, len(s.Rows))
	for i, r := range s.Rows {
		out[i] = r[name]
	}
	return out
}

// Clone copies the row maps so callers can append or rewrite cells without
// touching the input.
func (s *RowSet) Clone() *RowSet {
	rows := make([]Row, len(s.Rows))
	for i, r := range s.Rows {
		cp := make(Row, len(r))
		for k, v := range r {
			cp[k] = v
		}
		rows[i] = cp
	}
	return &RowSet{Columns: append([]string(nil), s.Columns...), Rows: rows}
}

// IsNull treats nil, blank strings and NaN floats as null.
func IsNull(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case float64:
		return math.IsNaN(t)
	case float32:
		return math.IsNaN(float64(t))
	default:
		return false
	}
}

// IsNumber reports whether v holds a numeric type. Strings and booleans never do.
func IsNumber(v any) bool {
	switch t := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, decimal.Decimal:
		return true
	case float64:
		return !math.IsNaN(t)
	case float32:
		return !math.IsNaN(float64(t))
	default:
		return false
	}
}

// ToFloat coerces a cell to float64. Numeric strings coerce after stripping
// currency symbols and thousands separators; "(12.50)" is negative.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case nil, bool:
		return 0, false
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return finite(float64(t))
	case float64:
		return finite(t)
	case decimal.Decimal:
		f, _ := t.Float64()
		return f, true
	case string:
		d, ok := ParseDecimal(t)
		if !ok {
			return 0, false
		}
		f, _ := d.Float64()
		return f, true
	default:
		return 0, false
	}
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseDecimal parses a spreadsheet-style amount string.
func ParseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSuffix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || !reNumeric.MatchString(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

// KeyString renders a cell the way composite join keys expect: nulls are
// empty, integral floats drop their fraction, strings are trimmed.
func KeyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case bool:
		return strconv.FormatBool(t)
	case float32:
		return formatFloat(float64(t))
	case float64:
		return formatFloat(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case decimal.Decimal:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Text is the trimmed string form of a cell used for string comparisons.
func Text(v any) string {
	if IsNull(v) {
		return ""
	}
	return KeyString(v)
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
