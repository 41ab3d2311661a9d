package transform

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInt
	TypeFloat
	TypeTimestamp
)

func (t ColumnType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeTimestamp:
		return "timestamp"
	default:
		return "text"
	}
}

// Numeric reports whether the type takes part in arithmetic.
func (t ColumnType) Numeric() bool { return t == TypeInt || t == TypeFloat }

// Value is one cell. Only the field matching Type is meaningful.
type Value struct {
	Type  ColumnType
	Null  bool
	Int   int64
	Float float64
	Text  string
	Time  time.Time
}

func NullValue(t ColumnType) Value { return Value{Type: t, Null: true} }

// Float64 returns the numeric value of an Int or Float cell.
func (v Value) Float64() (float64, bool) {
	if v.Null {
		return 0, false
	}
	switch v.Type {
	case TypeInt:
		return float64(v.Int), true
	case TypeFloat:
		return v.Float, true
	}
	return 0, false
}

// Interface returns the cell as int64, float64, string, time.Time or nil.
func (v Value) Interface() any {
	if v.Null {
		return nil
	}
	switch v.Type {
	case TypeInt:
		return v.Int
	case TypeFloat:
		return v.Float
	case TypeTimestamp:
		return v.Time
	default:
		return v.Text
	}
}

func (v Value) String() string {
	if v.Null {
		return ""
	}
	switch v.Type {
	case TypeInt:
		return strconv.FormatInt(v.Int, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case TypeTimestamp:
		return v.Time.Format(time.RFC3339Nano)
	default:
		return v.Text
	}
}

// missing-value tokens recognised by common dataframe readers
var nullTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

func isNull(cell string) bool {
	_, ok := nullTokens[cell]
	return ok
}

func parseInt(cell string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 64)
	return n, err == nil
}

func parseFloat(cell string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	return f, err == nil
}

func parseTime(cell string) (time.Time, bool) {
	ts, err := dateparse.ParseStrict(strings.TrimSpace(cell))
	if err != nil {
		return time.Time{}, false
	}
	return ts.UTC(), true
}

// inferType picks the narrowest type every non-null cell of a column fits.
// Precedence: int, float, timestamp, text.
func inferType(cells []string) ColumnType {
	seen := false
	allInt, allFloat, allTime := true, true, true
	for _, c := range cells {
		if isNull(c) {
			continue
		}
		seen = true
		if allInt {
			_, allInt = parseInt(c)
		}
		if allFloat {
			_, allFloat = parseFloat(c)
		}
		if allTime {
			_, allTime = parseTime(c)
		}
		if !allFloat && !allTime {
			return TypeText
		}
	}
	switch {
	case !seen:
		if len(cells) == 0 {
			return TypeText
		}
		// rows exist but every cell is missing
		return TypeFloat
	case allInt:
		return TypeInt
	case allFloat:
		return TypeFloat
	default:
		return TypeTimestamp
	}
}

// parseCell converts a raw cell to a Value of an already inferred type. It
// reports false when the cell does not fit t.
func parseCell(cell string, t ColumnType) (Value, bool) {
	if t != TypeText && isNull(cell) {
		return NullValue(t), true
	}
	switch t {
	case TypeInt:
		n, ok := parseInt(cell)
		return Value{Type: t, Int: n}, ok
	case TypeFloat:
		f, ok := parseFloat(cell)
		return Value{Type: t, Float: f}, ok
	case TypeTimestamp:
		ts, ok := parseTime(cell)
		return Value{Type: t, Time: ts}, ok
	default:
		if isNull(cell) {
			return NullValue(t), true
		}
		return Value{Type: t, Text: cell}, true
	}
}

// parseColumn types every cell as t, falling back to text for the whole
// column when any cell does not fit.
func parseColumn(cells []string, t ColumnType) (ColumnType, []Value) {
	out := make([]Value, len(cells))
	for i, c := range cells {
		v, ok := parseCell(c, t)
		if !ok {
			return parseColumn(cells, TypeText)
		}
		out[i] = v
	}
	return t, out
}
