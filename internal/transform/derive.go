package transform

import (
	"math"
	"time"
)

const (
	ColProcessedAt = "processed_at"
	ColQuantity    = "quantity"
	ColUnitPrice   = "unit_price"
	ColTotalSales  = "total_sales"
)

// Derive stamps every row with processed_at and, when both quantity and
// unit_price exist, adds total_sales = quantity * unit_price. A missing
// operand yields a missing product.
func Derive(t *Table, now time.Time) error {
	n := len(t.Rows)
	stamp := make([]Value, n)
	for i := range stamp {
		stamp[i] = Value{Type: TypeTimestamp, Time: now.UTC()}
	}

	qi, pi := t.Index(ColQuantity), t.Index(ColUnitPrice)
	if qi < 0 || pi < 0 {
		t.Set(ColProcessedAt, TypeTimestamp, stamp)
		return nil
	}
	if err := checkNumeric(t, qi); err != nil {
		return err
	}
	if err := checkNumeric(t, pi); err != nil {
		return err
	}
	// validate before mutating so a failed entry leaves the table intact
	typ, totals := multiply(t, qi, pi)
	t.Set(ColProcessedAt, TypeTimestamp, stamp)
	t.Set(ColTotalSales, typ, totals)
	return nil
}

// checkNumeric reports the first non-null cell of a non-numeric column.
func checkNumeric(t *Table, col int) error {
	if t.Columns[col].Type.Numeric() {
		return nil
	}
	for r, row := range t.Rows {
		if !row[col].Null {
			return &TransformError{
				Row:    r + 1,
				Column: t.Columns[col].Name,
				Value:  row[col].String(),
				Err:    ErrNotNumeric,
			}
		}
	}
	// an all-missing column behaves as an empty numeric one
	return nil
}

// multiply keeps Int*Int as Int unless some product overflows int64, in
// which case the whole column is Float.
func multiply(t *Table, qi, pi int) (ColumnType, []Value) {
	if t.Columns[qi].Type == TypeInt && t.Columns[pi].Type == TypeInt {
		if out, ok := multiplyInt(t, qi, pi); ok {
			return TypeInt, out
		}
	}
	typ := TypeFloat
	out := make([]Value, len(t.Rows))
	for r, row := range t.Rows {
		q, p := row[qi], row[pi]
		if q.Null || p.Null {
			out[r] = NullValue(typ)
			continue
		}
		qf, _ := q.Float64()
		pf, _ := p.Float64()
		out[r] = Value{Type: typ, Float: qf * pf}
	}
	return typ, out
}

func multiplyInt(t *Table, qi, pi int) ([]Value, bool) {
	out := make([]Value, len(t.Rows))
	for r, row := range t.Rows {
		q, p := row[qi], row[pi]
		if q.Null || p.Null {
			out[r] = NullValue(TypeInt)
			continue
		}
		prod := q.Int * p.Int
		if q.Int != 0 && (prod/q.Int != p.Int || (q.Int == -1 && p.Int == math.MinInt64)) {
			return nil, false
		}
		out[r] = Value{Type: TypeInt, Int: prod}
	}
	return out, true
}
