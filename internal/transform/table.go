package transform

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"
)

type Column struct {
	Name string
	Type ColumnType
}

// Table is a decoded CSV object. Rows[i][j] belongs to Columns[j].
type Table struct {
	Columns []Column
	Rows    [][]Value
}

// Index returns the position of the named column or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Set replaces the named column in place or appends it when absent.
func (t *Table) Set(name string, typ ColumnType, cells []Value) {
	col := Column{Name: name, Type: typ}
	if i := t.Index(name); i >= 0 {
		t.Columns[i] = col
		for r := range t.Rows {
			t.Rows[r][i] = cells[r]
		}
		return
	}
	t.Columns = append(t.Columns, col)
	for r := range t.Rows {
		t.Rows[r] = append(t.Rows[r], cells[r])
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode parses a comma-separated UTF-8 document whose first record is the
// header. Column types are inferred from the whole column.
func Decode(key string, data []byte) (*Table, error) {
	if !utf8.Valid(data) {
		return nil, &DecodeError{Key: key, Err: ErrInvalidEncoding}
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = 0

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, &DecodeError{Key: key, Err: ErrNoHeader}
	}
	if err != nil {
		return nil, decodeErr(key, err)
	}

	var raw [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, decodeErr(key, err)
		}
		raw = append(raw, rec)
	}

	names := mangleHeader(header)
	t := &Table{Columns: make([]Column, len(names)), Rows: make([][]Value, len(raw))}
	cells := make([]string, len(raw))
	for j, name := range names {
		for i, rec := range raw {
			cells[i] = rec[j]
		}
		typ, vals := parseColumn(cells, inferType(cells))
		t.Columns[j] = Column{Name: name, Type: typ}
		for i := range raw {
			if t.Rows[i] == nil {
				t.Rows[i] = make([]Value, len(names))
			}
			t.Rows[i][j] = vals[i]
		}
	}
	return t, nil
}

func decodeErr(key string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &DecodeError{Key: key, Line: pe.Line, Err: pe.Err}
	}
	return &DecodeError{Key: key, Err: err}
}

// mangleHeader names blank headers "Unnamed: <i>" and suffixes repeats with
// ".<n>" so every column name is unique.
func mangleHeader(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, h := range header {
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for n := 1; used[name]; n++ {
			name = fmt.Sprintf("%s.%d", h, n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}
