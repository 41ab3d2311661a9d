// Package columnar encodes transformed tables as Parquet files.
package columnar

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/types"
	"github.com/xitongsys/parquet-go/writer"

	"csvflow/internal/transform"
)

const (
	ContentType = "application/parquet"
	Extension   = ".parquet"
)

const (
	parquetInt64           = "type=INT64, repetitiontype=OPTIONAL"
	parquetDouble          = "type=DOUBLE, repetitiontype=OPTIONAL"
	parquetString          = "type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"
	parquetTimestampMicros = "type=INT64, convertedtype=TIMESTAMP_MICROS, repetitiontype=OPTIONAL"
)

var ErrColumnName = errors.New("column name not representable in parquet schema")

type Options struct {
	ParallelWriters int64 `yaml:"parallel_writers"`
	RowGroupSize    int64 `yaml:"row_group_size"` // bytes
	PageSize        int64 `yaml:"page_size"`      // bytes
}

func (o Options) withDefaults() Options {
	if o.ParallelWriters <= 0 {
		o.ParallelWriters = 4
	}
	if o.RowGroupSize <= 0 {
		o.RowGroupSize = 128 * 1024 * 1024
	}
	if o.PageSize <= 0 {
		o.PageSize = 8 * 1024
	}
	return o
}

// Encoder writes one Snappy-compressed Parquet file per table.
type Encoder struct {
	opts Options
}

func NewEncoder(opts Options) *Encoder {
	return &Encoder{opts: opts.withDefaults()}
}

func (*Encoder) ContentType() string { return ContentType }
func (*Encoder) Extension() string   { return Extension }

func (e *Encoder) Encode(t *transform.Table) ([]byte, error) {
	schema, err := Schema(t.Columns)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	pw, err := writer.NewCSVWriterFromWriter(schema, &buf, e.opts.ParallelWriters)
	if err != nil {
		return nil, fmt.Errorf("creating parquet writer: %w", err)
	}
	pw.RowGroupSize = e.opts.RowGroupSize
	pw.PageSize = e.opts.PageSize
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range t.Rows {
		// the writer buffers rec itself until the row group flushes
		rec := make([]interface{}, len(row))
		for i, v := range row {
			rec[i] = parquetValue(v)
		}
		if err := pw.Write(rec); err != nil {
			return nil, fmt.Errorf("writing parquet: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("stopping parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Schema renders one parquet-go tag per column, in column order.
func Schema(cols []transform.Column) ([]string, error) {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if c.Name == "" || strings.ContainsAny(c.Name, ",=") {
			return nil, fmt.Errorf("%w: %q", ErrColumnName, c.Name)
		}
		out = append(out, fmt.Sprintf("name=%s, %s", c.Name, parquetType(c.Type)))
	}
	return out, nil
}

func parquetType(t transform.ColumnType) string {
	switch t {
	case transform.TypeInt:
		return parquetInt64
	case transform.TypeFloat:
		return parquetDouble
	case transform.TypeTimestamp:
		return parquetTimestampMicros
	default:
		return parquetString
	}
}

func parquetValue(v transform.Value) interface{} {
	if v.Null {
		return nil
	}
	switch v.Type {
	case transform.TypeInt:
		return v.Int
	case transform.TypeFloat:
		return v.Float
	case transform.TypeTimestamp:
		return types.TimeToTIMESTAMP_MICROS(v.Time, true)
	default:
		return v.Text
	}
}
