package transform

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyEvent is reported as a 400 output, never returned as an error.
	ErrEmptyEvent      = errors.New("no records found in event")
	ErrNoHeader        = errors.New("missing header row")
	ErrInvalidEncoding = errors.New("content is not valid UTF-8")
	ErrNotNumeric      = errors.New("value is not numeric")
)

type FetchError struct {
	Bucket, Key string
	Err         error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s/%s: %v", e.Bucket, e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type DecodeError struct {
	Key  string
	Line int // 0 when the failure is not tied to a line
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("decode %s: line %d: %v", e.Key, e.Line, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// TransformError reports the first cell that blocks a derived column.
type TransformError struct {
	Key    string
	Row    int // 1-based data row
	Column string
	Value  string
	Err    error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: row %d column %q value %q: %v", e.Key, e.Row, e.Column, e.Value, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

type EncodeError struct {
	Key string
	Err error
}

func (e *EncodeError) Error() string { return fmt.Sprintf("encode %s: %v", e.Key, e.Err) }

func (e *EncodeError) Unwrap() error { return e.Err }

type WriteError struct {
	Bucket, Key string
	Err         error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s/%s: %v", e.Bucket, e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
