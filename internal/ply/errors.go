package ply

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchemaMismatch is returned when a stream has no vertex element.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrMissingField matches *MissingFieldError.
	ErrMissingField = errors.New("missing field")
	// ErrParse matches *ParseError.
	ErrParse = errors.New("parse error")
	// ErrTruncatedStream matches *TruncatedStreamError.
	ErrTruncatedStream = errors.New("truncated stream")
	// ErrIndexOutOfRange matches *IndexOutOfRangeError.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrFieldNotFound matches *FieldNotFoundError.
	ErrFieldNotFound = errors.New("field not found")

	ErrMalformedHeader   = errors.New("malformed ply header")
	ErrUnsupportedFormat = errors.New("unsupported ply format")
	ErrInvalidSchema     = errors.New("invalid schema")
	ErrUnknownField      = errors.New("unknown field")
	ErrValueOutOfRange   = errors.New("value out of range")
)

// MissingFieldError reports a field required by a schema that the stream
// header does not declare.
type MissingFieldError struct {
	Element string
	Field   string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field: element %q does not declare required property %q", e.Element, e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

// ParseError reports a malformed value in an ASCII body.
type ParseError struct {
	Line  int
	Field string
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("parse error: line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("parse error: line %d field %q token %q: %v", e.Line, e.Field, e.Token, e.Err)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

func (e *ParseError) Unwrap() error { return e.Err }

// TruncatedStreamError reports a body shorter than the header implies.
// Unit is "bytes" for binary bodies and "records" for ASCII bodies.
type TruncatedStreamError struct {
	Want int64
	Got  int64
	Unit string
}

func (e *TruncatedStreamError) Error() string {
	return fmt.Sprintf("truncated stream: header implies %d %s, found %d", e.Want, e.Unit, e.Got)
}

func (e *TruncatedStreamError) Is(target error) bool { return target == ErrTruncatedStream }

// IndexOutOfRangeError reports a record index outside [0, Count).
type IndexOutOfRangeError struct {
	Index int
	Count int
}

func (e *IndexOutOfRangeError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("index out of range: point index %d requested from an empty cloud", e.Index)
	}
	return fmt.Sprintf("index out of range: point index %d is out of bounds (0-%d)", e.Index, e.Count-1)
}

func (e *IndexOutOfRangeError) Is(target error) bool { return target == ErrIndexOutOfRange }

// FieldNotFoundError reports a requested field absent from a record, along
// with every field that is available.
type FieldNotFoundError struct {
	Field     string
	Available []string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field not found: %q (available fields: %s)", e.Field, strings.Join(e.Available, ", "))
}

func (e *FieldNotFoundError) Is(target error) bool { return target == ErrFieldNotFound }
