package ply

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
)

// Reader gives random access to the vertex records of a binary PLY stream.
type Reader struct {
	r      io.ReaderAt
	header *Header
	count  int
	layout *Layout
	base   int64
}

// NewReader parses the header of a binary_little_endian stream of size
// bytes and checks that the body holds every record the header declares.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	br := bufio.NewReader(io.NewSectionReader(r, 0, size))
	h, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}
	if h.Format != FormatBinaryLittleEndian {
		return nil, fmt.Errorf("%w: expected binary_little_endian body, header declares %s", ErrUnsupportedFormat, h.Format)
	}

	vertex, pos, ok := h.Element(VertexElement)
	if !ok {
		return nil, fmt.Errorf("%w: no %q element in header", ErrSchemaMismatch, VertexElement)
	}
	base := h.Size
	truncated := func(need int64) error {
		return &TruncatedStreamError{Want: addSat(base-h.Size, need), Got: max(size-h.Size, 0), Unit: "bytes"}
	}
	for i := range h.Elements[:pos] {
		stride, err := h.Elements[i].Stride()
		if err != nil {
			return nil, err
		}
		need := span(stride, h.Elements[i].Count)
		if need > size-base {
			return nil, truncated(need)
		}
		base += need
	}
	layout, err := NewLayout(vertex.Properties)
	if err != nil {
		return nil, err
	}
	if layout.Len() == 0 && vertex.Count > 0 {
		return nil, fmt.Errorf("%w: %q element has no properties", ErrSchemaMismatch, VertexElement)
	}

	if need := span(layout.Stride(), vertex.Count); need > size-base {
		return nil, truncated(need)
	}

	return &Reader{r: r, header: h, count: vertex.Count, layout: layout, base: base}, nil
}

// span is stride*count bytes, saturating at math.MaxInt64.
func span(stride, count int) int64 {
	if stride == 0 || count == 0 {
		return 0
	}
	if int64(count) > math.MaxInt64/int64(stride) {
		return math.MaxInt64
	}
	return int64(stride) * int64(count)
}

func addSat(a, b int64) int64 {
	if b > math.MaxInt64-a {
		return math.MaxInt64
	}
	return a + b
}

// Header returns the parsed header.
func (d *Reader) Header() *Header { return d.header }

// Layout returns the vertex record layout.
func (d *Reader) Layout() *Layout { return d.layout }

// Count is the number of vertex records.
func (d *Reader) Count() int { return d.count }

// Offset is the byte offset of record i from the start of the stream.
func (d *Reader) Offset(i int) int64 {
	return d.base + int64(i)*int64(d.layout.Stride())
}

// RequireSchema fails with *MissingFieldError for any schema output field
// the header does not declare.
func (d *Reader) RequireSchema(s *Schema) error {
	return s.CheckOutputs(d.layout)
}

// Record decodes record i. Callers are responsible for bounds checking.
func (d *Reader) Record(i int) (Record, error) {
	buf := make([]byte, d.layout.Stride())
	n, err := d.r.ReadAt(buf, d.Offset(i))
	if n < len(buf) {
		if err == nil || errors.Is(err, io.EOF) {
			return Record{}, &TruncatedStreamError{Want: int64(len(buf)), Got: int64(n), Unit: "bytes"}
		}
		return Record{}, err
	}
	return d.decode(buf), nil
}

// All decodes every record in file order.
func (d *Reader) All() ([]Record, error) {
	stride := d.layout.Stride()
	body := make([]byte, stride*d.count)
	if len(body) > 0 {
		n, err := d.r.ReadAt(body, d.base)
		if n < len(body) {
			if err == nil || errors.Is(err, io.EOF) {
				return nil, &TruncatedStreamError{Want: int64(len(body)), Got: int64(n), Unit: "bytes"}
			}
			return nil, err
		}
	}
	recs := make([]Record, d.count)
	for i := range recs {
		recs[i] = d.decode(body[i*stride : (i+1)*stride])
	}
	return recs, nil
}

func (d *Reader) decode(buf []byte) Record {
	values := make([]float64, d.layout.Len())
	for j, p := range d.layout.props {
		values[j] = p.Kind.get(buf[d.layout.offsets[j]:])
	}
	return Record{layout: d.layout, values: values}
}

// Decode reads a whole binary stream into a cloud. When schema is non-nil
// every schema output field must be declared.
func Decode(r io.ReaderAt, size int64, schema *Schema) (*Cloud, error) {
	d, err := NewReader(r, size)
	if err != nil {
		return nil, err
	}
	if schema != nil {
		if err := d.RequireSchema(schema); err != nil {
			return nil, err
		}
	}
	recs, err := d.All()
	if err != nil {
		return nil, err
	}
	return &Cloud{Header: d.header, Layout: d.layout, Records: recs}, nil
}

// Load reads either encoding from an in-memory stream, dispatching on the
// header's format line.
func Load(data []byte) (*Cloud, error) {
	h, err := ReadHeader(bufio.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, err
	}
	switch h.Format {
	case FormatASCII:
		return ReadText(bytes.NewReader(data), nil)
	case FormatBinaryLittleEndian:
		return Decode(bytes.NewReader(data), int64(len(data)), nil)
	}
	return nil, fmt.Errorf("%w: %s bodies are not supported", ErrUnsupportedFormat, h.Format)
}
