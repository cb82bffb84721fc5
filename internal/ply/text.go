package ply

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadText parses an ASCII PLY stream into a cloud typed per the header's
// declared property kinds. When schema is non-nil, every schema input must
// be declared by the header.
func ReadText(r io.Reader, schema *Schema) (*Cloud, error) {
	br := bufio.NewReader(r)
	h, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}
	if h.Format != FormatASCII {
		return nil, fmt.Errorf("%w: expected ascii body, header declares %s", ErrUnsupportedFormat, h.Format)
	}
	return readTextBody(br, h, schema)
}

// maxPrealloc bounds the record slice reserved from a declared count; a
// header may claim more records than its body holds.
const maxPrealloc = 1 << 16

func readTextBody(br *bufio.Reader, h *Header, schema *Schema) (*Cloud, error) {
	vertex, pos, ok := h.Element(VertexElement)
	if !ok {
		return nil, fmt.Errorf("%w: no %q element in header", ErrSchemaMismatch, VertexElement)
	}
	layout, err := NewLayout(vertex.Properties)
	if err != nil {
		return nil, err
	}
	if schema != nil {
		if err := schema.CheckInputs(layout); err != nil {
			return nil, err
		}
	}

	lines := &lineReader{br: br, line: h.Lines}

	// Each instance of an earlier element occupies one line.
	for _, e := range h.Elements[:pos] {
		for i := 0; i < e.Count; i++ {
			if _, err := lines.next(); err != nil {
				if errors.Is(err, io.EOF) {
					return nil, &TruncatedStreamError{Want: int64(e.Count), Got: int64(i), Unit: e.Name + " records"}
				}
				return nil, err
			}
		}
	}

	c := &Cloud{Header: h, Layout: layout, Records: make([]Record, 0, min(vertex.Count, maxPrealloc))}
	for i := 0; i < vertex.Count; i++ {
		text, err := lines.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, &TruncatedStreamError{Want: int64(vertex.Count), Got: int64(i), Unit: "records"}
			}
			return nil, err
		}
		tokens := strings.Fields(text)
		if len(tokens) != layout.Len() {
			return nil, &ParseError{
				Line: lines.line,
				Err:  fmt.Errorf("expected %d values, got %d", layout.Len(), len(tokens)),
			}
		}
		values := make([]float64, len(tokens))
		for j, tok := range tokens {
			p := layout.props[j]
			v, err := p.Kind.parse(tok)
			if err != nil {
				return nil, &ParseError{Line: lines.line, Field: p.Name, Token: tok, Err: err}
			}
			values[j] = v
		}
		c.Records = append(c.Records, Record{layout: layout, values: values})
	}
	return c, nil
}

// lineReader yields non-blank body lines and tracks the file line number.
type lineReader struct {
	br   *bufio.Reader
	line int
}

func (l *lineReader) next() (string, error) {
	for {
		raw, err := l.br.ReadString('\n')
		if raw == "" && err != nil {
			return "", err
		}
		l.line++
		if s := strings.TrimSpace(raw); s != "" {
			return s, nil
		}
		if err != nil {
			return "", err
		}
	}
}
