package ply

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Encode writes cloud as a binary_little_endian PLY laid out per schema.
// Stored fields are converted to their declared kind; derived fields are
// computed from the converted inputs immediately before each record is
// written. Records are packed with no padding.
func Encode(w io.Writer, schema *Schema, cloud *Cloud) error {
	pos, err := schema.bind(cloud.Layout)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	if err := writeHeader(bw, FormatBinaryLittleEndian, VertexElement, cloud.Len(), schema.Outputs()); err != nil {
		return err
	}

	layout := schema.Layout()
	scratch := make([]float64, len(schema.inputs))
	values := make([]float64, layout.Len())
	buf := make([]byte, layout.Stride())
	for i, rec := range cloud.Records {
		if err := schema.project(rec, pos, scratch, values); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		for j, v := range values {
			layout.props[j].Kind.put(buf[layout.offsets[j]:], v)
		}
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// EncodeText writes cloud as an ASCII PLY laid out per schema, one record
// per line. Float tokens use the shortest form that parses back exactly.
func EncodeText(w io.Writer, schema *Schema, cloud *Cloud) error {
	pos, err := schema.bind(cloud.Layout)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	if err := writeHeader(bw, FormatASCII, VertexElement, cloud.Len(), schema.Outputs()); err != nil {
		return err
	}

	layout := schema.Layout()
	scratch := make([]float64, len(schema.inputs))
	values := make([]float64, layout.Len())
	tokens := make([]string, layout.Len())
	for i, rec := range cloud.Records {
		if err := schema.project(rec, pos, scratch, values); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		for j, v := range values {
			tokens[j] = layout.props[j].Kind.format(v)
		}
		if _, err := io.WriteString(bw, strings.Join(tokens, " ")+"\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
