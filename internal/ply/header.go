package ply

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// VertexElement is the element every record stream carries its points in.
const VertexElement = "vertex"

// Format is the body encoding declared by a header.
type Format int

const (
	FormatASCII Format = iota + 1
	FormatBinaryLittleEndian
	FormatBinaryBigEndian
)

func (f Format) String() string {
	switch f {
	case FormatASCII:
		return "ascii"
	case FormatBinaryLittleEndian:
		return "binary_little_endian"
	case FormatBinaryBigEndian:
		return "binary_big_endian"
	}
	return "unknown"
}

func parseFormat(token string) (Format, bool) {
	switch token {
	case "ascii":
		return FormatASCII, true
	case "binary_little_endian":
		return FormatBinaryLittleEndian, true
	case "binary_big_endian":
		return FormatBinaryBigEndian, true
	}
	return 0, false
}

// Property is a named, typed column of an element. List properties are
// parsed so headers can be described, but no body codec accepts them.
type Property struct {
	Name      string
	Kind      Kind
	List      bool
	CountKind Kind
}

// Element is a header element declaration.
type Element struct {
	Name       string
	Count      int
	Properties []Property
}

// Stride is the encoded size of one element instance. Elements with list
// properties have no fixed stride.
func (e *Element) Stride() (int, error) {
	n := 0
	for _, p := range e.Properties {
		if p.List {
			return 0, fmt.Errorf("%w: element %q has list property %q", ErrUnsupportedFormat, e.Name, p.Name)
		}
		n += p.Kind.Width()
	}
	return n, nil
}

// Header is a parsed PLY header.
type Header struct {
	Format   Format
	Version  string
	Comments []string
	Elements []Element
	// Size is the number of bytes up to and including the end_header line.
	Size int64
	// Lines is the number of header lines, end_header included.
	Lines int
}

// Element returns the named element and its position in the header.
func (h *Header) Element(name string) (*Element, int, bool) {
	for i := range h.Elements {
		if h.Elements[i].Name == name {
			return &h.Elements[i], i, true
		}
	}
	return nil, -1, false
}

// ReadHeader consumes a header from br, leaving br positioned at the first
// body byte.
func ReadHeader(br *bufio.Reader) (*Header, error) {
	h := &Header{}
	var current *Element

	for {
		raw, err := br.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || raw == "") {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: no end_header after %d lines", ErrMalformedHeader, h.Lines)
			}
			return nil, err
		}
		h.Size += int64(len(raw))
		h.Lines++
		line := strings.TrimRight(raw, " \t\r\n")

		if h.Lines == 1 {
			if line != "ply" {
				return nil, fmt.Errorf("%w: missing ply magic, got %q", ErrMalformedHeader, line)
			}
			continue
		}

		keyword, rest, _ := strings.Cut(line, " ")
		fields := strings.Fields(rest)
		switch keyword {
		case "format":
			if len(fields) != 2 {
				return nil, fmt.Errorf("%w: line %d: bad format line %q", ErrMalformedHeader, h.Lines, line)
			}
			f, ok := parseFormat(fields[0])
			if !ok {
				return nil, fmt.Errorf("%w: line %d: unknown format %q", ErrMalformedHeader, h.Lines, fields[0])
			}
			h.Format, h.Version = f, fields[1]
		case "comment", "obj_info":
			h.Comments = append(h.Comments, strings.TrimSpace(rest))
		case "element":
			if len(fields) != 2 {
				return nil, fmt.Errorf("%w: line %d: bad element line %q", ErrMalformedHeader, h.Lines, line)
			}
			count, err := strconv.Atoi(fields[1])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("%w: line %d: bad element count %q", ErrMalformedHeader, h.Lines, fields[1])
			}
			h.Elements = append(h.Elements, Element{Name: fields[0], Count: count})
			current = &h.Elements[len(h.Elements)-1]
		case "property":
			if current == nil {
				return nil, fmt.Errorf("%w: line %d: property before any element", ErrMalformedHeader, h.Lines)
			}
			p, err := parseProperty(fields)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedHeader, h.Lines, err)
			}
			current.Properties = append(current.Properties, p)
		case "end_header":
			if h.Format == 0 {
				return nil, fmt.Errorf("%w: no format line", ErrMalformedHeader)
			}
			return h, nil
		case "":
		default:
			return nil, fmt.Errorf("%w: line %d: unknown keyword %q", ErrMalformedHeader, h.Lines, keyword)
		}
	}
}

func parseProperty(fields []string) (Property, error) {
	if len(fields) == 4 && fields[0] == "list" {
		ck, ok := ParseKind(fields[1])
		if !ok {
			return Property{}, fmt.Errorf("unknown list count type %q", fields[1])
		}
		k, ok := ParseKind(fields[2])
		if !ok {
			return Property{}, fmt.Errorf("unknown list item type %q", fields[2])
		}
		return Property{Name: fields[3], Kind: k, List: true, CountKind: ck}, nil
	}
	if len(fields) != 2 {
		return Property{}, fmt.Errorf("bad property declaration %q", strings.Join(fields, " "))
	}
	k, ok := ParseKind(fields[0])
	if !ok {
		return Property{}, fmt.Errorf("unknown property type %q for %q", fields[0], fields[1])
	}
	return Property{Name: fields[1], Kind: k}, nil
}

// writeHeader writes a single-element header.
func writeHeader(w io.Writer, format Format, element string, count int, props []Property) error {
	var b strings.Builder
	b.WriteString("ply\n")
	fmt.Fprintf(&b, "format %s 1.0\n", format)
	fmt.Fprintf(&b, "element %s %d\n", element, count)
	for _, p := range props {
		fmt.Fprintf(&b, "property %s %s\n", p.Kind, p.Name)
	}
	b.WriteString("end_header\n")
	_, err := io.WriteString(w, b.String())
	return err
}
