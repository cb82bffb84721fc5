package ply

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// Kind is the scalar type of a PLY property.
//
// Schemas only ever declare Float32, Float64 and UInt8. The remaining
// integer kinds exist so that headers written by other tools still decode.
type Kind uint8

const (
	KindInvalid Kind = iota
	Float32
	Float64
	UInt8
	Int8
	Int16
	UInt16
	Int32
	UInt32
)

// kindTokens maps every accepted header type token to its kind. The first
// token listed per kind in canonicalTokens is the one written out.
var kindTokens = map[string]Kind{
	"float": Float32, "float32": Float32, "f4": Float32,
	"double": Float64, "float64": Float64, "f8": Float64,
	"uchar": UInt8, "uint8": UInt8, "u1": UInt8,
	"char": Int8, "int8": Int8, "i1": Int8,
	"short": Int16, "int16": Int16, "i2": Int16,
	"ushort": UInt16, "uint16": UInt16, "u2": UInt16,
	"int": Int32, "int32": Int32, "i4": Int32,
	"uint": UInt32, "uint32": UInt32, "u4": UInt32,
}

var canonicalTokens = [...]string{
	KindInvalid: "invalid",
	Float32:     "float",
	Float64:     "double",
	UInt8:       "uchar",
	Int8:        "char",
	Int16:       "short",
	UInt16:      "ushort",
	Int32:       "int",
	UInt32:      "uint",
}

// ParseKind resolves a header type token such as "float", "f8" or "uint8".
func ParseKind(token string) (Kind, bool) {
	k, ok := kindTokens[token]
	return k, ok
}

// String returns the token written into headers for k.
func (k Kind) String() string {
	if int(k) < len(canonicalTokens) {
		return canonicalTokens[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Width is the encoded size of k in bytes.
func (k Kind) Width() int {
	switch k {
	case UInt8, Int8:
		return 1
	case Int16, UInt16:
		return 2
	case Float32, Int32, UInt32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// IsFloat reports whether k is a floating point kind.
func (k Kind) IsFloat() bool { return k == Float32 || k == Float64 }

func (k Kind) bounds() (lo, hi float64) {
	switch k {
	case UInt8:
		return 0, math.MaxUint8
	case Int8:
		return math.MinInt8, math.MaxInt8
	case Int16:
		return math.MinInt16, math.MaxInt16
	case UInt16:
		return 0, math.MaxUint16
	case Int32:
		return math.MinInt32, math.MaxInt32
	case UInt32:
		return 0, math.MaxUint32
	}
	return math.Inf(-1), math.Inf(1)
}

// Convert maps v into the value set of k. Floating point values are rounded
// to the kind's precision; integer kinds accept only integral values within
// range.
func (k Kind) Convert(v float64) (float64, error) {
	switch k {
	case Float32:
		return float64(float32(v)), nil
	case Float64:
		return v, nil
	case KindInvalid:
		return 0, fmt.Errorf("%w: invalid kind", ErrValueOutOfRange)
	}
	lo, hi := k.bounds()
	if v != math.Trunc(v) || v < lo || v > hi {
		return 0, fmt.Errorf("%w: %v does not fit %s", ErrValueOutOfRange, v, k)
	}
	return v, nil
}

// put writes v at the start of dst in little-endian order. v must already be
// converted to k.
func (k Kind) put(dst []byte, v float64) {
	switch k {
	case Float32:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(v)))
	case Float64:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(v))
	case UInt8:
		dst[0] = uint8(v)
	case Int8:
		dst[0] = uint8(int8(v))
	case Int16:
		binary.LittleEndian.PutUint16(dst, uint16(int16(v)))
	case UInt16:
		binary.LittleEndian.PutUint16(dst, uint16(v))
	case Int32:
		binary.LittleEndian.PutUint32(dst, uint32(int32(v)))
	case UInt32:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	}
}

// get reads a little-endian value of kind k from the start of src.
func (k Kind) get(src []byte) float64 {
	switch k {
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(src)))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(src))
	case UInt8:
		return float64(src[0])
	case Int8:
		return float64(int8(src[0]))
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(src)))
	case UInt16:
		return float64(binary.LittleEndian.Uint16(src))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(src)))
	case UInt32:
		return float64(binary.LittleEndian.Uint32(src))
	}
	return 0
}

// parse reads an ASCII token as a value of kind k. Integer kinds are parsed
// as base-10 integers, so "1.0" is rejected for a uchar.
func (k Kind) parse(token string) (float64, error) {
	switch k {
	case Float32:
		v, err := strconv.ParseFloat(token, 32)
		return v, err
	case Float64:
		return strconv.ParseFloat(token, 64)
	case UInt8, UInt16, UInt32:
		v, err := strconv.ParseUint(token, 10, k.Width()*8)
		return float64(v), err
	case Int8, Int16, Int32:
		v, err := strconv.ParseInt(token, 10, k.Width()*8)
		return float64(v), err
	}
	return 0, fmt.Errorf("cannot parse kind %s", k)
}

// format renders v as an ASCII token that parses back to the same value.
func (k Kind) format(v float64) string {
	switch k {
	case Float32:
		return strconv.FormatFloat(v, 'g', -1, 32)
	case Float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strconv.FormatInt(int64(v), 10)
}
