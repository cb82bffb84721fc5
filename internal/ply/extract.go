package ply

import (
	"fmt"
	"os"
	"strconv"
)

// rayAliases lets ray-vector lookups fall back to the rayx/rayy/rayz naming
// some writers use.
var rayAliases = map[string]string{
	"nx": "rayx",
	"ny": "rayy",
	"nz": "rayz",
}

// Lookup returns the named fields of record index, in request order.
func Lookup(r *Reader, index int, fields []string) ([]float64, error) {
	if index < 0 || index >= r.Count() {
		return nil, &IndexOutOfRangeError{Index: index, Count: r.Count()}
	}

	layout := r.Layout()
	pos := make([]int, len(fields))
	for i, name := range fields {
		j, ok := layout.Index(name)
		if !ok {
			if alias, has := rayAliases[name]; has {
				j, ok = layout.Index(alias)
			}
		}
		if !ok {
			return nil, &FieldNotFoundError{Field: name, Available: layout.Names()}
		}
		pos[i] = j
	}

	rec, err := r.Record(index)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(pos))
	for i, j := range pos {
		out[i] = rec.At(j)
	}
	return out, nil
}

// LookupFile opens path, looks up one record and closes the file on every
// path out.
func LookupFile(path string, index int, fields []string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Lookup(r, index, fields)
}

// ValuePrecision is the number of fractional digits FormatValue emits. It
// bounds the loss of any later text round-trip of extracted values.
const ValuePrecision = 15

// FormatValue renders v with ValuePrecision fractional digits.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', ValuePrecision, 64)
}

// FormatValues applies FormatValue to each value.
func FormatValues(values []float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = FormatValue(v)
	}
	return out
}
