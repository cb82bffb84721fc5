package ply

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rayHeaderA declares the schema A properties as an ASCII file would.
var rayHeaderA = []string{
	"float x", "float y", "float z",
	"float ox", "float oy", "float oz",
	"uchar red", "uchar green", "uchar blue", "uchar alpha",
	"double time",
}

func asciiPLY(props []string, rows ...string) string {
	var b strings.Builder
	b.WriteString("ply\nformat ascii 1.0\ncomment fixture\n")
	fmt.Fprintf(&b, "element vertex %d\n", len(rows))
	for _, p := range props {
		b.WriteString("property " + p + "\n")
	}
	b.WriteString("end_header\n")
	for _, r := range rows {
		b.WriteString(r + "\n")
	}
	return b.String()
}

func without(props []string, name string) []string {
	var out []string
	for _, p := range props {
		if strings.Fields(p)[1] != name {
			out = append(out, p)
		}
	}
	return out
}

func encodeBinary(t *testing.T, s *Schema, c *Cloud) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, s, c))
	return buf.Bytes()
}

func TestEndToEndRayVector(t *testing.T) {
	t.Parallel()

	in := asciiPLY(rayHeaderA, "0 0 0 1 0 0 0 0 0 255 0")
	cloud, err := ReadText(strings.NewReader(in), RaySampleB)
	require.NoError(t, err)
	require.Equal(t, 1, cloud.Len())

	data := encodeBinary(t, RaySampleB, cloud)
	out, err := Decode(bytes.NewReader(data), int64(len(data)), RaySampleB)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())

	assert.Equal(t, []string{"x", "y", "z", "time", "nx", "ny", "nz", "red", "green", "blue", "alpha"}, out.Layout.Names())
	rec := out.Records[0]
	for name, want := range map[string]float64{"nx": 1, "ny": 0, "nz": 0, "alpha": 255, "time": 0} {
		got, ok := rec.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
}

func TestBinaryLayoutIsPacked(t *testing.T) {
	t.Parallel()

	cloud, err := ReadText(strings.NewReader(asciiPLY(rayHeaderA,
		"1.5 -2 3 4 5 6 7 8 9 10 1234.5",
	)), RaySampleA)
	require.NoError(t, err)

	data := encodeBinary(t, RaySampleA, cloud)
	header := "ply\nformat binary_little_endian 1.0\nelement vertex 1\n" +
		"property float x\nproperty float y\nproperty float z\n" +
		"property float ox\nproperty float oy\nproperty float oz\n" +
		"property uchar red\nproperty uchar green\nproperty uchar blue\nproperty uchar alpha\n" +
		"property double time\nend_header\n"
	require.True(t, bytes.HasPrefix(data, []byte(header)))

	body := data[len(header):]
	require.Len(t, body, 6*4+4+8)
	assert.Equal(t, RaySampleA.Stride(), len(body))
	assert.Equal(t, math.Float32bits(1.5), binary.LittleEndian.Uint32(body[0:]))
	assert.Equal(t, math.Float32bits(-2), binary.LittleEndian.Uint32(body[4:]))
	assert.Equal(t, []byte{7, 8, 9, 10}, body[24:28])
	assert.Equal(t, math.Float64bits(1234.5), binary.LittleEndian.Uint64(body[28:]))
}

func TestRoundTripSchemaA(t *testing.T) {
	t.Parallel()

	rows := []string{
		"0.1 0.2 0.3 -1.25e-3 3.4028235e38 1e-40 0 1 254 255 1.2345678901234567",
		"-7.77 100.001 0 0 0 0 12 34 56 78 1700000000.123456",
		"3.14159 2.71828 1.41421 -0 -0.5 0.5 255 0 255 0 -42",
	}
	in, err := ReadText(strings.NewReader(asciiPLY(rayHeaderA, rows...)), RaySampleA)
	require.NoError(t, err)

	data := encodeBinary(t, RaySampleA, in)
	out, err := Decode(bytes.NewReader(data), int64(len(data)), RaySampleA)
	require.NoError(t, err)
	require.Equal(t, in.Len(), out.Len())

	for i := range in.Records {
		for _, p := range RaySampleA.Outputs() {
			want, _ := in.Records[i].Get(p.Name)
			got, _ := out.Records[i].Get(p.Name)
			switch p.Kind {
			case Float32:
				assert.Equal(t, math.Float32bits(float32(want)), math.Float32bits(float32(got)), "record %d %s", i, p.Name)
			case Float64:
				assert.Equal(t, math.Float64bits(want), math.Float64bits(got), "record %d %s", i, p.Name)
			default:
				assert.Equal(t, want, got, "record %d %s", i, p.Name)
			}
		}
	}

	// Re-encoding the decoded cloud reproduces the same bytes.
	assert.Equal(t, data, encodeBinary(t, RaySampleA, out))
}

func TestDerivedFieldsUseSinglePrecision(t *testing.T) {
	t.Parallel()

	// Double precision inputs must still be subtracted in float32.
	props := []string{
		"double x", "double y", "double z",
		"double ox", "double oy", "double oz",
		"uchar red", "uchar green", "uchar blue", "uchar alpha",
		"double time",
	}
	rows := []string{
		"0.1 0.2 0.3 100000000.3 -0.7 1e-9 1 2 3 4 5",
		"12.5 -3.25 7 0 0 0 0 0 0 0 0",
		"1.0000001 2.0000002 3.0000003 1 2 3 0 0 0 0 0",
	}
	in, err := ReadText(strings.NewReader(asciiPLY(props, rows...)), RaySampleB)
	require.NoError(t, err)

	data := encodeBinary(t, RaySampleB, in)
	out, err := Decode(bytes.NewReader(data), int64(len(data)), RaySampleB)
	require.NoError(t, err)

	for i, rec := range in.Records {
		for _, axis := range []string{"x", "y", "z"} {
			p, _ := rec.Get(axis)
			o, _ := rec.Get("o" + axis)
			want := float32(o) - float32(p)
			got, ok := out.Records[i].Get("n" + axis)
			require.True(t, ok)
			assert.Equal(t, math.Float32bits(want), math.Float32bits(float32(got)), "record %d n%s", i, axis)
		}
	}
}

func TestMissingFieldNamesExactProperty(t *testing.T) {
	t.Parallel()

	for _, schema := range []*Schema{RaySampleA, RaySampleB} {
		for _, in := range schema.Inputs() {
			schema, name := schema, in.Name
			t.Run(schema.Name()+"/"+name, func(t *testing.T) {
				t.Parallel()
				props := without(rayHeaderA, name)
				row := strings.TrimSpace(strings.Repeat("0 ", len(props)))
				_, err := ReadText(strings.NewReader(asciiPLY(props, row)), schema)

				var mf *MissingFieldError
				require.ErrorAs(t, err, &mf)
				assert.Equal(t, name, mf.Field)
				assert.ErrorIs(t, err, ErrMissingField)
			})
		}
	}
}

func TestEncodeRequiresInputs(t *testing.T) {
	t.Parallel()

	props := without(rayHeaderA, "oz")
	cloud, err := ReadText(strings.NewReader(asciiPLY(props, "0 0 0 0 0 0 0 0 0 0")), nil)
	require.NoError(t, err)

	err = Encode(&bytes.Buffer{}, RaySampleB, cloud)
	var mf *MissingFieldError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, "oz", mf.Field)

	// Schema A needs oz too; nothing is written before the check fails.
	var buf bytes.Buffer
	require.Error(t, Encode(&buf, RaySampleA, cloud))
	assert.Zero(t, buf.Len())
}

func TestReadTextErrors(t *testing.T) {
	t.Parallel()

	// asciiPLY emits 4 preamble lines, 11 property lines and end_header,
	// so the first record sits on line 17.
	cases := []struct {
		name      string
		row       string
		wantField string
		wantToken string
	}{
		{"uchar too large", "0 0 0 0 0 0 256 0 0 0 0", "red", "256"},
		{"uchar negative", "0 0 0 0 0 0 0 -1 0 0 0", "green", "-1"},
		{"uchar fractional", "0 0 0 0 0 0 0 0 1.5 0 0", "blue", "1.5"},
		{"float garbage", "0 abc 0 0 0 0 0 0 0 0 0", "y", "abc"},
		{"double garbage", "0 0 0 0 0 0 0 0 0 0 1e", "time", "1e"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadText(strings.NewReader(asciiPLY(rayHeaderA, tc.row)), RaySampleA)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, 17, pe.Line)
			assert.Equal(t, tc.wantField, pe.Field)
			assert.Equal(t, tc.wantToken, pe.Token)
			assert.ErrorIs(t, err, ErrParse)
		})
	}

	t.Run("wrong token count", func(t *testing.T) {
		t.Parallel()
		_, err := ReadText(strings.NewReader(asciiPLY(rayHeaderA, "0 0 0")), RaySampleA)
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Contains(t, pe.Error(), "expected 11 values, got 3")
	})

	t.Run("no vertex element", func(t *testing.T) {
		t.Parallel()
		in := "ply\nformat ascii 1.0\nelement face 0\nproperty list uchar int vertex_indices\nend_header\n"
		_, err := ReadText(strings.NewReader(in), RaySampleA)
		assert.ErrorIs(t, err, ErrSchemaMismatch)
	})

	t.Run("fewer records than declared", func(t *testing.T) {
		t.Parallel()
		in := asciiPLY(rayHeaderA, "0 0 0 0 0 0 0 0 0 0 0", "0 0 0 0 0 0 0 0 0 0 0")
		in = strings.Replace(in, "element vertex 2", "element vertex 3", 1)
		_, err := ReadText(strings.NewReader(in), RaySampleA)
		var te *TruncatedStreamError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, int64(3), te.Want)
		assert.Equal(t, int64(2), te.Got)
	})

	t.Run("binary body", func(t *testing.T) {
		t.Parallel()
		_, err := ReadText(strings.NewReader("ply\nformat binary_little_endian 1.0\nelement vertex 0\nend_header\n"), nil)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}

func TestReadTextSkipsEarlierElements(t *testing.T) {
	t.Parallel()

	in := "ply\nformat ascii 1.0\n" +
		"element camera 2\nproperty float fov\n" +
		"element vertex 1\nproperty float32 x\nproperty uint8 red\n" +
		"end_header\n" +
		"1.0\n2.0\n" +
		"0.5 9\n"
	cloud, err := ReadText(strings.NewReader(in), nil)
	require.NoError(t, err)
	require.Equal(t, 1, cloud.Len())
	assert.Equal(t, []float64{0.5, 9}, cloud.Records[0].Values())
}

func TestHeaderErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no magic":        "plx\nformat ascii 1.0\nend_header\n",
		"no end_header":   "ply\nformat ascii 1.0\nelement vertex 0\n",
		"bad format":      "ply\nformat xml 1.0\nend_header\n",
		"bad count":       "ply\nformat ascii 1.0\nelement vertex -2\nend_header\n",
		"unknown type":    "ply\nformat ascii 1.0\nelement vertex 0\nproperty float128 x\nend_header\n",
		"orphan property": "ply\nformat ascii 1.0\nproperty float x\nend_header\n",
		"no format":       "ply\nelement vertex 0\nend_header\n",
	}
	for name, in := range cases {
		in := in
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadText(strings.NewReader(in), nil)
			assert.ErrorIs(t, err, ErrMalformedHeader)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	cloud, err := ReadText(strings.NewReader(asciiPLY(rayHeaderA,
		"0 0 0 1 1 1 0 0 0 0 0",
		"1 1 1 2 2 2 0 0 0 0 1",
	)), RaySampleA)
	require.NoError(t, err)
	data := encodeBinary(t, RaySampleA, cloud)

	t.Run("truncated body", func(t *testing.T) {
		short := data[:len(data)-1]
		_, err := NewReader(bytes.NewReader(short), int64(len(short)))
		var te *TruncatedStreamError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, int64(2*RaySampleA.Stride()), te.Want)
		assert.Equal(t, int64(2*RaySampleA.Stride()-1), te.Got)
	})

	t.Run("schema output missing", func(t *testing.T) {
		_, err := Decode(bytes.NewReader(data), int64(len(data)), Uncertainty)
		var mf *MissingFieldError
		require.ErrorAs(t, err, &mf)
		assert.Equal(t, "total_variance", mf.Field)
	})

	t.Run("ascii body", func(t *testing.T) {
		in := []byte(asciiPLY(rayHeaderA))
		_, err := NewReader(bytes.NewReader(in), int64(len(in)))
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("offsets", func(t *testing.T) {
		r, err := NewReader(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		assert.Equal(t, 2, r.Count())
		headerLen := int64(len(data) - 2*RaySampleA.Stride())
		assert.Equal(t, headerLen, r.Offset(0))
		assert.Equal(t, headerLen+int64(RaySampleA.Stride()), r.Offset(1))
	})
}

func TestHugeDeclaredCountIsTruncated(t *testing.T) {
	t.Parallel()

	binaryHeader := func(elements string) []byte {
		var buf bytes.Buffer
		buf.WriteString("ply\nformat binary_little_endian 1.0\n")
		buf.WriteString(elements)
		buf.WriteString("end_header\n")
		buf.Write(make([]byte, 40))
		return buf.Bytes()
	}
	uncertaintyProps := "property double total_variance\nproperty double range_variance\n" +
		"property double angular_variance\nproperty double aoi_variance\nproperty double mixed_pixel_variance\n"

	tests := []struct {
		name     string
		elements string
	}{
		{
			// 461168601842738791 * 40 wraps int64.
			name:     "vertex count",
			elements: "element vertex 461168601842738791\n" + uncertaintyProps,
		},
		{
			name:     "earlier element count",
			elements: "element sensor 9223372036854775807\nproperty double gain\nelement vertex 1\n" + uncertaintyProps,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data := binaryHeader(tt.elements)

			_, err := NewReader(bytes.NewReader(data), int64(len(data)))
			var te *TruncatedStreamError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, int64(40), te.Got)
			assert.Greater(t, te.Want, te.Got)

			assert.NotPanics(t, func() {
				_, err = Decode(bytes.NewReader(data), int64(len(data)), nil)
			})
			assert.ErrorIs(t, err, ErrTruncatedStream)
		})
	}

	t.Run("text body", func(t *testing.T) {
		t.Parallel()
		in := "ply\nformat ascii 1.0\nelement vertex 4000000000000000000\n" + uncertaintyProps +
			"end_header\n0 0 0 0 0\n"
		var err error
		assert.NotPanics(t, func() {
			_, err = ReadText(strings.NewReader(in), nil)
		})
		var te *TruncatedStreamError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, int64(4000000000000000000), te.Want)
		assert.Equal(t, int64(1), te.Got)
	})
}

func TestDecodeSkipsFixedWidthElements(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	buf.WriteString("ply\nformat binary_little_endian 1.0\n")
	buf.WriteString("element sensor 2\nproperty short id\nproperty uchar flags\n")
	buf.WriteString("element vertex 1\nproperty f8 total_variance\nproperty int32 ring\n")
	buf.WriteString("end_header\n")
	buf.Write([]byte{1, 0, 7, 2, 0, 9})
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, 0.25))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, int32(-3)))

	data := buf.Bytes()
	r, err := NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	vals, err := Lookup(r, 0, []string{"ring", "total_variance"})
	require.NoError(t, err)
	assert.Equal(t, []float64{-3, 0.25}, vals)
}

func TestLookup(t *testing.T) {
	t.Parallel()

	const n = 4
	rows := make([][]float64, n)
	for i := range rows {
		f := float64(i)
		rows[i] = []float64{f * 0.001, f * 0.01, f * 0.1, f, f * 10}
	}
	cloud, err := NewCloud(Uncertainty.Layout(), rows...)
	require.NoError(t, err)
	data := encodeBinary(t, Uncertainty, cloud)
	r, err := NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	for _, idx := range []int{-1, n, n + 10} {
		_, err := Lookup(r, idx, UncertaintyFields)
		var oor *IndexOutOfRangeError
		require.ErrorAs(t, err, &oor, "index %d", idx)
		assert.Equal(t, n, oor.Count)
		assert.Contains(t, err.Error(), "(0-3)")
	}

	for idx := 0; idx < n; idx++ {
		vals, err := Lookup(r, idx, UncertaintyFields)
		require.NoError(t, err)
		if diff := cmp.Diff(rows[idx], vals); diff != "" {
			t.Errorf("index %d mismatch (-want +got):\n%s", idx, diff)
		}
	}

	vals, err := Lookup(r, 2, []string{"aoi_variance", "total_variance"})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 0.002}, vals)

	_, err = Lookup(r, 0, []string{"total_variance", "intensity"})
	var fnf *FieldNotFoundError
	require.ErrorAs(t, err, &fnf)
	assert.Equal(t, "intensity", fnf.Field)
	assert.Equal(t, UncertaintyFields, fnf.Available)
	assert.ErrorIs(t, err, ErrFieldNotFound)
}

func TestLookupRayAliases(t *testing.T) {
	t.Parallel()

	layout, err := NewLayout([]Property{{Name: "rayx", Kind: Float32}, {Name: "rayy", Kind: Float32}, {Name: "rayz", Kind: Float32}})
	require.NoError(t, err)
	s := MustSchema("alias", StoredField("rayx", Float32), StoredField("rayy", Float32), StoredField("rayz", Float32))
	cloud, err := NewCloud(layout, []float64{1, -2, 0.5})
	require.NoError(t, err)
	data := encodeBinary(t, s, cloud)

	r, err := NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	vals, err := Lookup(r, 0, []string{"nx", "ny", "nz"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -2, 0.5}, vals)
}

func TestFormatValues(t *testing.T) {
	t.Parallel()

	got := FormatValues([]float64{0.0006591635802469136, 0, 0.5004275625, -1.25})
	assert.Equal(t, []string{
		"0.000659163580247",
		"0.000000000000000",
		"0.500427562500000",
		"-1.250000000000000",
	}, got)
}

func TestSchemaConstruction(t *testing.T) {
	t.Parallel()

	t.Run("predefined inputs", func(t *testing.T) {
		names := func(ps []Property) []string {
			out := make([]string, len(ps))
			for i, p := range ps {
				out[i] = p.Name
			}
			return out
		}
		assert.Equal(t, []string{"x", "y", "z", "time", "ox", "oy", "oz", "red", "green", "blue", "alpha"}, names(RaySampleB.Inputs()))
		assert.Equal(t, names(RaySampleA.Outputs()), names(RaySampleA.Inputs()))
		assert.Equal(t, 36, RaySampleB.Stride())
		assert.Equal(t, 40, Uncertainty.Stride())
	})

	t.Run("duplicate field", func(t *testing.T) {
		_, err := NewSchema("dup", StoredField("x", Float32), StoredField("x", Float32))
		assert.ErrorIs(t, err, ErrInvalidSchema)
	})

	t.Run("conflicting input kinds", func(t *testing.T) {
		_, err := NewSchema("conflict",
			StoredField("x", Float64),
			DerivedField("nx", Float32, RayComponent("x")),
		)
		assert.ErrorIs(t, err, ErrInvalidSchema)
	})

	t.Run("derived without compute", func(t *testing.T) {
		_, err := NewSchema("bad", DerivedField("nx", Float32, Derivation{Inputs: []Property{{Name: "x", Kind: Float32}}}))
		assert.ErrorIs(t, err, ErrInvalidSchema)
	})

	t.Run("unsupported kind", func(t *testing.T) {
		_, err := NewSchema("bad", StoredField("ring", Int32))
		assert.ErrorIs(t, err, ErrInvalidSchema)
	})

	t.Run("resolve", func(t *testing.T) {
		idx, err := RaySampleB.Resolve("nz", "x")
		require.NoError(t, err)
		assert.Equal(t, []int{6, 0}, idx)

		_, err = RaySampleB.Resolve("ox")
		assert.ErrorIs(t, err, ErrUnknownField)
	})
}

func TestEncodeRejectsUnrepresentableColour(t *testing.T) {
	t.Parallel()

	props := append(without(rayHeaderA, "red"), "float red")
	cloud, err := ReadText(strings.NewReader(asciiPLY(props, "0 0 0 0 0 0 0 0 0 0 300")), nil)
	require.NoError(t, err)

	err = Encode(&bytes.Buffer{}, RaySampleA, cloud)
	assert.ErrorIs(t, err, ErrValueOutOfRange)

	// Integral float colours convert cleanly.
	cloud, err = ReadText(strings.NewReader(asciiPLY(props, "0 0 0 0 0 0 0 0 0 0 200")), nil)
	require.NoError(t, err)
	data := encodeBinary(t, RaySampleA, cloud)
	out, err := Decode(bytes.NewReader(data), int64(len(data)), RaySampleA)
	require.NoError(t, err)
	red, _ := out.Records[0].Get("red")
	assert.Equal(t, 200.0, red)
}

func TestEncodeTextRoundTrip(t *testing.T) {
	t.Parallel()

	in, err := ReadText(strings.NewReader(asciiPLY(rayHeaderA,
		"0.1 0.2 0.3 1.1 1.2 1.3 1 2 3 4 0.000123456789",
	)), RaySampleA)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeText(&buf, RaySampleB, in))
	assert.Contains(t, buf.String(), "format ascii 1.0\n")

	back, err := ReadText(&buf, nil)
	require.NoError(t, err)
	require.NoError(t, RaySampleB.CheckOutputs(back.Layout))
	require.Equal(t, 1, back.Len())
	ox, x := float32(1.1), float32(0.1)
	nx, _ := back.Records[0].Get("nx")
	assert.Equal(t, float64(ox-x), nx)
	tm, _ := back.Records[0].Get("time")
	assert.Equal(t, 0.000123456789, tm)
}

func TestLoadDispatchesOnFormat(t *testing.T) {
	t.Parallel()

	text := asciiPLY(rayHeaderA, "1 2 3 4 5 6 7 8 9 10 11")
	fromText, err := Load([]byte(text))
	require.NoError(t, err)

	data := encodeBinary(t, RaySampleA, fromText)
	fromBinary, err := Load(data)
	require.NoError(t, err)

	assert.Equal(t, fromText.Records[0].Values(), fromBinary.Records[0].Values())

	_, err = Load([]byte("ply\nformat binary_big_endian 1.0\nelement vertex 0\nend_header\n"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
