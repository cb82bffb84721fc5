package ply

import "fmt"

// Role says whether a field is copied from input or computed.
type Role uint8

const (
	Stored Role = iota
	Derived
)

func (r Role) String() string {
	if r == Derived {
		return "derived"
	}
	return "stored"
}

// Derivation computes a field from input fields. Inputs are converted to
// their declared kind before Compute sees them.
type Derivation struct {
	Inputs  []Property
	Compute func(in []float64) float64
}

// Field is one column of a schema.
type Field struct {
	Name       string
	Kind       Kind
	Role       Role
	derivation *Derivation
}

// StoredField declares a field copied from the input stream.
func StoredField(name string, kind Kind) Field {
	return Field{Name: name, Kind: kind, Role: Stored}
}

// DerivedField declares a field computed from other input fields.
func DerivedField(name string, kind Kind, d Derivation) Field {
	return Field{Name: name, Kind: kind, Role: Derived, derivation: &d}
}

// Schema is a fixed record layout together with the input fields needed to
// produce it. Schemas are immutable once built.
type Schema struct {
	name    string
	fields  []Field
	inputs  []Property
	outputs *Layout
	// sources[i] holds the input positions feeding field i.
	sources [][]int
}

// NewSchema validates fields and resolves every derivation input. All name
// resolution happens here, never per record.
func NewSchema(name string, fields ...Field) (*Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: schema %q has no fields", ErrInvalidSchema, name)
	}
	s := &Schema{name: name, fields: make([]Field, len(fields)), sources: make([][]int, len(fields))}
	copy(s.fields, fields)

	inputIdx := map[string]int{}
	addInput := func(p Property) (int, error) {
		if p.Name == "" {
			return 0, fmt.Errorf("%w: schema %q has an unnamed input", ErrInvalidSchema, name)
		}
		if i, ok := inputIdx[p.Name]; ok {
			if s.inputs[i].Kind != p.Kind {
				return 0, fmt.Errorf("%w: schema %q reads %q as both %s and %s", ErrInvalidSchema, name, p.Name, s.inputs[i].Kind, p.Kind)
			}
			return i, nil
		}
		inputIdx[p.Name] = len(s.inputs)
		s.inputs = append(s.inputs, p)
		return len(s.inputs) - 1, nil
	}

	outputs := make([]Property, len(fields))
	for i, f := range fields {
		if f.Kind != Float32 && f.Kind != Float64 && f.Kind != UInt8 {
			return nil, fmt.Errorf("%w: field %q has unsupported kind %s", ErrInvalidSchema, f.Name, f.Kind)
		}
		outputs[i] = Property{Name: f.Name, Kind: f.Kind}
		switch f.Role {
		case Stored:
			j, err := addInput(Property{Name: f.Name, Kind: f.Kind})
			if err != nil {
				return nil, err
			}
			s.sources[i] = []int{j}
		case Derived:
			d := f.derivation
			if d == nil || d.Compute == nil || len(d.Inputs) == 0 {
				return nil, fmt.Errorf("%w: derived field %q has no derivation", ErrInvalidSchema, f.Name)
			}
			for _, in := range d.Inputs {
				if in.Kind.Width() == 0 {
					return nil, fmt.Errorf("%w: derived field %q reads %q with invalid kind", ErrInvalidSchema, f.Name, in.Name)
				}
				j, err := addInput(in)
				if err != nil {
					return nil, err
				}
				s.sources[i] = append(s.sources[i], j)
			}
		default:
			return nil, fmt.Errorf("%w: field %q has unknown role %d", ErrInvalidSchema, f.Name, f.Role)
		}
	}

	l, err := NewLayout(outputs)
	if err != nil {
		return nil, err
	}
	s.outputs = l
	return s, nil
}

// MustSchema is NewSchema for package-level schema tables.
func MustSchema(name string, fields ...Field) *Schema {
	s, err := NewSchema(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name identifies the schema in diagnostics.
func (s *Schema) Name() string { return s.name }

// Fields returns a copy of the fields in output order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Inputs lists the (name, kind) pairs an input stream must supply, in
// first-use order.
func (s *Schema) Inputs() []Property {
	out := make([]Property, len(s.inputs))
	copy(out, s.inputs)
	return out
}

// Outputs lists the (name, kind) pairs written to disk, in order.
func (s *Schema) Outputs() []Property { return s.outputs.Properties() }

// Layout is the packed output layout.
func (s *Schema) Layout() *Layout { return s.outputs }

// Stride is the encoded size of one output record.
func (s *Schema) Stride() int { return s.outputs.Stride() }

// Resolve maps output field names to their positions, failing with
// ErrUnknownField for any name the schema does not define.
func (s *Schema) Resolve(names ...string) ([]int, error) {
	idx := make([]int, len(names))
	for i, n := range names {
		j, ok := s.outputs.Index(n)
		if !ok {
			return nil, fmt.Errorf("%w: schema %q has no field %q", ErrUnknownField, s.name, n)
		}
		idx[i] = j
	}
	return idx, nil
}

// bind maps each schema input to its position in l, reporting the first
// input the layout does not declare.
func (s *Schema) bind(l *Layout) ([]int, error) {
	pos := make([]int, len(s.inputs))
	for i, in := range s.inputs {
		j, ok := l.Index(in.Name)
		if !ok {
			return nil, &MissingFieldError{Element: VertexElement, Field: in.Name}
		}
		pos[i] = j
	}
	return pos, nil
}

// CheckInputs fails with *MissingFieldError when l lacks a schema input.
func (s *Schema) CheckInputs(l *Layout) error {
	_, err := s.bind(l)
	return err
}

// CheckOutputs fails with *MissingFieldError when l lacks a schema output.
func (s *Schema) CheckOutputs(l *Layout) error {
	for _, p := range s.outputs.props {
		if _, ok := l.Index(p.Name); !ok {
			return &MissingFieldError{Element: VertexElement, Field: p.Name}
		}
	}
	return nil
}

// project computes the output values of one record. pos is the result of
// bind for the record's layout; scratch must hold len(s.inputs) values.
func (s *Schema) project(rec Record, pos []int, scratch []float64, out []float64) error {
	for i, in := range s.inputs {
		v, err := in.Kind.Convert(rec.values[pos[i]])
		if err != nil {
			return fmt.Errorf("input %q: %w", in.Name, err)
		}
		scratch[i] = v
	}
	for i, f := range s.fields {
		var v float64
		if f.Role == Stored {
			v = scratch[s.sources[i][0]]
		} else {
			args := make([]float64, len(s.sources[i]))
			for j, src := range s.sources[i] {
				args[j] = scratch[src]
			}
			v = f.derivation.Compute(args)
		}
		cv, err := f.Kind.Convert(v)
		if err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
		out[i] = cv
	}
	return nil
}

// RayComponent is the derivation origin[axis] - position[axis], evaluated in
// single precision.
func RayComponent(axis string) Derivation {
	return Derivation{
		Inputs: []Property{{Name: "o" + axis, Kind: Float32}, {Name: axis, Kind: Float32}},
		Compute: func(in []float64) float64 {
			return float64(float32(in[0]) - float32(in[1]))
		},
	}
}

// UncertaintyFields are the per-point variance columns raynoise appends.
var UncertaintyFields = []string{
	"total_variance",
	"range_variance",
	"angular_variance",
	"aoi_variance",
	"mixed_pixel_variance",
}

var (
	// RaySampleA is the plain ray-cloud layout: end point, origin, colour
	// and time.
	RaySampleA = MustSchema("ray-sample-a",
		StoredField("x", Float32),
		StoredField("y", Float32),
		StoredField("z", Float32),
		StoredField("ox", Float32),
		StoredField("oy", Float32),
		StoredField("oz", Float32),
		StoredField("red", UInt8),
		StoredField("green", UInt8),
		StoredField("blue", UInt8),
		StoredField("alpha", UInt8),
		StoredField("time", Float64),
	)

	// RaySampleB stores the ray vector (origin minus end point) in place of
	// the origin.
	RaySampleB = MustSchema("ray-sample-b",
		StoredField("x", Float32),
		StoredField("y", Float32),
		StoredField("z", Float32),
		StoredField("time", Float64),
		DerivedField("nx", Float32, RayComponent("x")),
		DerivedField("ny", Float32, RayComponent("y")),
		DerivedField("nz", Float32, RayComponent("z")),
		StoredField("red", UInt8),
		StoredField("green", UInt8),
		StoredField("blue", UInt8),
		StoredField("alpha", UInt8),
	)

	// Uncertainty is the read-only variance layout consumed by the point
	// extractor and the verification harness.
	Uncertainty = MustSchema("uncertainty",
		StoredField(UncertaintyFields[0], Float64),
		StoredField(UncertaintyFields[1], Float64),
		StoredField(UncertaintyFields[2], Float64),
		StoredField(UncertaintyFields[3], Float64),
		StoredField(UncertaintyFields[4], Float64),
	)
)
