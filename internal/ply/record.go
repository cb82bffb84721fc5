package ply

import "fmt"

// Layout is the fixed on-disk arrangement of a record: ordered properties,
// their byte offsets and a name index.
type Layout struct {
	props   []Property
	offsets []int
	stride  int
	index   map[string]int
}

// NewLayout builds a layout for scalar properties in declared order.
func NewLayout(props []Property) (*Layout, error) {
	l := &Layout{
		props:   make([]Property, len(props)),
		offsets: make([]int, len(props)),
		index:   make(map[string]int, len(props)),
	}
	copy(l.props, props)
	for i, p := range props {
		if p.List {
			return nil, fmt.Errorf("%w: list property %q", ErrUnsupportedFormat, p.Name)
		}
		if p.Kind.Width() == 0 {
			return nil, fmt.Errorf("%w: property %q has no width", ErrInvalidSchema, p.Name)
		}
		if _, dup := l.index[p.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate property %q", ErrInvalidSchema, p.Name)
		}
		l.index[p.Name] = i
		l.offsets[i] = l.stride
		l.stride += p.Kind.Width()
	}
	return l, nil
}

// Len is the number of properties.
func (l *Layout) Len() int { return len(l.props) }

// Stride is the packed size of one record in bytes.
func (l *Layout) Stride() int { return l.stride }

// Property returns the i-th property.
func (l *Layout) Property(i int) Property { return l.props[i] }

// Offset returns the byte offset of the i-th property within a record.
func (l *Layout) Offset(i int) int { return l.offsets[i] }

// Index returns the position of the named property.
func (l *Layout) Index(name string) (int, bool) {
	i, ok := l.index[name]
	return i, ok
}

// Names lists property names in layout order.
func (l *Layout) Names() []string {
	names := make([]string, len(l.props))
	for i, p := range l.props {
		names[i] = p.Name
	}
	return names
}

// Properties returns a copy of the ordered properties.
func (l *Layout) Properties() []Property {
	out := make([]Property, len(l.props))
	copy(out, l.props)
	return out
}

// Record is one immutable tuple of values laid out per a Layout.
//
// Values are held as float64, which represents every supported kind
// exactly, so decoding and re-encoding a record is lossless.
type Record struct {
	layout *Layout
	values []float64
}

// NewRecord validates values against l, converting each to its property
// kind.
func NewRecord(l *Layout, values ...float64) (Record, error) {
	if len(values) != l.Len() {
		return Record{}, fmt.Errorf("record has %d values, layout declares %d", len(values), l.Len())
	}
	vs := make([]float64, len(values))
	for i, v := range values {
		cv, err := l.props[i].Kind.Convert(v)
		if err != nil {
			return Record{}, fmt.Errorf("property %q: %w", l.props[i].Name, err)
		}
		vs[i] = cv
	}
	return Record{layout: l, values: vs}, nil
}

// Layout returns the record's layout.
func (r Record) Layout() *Layout { return r.layout }

// Len is the number of values.
func (r Record) Len() int { return len(r.values) }

// At returns the i-th value.
func (r Record) At(i int) float64 { return r.values[i] }

// Get returns the named value.
func (r Record) Get(name string) (float64, bool) {
	i, ok := r.layout.Index(name)
	if !ok {
		return 0, false
	}
	return r.values[i], true
}

// Values returns a copy of all values in layout order.
func (r Record) Values() []float64 {
	out := make([]float64, len(r.values))
	copy(out, r.values)
	return out
}

// Cloud is an ordered record set. Index order is file order.
type Cloud struct {
	Header  *Header
	Layout  *Layout
	Records []Record
}

// Len is the number of records.
func (c *Cloud) Len() int { return len(c.Records) }

// NewCloud builds a cloud from rows of values. It is mostly useful for
// producing fixtures.
func NewCloud(l *Layout, rows ...[]float64) (*Cloud, error) {
	c := &Cloud{Layout: l, Records: make([]Record, 0, len(rows))}
	for i, row := range rows {
		rec, err := NewRecord(l, row...)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		c.Records = append(c.Records, rec)
	}
	return c, nil
}
