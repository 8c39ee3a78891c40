package patch

import (
	"fmt"
	"sync"
)

// PlaceholderDescriptor locates one 32-bit field in a layout.
type PlaceholderDescriptor struct {
	Name string
	// Offset is the first byte of the field
	Offset   uint32
	Relative bool
}

// Layout is a compiled template: its zero-filled bytes and field positions.
// A Layout is immutable and safe to share.
type Layout struct {
	initial      []byte
	placeholders []PlaceholderDescriptor
	index        map[string]int
}

// Compile lays out components in order.
func Compile(components []Component) (*Layout, error) {
	l := &Layout{index: map[string]int{}}
	size := 0
	for _, c := range components {
		size += c.Size()
		var name string
		var relative bool
		switch c := c.(type) {
		case Literal:
			l.initial = append(l.initial, c...)
			continue
		case RelativeField:
			l.initial = append(l.initial, c.Prefix...)
			name, relative = c.Name, true
		case ImmediateField:
			name = c.Name
		}
		if _, dup := l.index[name]; dup {
			return nil, &DefinitionError{Token: name, Err: ErrDuplicatePlaceholder}
		}
		l.index[name] = len(l.placeholders)
		l.placeholders = append(l.placeholders, PlaceholderDescriptor{
			Name:     name,
			Offset:   uint32(len(l.initial)),
			Relative: relative,
		})
		l.initial = append(l.initial, 0, 0, 0, 0)
	}

	if size != len(l.initial) {
		return nil, fmt.Errorf("layout is %d bytes, components sum to %d", len(l.initial), size)
	}
	for _, p := range l.placeholders {
		if int(p.Offset)+4 > len(l.initial) {
			return nil, fmt.Errorf("placeholder %q at %d overruns %d-byte layout", p.Name, p.Offset, len(l.initial))
		}
	}
	return l, nil
}

// Len returns the layout size in bytes.
func (l *Layout) Len() int { return len(l.initial) }

// Initial returns a copy of the layout bytes with every field zeroed.
func (l *Layout) Initial() []byte {
	return append([]byte(nil), l.initial...)
}

// Placeholders returns the fields in declaration order.
func (l *Layout) Placeholders() []PlaceholderDescriptor {
	return append([]PlaceholderDescriptor(nil), l.placeholders...)
}

// Lookup finds a field by name.
func (l *Layout) Lookup(name string) (PlaceholderDescriptor, bool) {
	i, ok := l.index[name]
	if !ok {
		return PlaceholderDescriptor{}, false
	}
	return l.placeholders[i], true
}

var templates sync.Map // source string -> *Layout

// CompileTemplate parses and compiles src. Successful results are cached per
// distinct source text.
func CompileTemplate(src string) (*Layout, error) {
	if l, ok := templates.Load(src); ok {
		return l.(*Layout), nil
	}
	components, err := Parse(src)
	if err != nil {
		return nil, err
	}
	l, err := Compile(components)
	if err != nil {
		return nil, err
	}
	actual, _ := templates.LoadOrStore(src, l)
	return actual.(*Layout), nil
}

// MustCompile is CompileTemplate for package-level templates; it panics on error.
func MustCompile(src string) *Layout {
	l, err := CompileTemplate(src)
	if err != nil {
		panic(fmt.Sprintf("patch: compiling template: %v", err))
	}
	return l
}
