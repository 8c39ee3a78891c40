// Package patch compiles code templates with named 32-bit fields into fixed
// layouts and binds them to runtime values in executable memory.
package patch

// Component is one piece of a template: a Literal, a RelativeField or an ImmediateField.
type Component interface {
	Size() int
	component()
}

// Literal is copied verbatim.
type Literal []byte

// RelativeField is an opcode prefix followed by a rel32 displacement to the
// address bound to Name.
type RelativeField struct {
	Prefix []byte
	Name   string
}

// ImmediateField is an absolute 32-bit value bound to Name.
type ImmediateField struct {
	Name string
}

// Size returns the number of literal bytes.
func (l Literal) Size() int { return len(l) }

// Size returns the prefix length plus the 32-bit displacement.
func (f RelativeField) Size() int { return len(f.Prefix) + 4 }

// Size returns 4, the width of the value.
func (f ImmediateField) Size() int { return 4 }

func (Literal) component()        {}
func (RelativeField) component()  {}
func (ImmediateField) component() {}
