package patch

import (
	"encoding/binary"

	"hotpatch/common"
)

// Placeholder is the runtime state of one field of a Patch.
type Placeholder struct {
	desc  PlaceholderDescriptor
	value uint32
	set   bool
}

func (p *Placeholder) Name() string   { return p.desc.Name }
func (p *Placeholder) Offset() uint32 { return p.desc.Offset }
func (p *Placeholder) Relative() bool { return p.desc.Relative }

// Value returns the last bound value and whether one was bound.
func (p *Placeholder) Value() (uint32, bool) { return p.value, p.set }

// SetValue writes value into buf, which holds the patch loaded at base.
// Relative fields store the displacement from the end of the field; the
// value itself is always the absolute destination.
func (p *Placeholder) SetValue(buf []byte, base common.Address, value uint32) {
	field := value
	if p.desc.Relative {
		next := base.Offset(p.desc.Offset + 4)
		field = uint32(common.Address(value).Diff(next))
	}
	binary.LittleEndian.PutUint32(buf[p.desc.Offset:], field)
	p.value = value
	p.set = true
}
