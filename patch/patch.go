package patch

import (
	"errors"
	"fmt"

	"hotpatch/common"
	"hotpatch/internal/disasm"
	"hotpatch/memory"
)

// Options configures a Patch.
type Options struct {
	Logger common.Logger
}

// Patch is a layout instantiated in its own allocator-owned block. The block
// stays read-write until the first successful Bind makes it executable.
type Patch struct {
	layout       *Layout
	block        *memory.Block
	alloc        memory.Allocator
	prot         memory.Protector
	placeholders []*Placeholder
	executable   bool
	log          common.Logger
}

// New allocates a block for layout and fills it with the layout's initial bytes.
func New(layout *Layout, alloc memory.Allocator, prot memory.Protector, opts Options) (*Patch, error) {
	block, err := alloc.Allocate(uint32(layout.Len()))
	if err != nil {
		return nil, fmt.Errorf("allocating %d-byte patch: %w", layout.Len(), err)
	}
	copy(block.Bytes, layout.initial)

	p := &Patch{
		layout: layout,
		block:  block,
		alloc:  alloc,
		prot:   prot,
		log:    common.OrNoOp(opts.Logger),
	}
	for _, d := range layout.placeholders {
		p.placeholders = append(p.placeholders, &Placeholder{desc: d})
	}
	return p, nil
}

// NewFromSpace is New with every service taken from one address space.
func NewFromSpace(layout *Layout, space memory.Space, opts Options) (*Patch, error) {
	return New(layout, space, space, opts)
}

// Entry returns the address of the first byte of the patch.
func (p *Patch) Entry() common.Address { return p.block.Base }

// Len returns the patch size in bytes.
func (p *Patch) Len() int { return p.layout.Len() }

// Layout returns the compiled template the patch was built from.
func (p *Patch) Layout() *Layout { return p.layout }

// Executable reports whether a Bind has completed.
func (p *Patch) Executable() bool { return p.executable }

// Bytes returns a copy of the current patch contents.
func (p *Patch) Bytes() []byte {
	return append([]byte(nil), p.block.Bytes...)
}

// Placeholder returns the field named name.
func (p *Patch) Placeholder(name string) (*Placeholder, bool) {
	i, ok := p.layout.index[name]
	if !ok {
		return nil, false
	}
	return p.placeholders[i], true
}

// Placeholders returns every field in declaration order.
func (p *Patch) Placeholders() []*Placeholder {
	return append([]*Placeholder(nil), p.placeholders...)
}

// Bind writes values into the fields in declaration order and makes the
// patch executable. Values for relative fields are absolute destinations.
func (p *Patch) Bind(values ...uint32) (common.Address, error) {
	if p.block.Bytes == nil {
		return 0, ErrClosed
	}
	if len(values) != len(p.placeholders) {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrValueCount, len(values), len(p.placeholders))
	}

	for i, ph := range p.placeholders {
		ph.SetValue(p.block.Bytes, p.block.Base, values[i])
	}

	size := uint32(p.layout.Len())
	if err := p.prot.Protect(p.block.Base, size, common.ProtExecuteReadWrite); err != nil {
		var pe *memory.ProtectionError
		if !errors.As(err, &pe) {
			err = &memory.ProtectionError{Op: "protect", Addr: p.block.Base, Size: size, Err: err}
		}
		return 0, err
	}
	p.executable = true

	p.log.Logf(common.SeverityDebug, "bound %d placeholders in %d-byte patch at %s",
		len(p.placeholders), size, p.block.Base)
	if l, ok := p.log.(interface{ Enabled(common.Severity) bool }); ok && l.Enabled(common.SeverityDebug) {
		p.log.Debug("\n" + disasm.Format(disasm.Listing(p.block.Bytes, p.block.Base)))
	}
	return p.block.Base, nil
}

// BindNamed is Bind with values keyed by placeholder name. Every placeholder
// needs a value and every key must name a placeholder.
func (p *Patch) BindNamed(values map[string]uint32) (common.Address, error) {
	for name := range values {
		if _, ok := p.layout.index[name]; !ok {
			return 0, fmt.Errorf("%w %q", ErrUnknownPlaceholder, name)
		}
	}
	ordered := make([]uint32, len(p.placeholders))
	for i, ph := range p.placeholders {
		v, ok := values[ph.Name()]
		if !ok {
			return 0, fmt.Errorf("%w %q", ErrMissingValue, ph.Name())
		}
		ordered[i] = v
	}
	return p.Bind(ordered...)
}

// Close releases the block. The patch must no longer be reachable from code.
func (p *Patch) Close() error {
	if p.block.Bytes == nil {
		return nil
	}
	base := p.block.Base
	if err := p.alloc.Free(p.block); err != nil {
		return err
	}
	p.block.Bytes = nil
	p.executable = false
	p.log.Logf(common.SeverityDebug, "released patch at %s", base)
	return nil
}
