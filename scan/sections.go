package scan

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Binject/debug/pe"

	"hotpatch/common"
)

var (
	// ErrUnknownModule is returned for a module name missing from the snapshot.
	ErrUnknownModule = errors.New("module not discovered")
	// ErrNotImage is returned when a module does not start with a PE header.
	ErrNotImage = errors.New("not a PE image")
)

// imageReader exposes a loaded image as an io.ReaderAt over live memory.
type imageReader struct {
	mem  common.MemoryReader
	base common.Address
	size uint32
}

func (r *imageReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(r.size) {
		return 0, io.EOF
	}
	avail := int64(r.size) - off
	want := p
	if int64(len(p)) > avail {
		want = p[:avail]
	}
	n, err := r.mem.ReadMemory(r.base.Offset(uint32(off)), want)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ModuleSections returns the address ranges of the named sections of a
// discovered module, parsed from its in-memory PE headers. With no names,
// every section is returned. Section names are matched exactly.
func (s *Scanner) ModuleSections(module string, sections ...string) ([]ModuleRange, error) {
	r, ok := s.Module(module)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModule, module)
	}

	var magic [2]byte
	if err := common.ReadFull(s.space, r.Start, magic[:]); err != nil {
		return nil, fmt.Errorf("reading %s header: %w", module, err)
	}
	if magic != [2]byte{'M', 'Z'} {
		return nil, fmt.Errorf("%s at %s: %w", module, r.Start, ErrNotImage)
	}

	f, err := pe.NewFileFromMemory(&imageReader{mem: s.space, base: r.Start, size: r.Size()})
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", module, err)
	}

	wanted := map[string]bool{}
	for _, name := range sections {
		wanted[name] = true
	}
	var out []ModuleRange
	for _, sec := range f.Sections {
		name := strings.TrimRight(sec.Name, "\x00")
		if len(wanted) > 0 && !wanted[name] {
			continue
		}
		size := sec.VirtualSize
		if size == 0 {
			size = sec.Size
		}
		start := r.Start.Offset(sec.VirtualAddress)
		out = append(out, ModuleRange{
			Name:  name,
			Range: common.Range{Start: start, End: start.Offset(size)},
		})
	}
	return out, nil
}

// Ranges strips the names from module ranges.
func Ranges(mr []ModuleRange) []common.Range {
	out := make([]common.Range, len(mr))
	for i, m := range mr {
		out[i] = m.Range
	}
	return out
}
