// Package scan searches the committed regions of an address space for byte
// patterns and addresses, optionally scoped to discovered modules.
package scan

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"hotpatch/common"
	"hotpatch/memory"
)

// DefaultChunkSize bounds how much of a region is read at once.
const DefaultChunkSize = 1 << 20

// Space is what the scanner needs from an address space.
type Space interface {
	common.MemoryReader
	memory.RegionQuerier
	memory.ModuleEnumerator
}

// Config configures a Scanner.
type Config struct {
	Logger common.Logger
	// MinAddress is where unscoped searches start; zero means common.NullGuard
	MinAddress common.Address
	// ChunkSize is the read size for region contents; zero means DefaultChunkSize
	ChunkSize uint32
}

// ModuleRange is a discovered module's name and address range.
type ModuleRange struct {
	Name string
	common.Range
}

// DiscoveryError reports a failed module enumeration.
type DiscoveryError struct {
	Err error
}

func (e *DiscoveryError) Error() string { return "module discovery: " + e.Err.Error() }
func (e *DiscoveryError) Unwrap() error { return e.Err }

// Scanner holds a module snapshot and searches the space it was built on.
// It is not safe for concurrent use.
type Scanner struct {
	space     Space
	log       common.Logger
	minAddr   common.Address
	chunk     uint32
	modules   map[string]common.Range
	truncated bool
}

// New returns a scanner over space with an empty module snapshot.
func New(space Space, cfg Config) *Scanner {
	s := &Scanner{
		space:   space,
		log:     common.OrNoOp(cfg.Logger),
		minAddr: cfg.MinAddress,
		chunk:   cfg.ChunkSize,
		modules: map[string]common.Range{},
	}
	if s.minAddr == 0 {
		s.minAddr = common.NullGuard
	}
	if s.chunk == 0 {
		s.chunk = DefaultChunkSize
	}
	return s
}

// Discover replaces the module snapshot with the currently loaded modules.
// On failure the snapshot is left empty.
func (s *Scanner) Discover() error {
	clear(s.modules)
	s.truncated = false

	list, err := s.space.EnumerateModules()
	if err != nil {
		return &DiscoveryError{Err: err}
	}
	for _, m := range list.Modules {
		end := uint64(m.Base) + uint64(m.Size)
		s.modules[strings.ToLower(m.Name)] = common.Range{
			Start: m.Base,
			End:   common.Address(min(end, uint64(common.MaxAddress))),
		}
	}
	s.truncated = list.Truncated
	if s.truncated {
		s.log.Warning(fmt.Sprintf("module list truncated at %d entries", len(list.Modules)))
	}
	s.log.Logf(common.SeverityInfo, "discovered %d modules", len(s.modules))
	return nil
}

// Truncated reports whether the last discovery hit the platform module limit.
func (s *Scanner) Truncated() bool { return s.truncated }

// Module returns the range of a discovered module. Names are case-insensitive.
func (s *Scanner) Module(name string) (common.Range, bool) {
	r, ok := s.modules[strings.ToLower(name)]
	return r, ok
}

// Modules returns the snapshot ordered by base address.
func (s *Scanner) Modules() []ModuleRange {
	out := make([]ModuleRange, 0, len(s.modules))
	for name, r := range s.modules {
		out = append(out, ModuleRange{Name: name, Range: r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// scope resolves module names to ranges. Unknown names are skipped; no
// names means the whole space above MinAddress.
func (s *Scanner) scope(modules []string) []common.Range {
	if len(modules) == 0 {
		return []common.Range{{Start: s.minAddr, End: common.MaxAddress}}
	}
	var ranges []common.Range
	for _, name := range modules {
		r, ok := s.Module(name)
		if !ok {
			s.log.Logf(common.SeverityDebug, "module %q not discovered, skipped", name)
			continue
		}
		ranges = append(ranges, r)
	}
	return ranges
}

// walk visits the committed parts of ranges whose protection matches prot, in
// ascending address order, until visit returns true. A zero prot means
// common.Readable.
func (s *Scanner) walk(ranges []common.Range, prot common.Protection, visit func(lo, hi common.Address) bool) error {
	if prot == 0 {
		prot = common.Readable
	}
	ranges = append([]common.Range(nil), ranges...)
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })

	for _, r := range ranges {
		addr := r.Start
		for addr < r.End {
			reg, err := s.space.QueryRegion(addr)
			if errors.Is(err, memory.ErrNoRegion) {
				break
			}
			if err != nil {
				return fmt.Errorf("querying region at %s: %w", addr, err)
			}
			end := reg.End()
			if end <= addr {
				break
			}
			if reg.Committed && reg.Protect.Matches(prot) {
				lo, hi := max(reg.Base, addr), min(end, r.End)
				if visit(lo, hi) {
					return nil
				}
			}
			addr = end
		}
	}
	return nil
}
