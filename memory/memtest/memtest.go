// Package memtest provides an in-memory address space implementing every
// service of package memory, for tests.
package memtest

import (
	"errors"
	"fmt"
	"sort"

	"hotpatch/common"
	"hotpatch/memory"
)

// ErrReadOnly is returned when writing to a region without write access.
var ErrReadOnly = errors.New("region is not writable")

// DefaultAllocBase is where the first allocation is placed.
const DefaultAllocBase common.Address = 0x10000000

const pageSize = 0x1000

// ProtectCall records one protection change.
type ProtectCall struct {
	Op   string // "unprotect" or "protect"
	Addr common.Address
	Size uint32
	Prot common.Protection
}

type region struct {
	memory.Region
	buf *common.MemoryBuffer
}

// Space is a fake address space. Fields ending in Err inject failures.
type Space struct {
	regions []*region

	Modules   []memory.Module
	Truncated bool
	EnumErr   error

	ProtectErr error
	AllocErr   error

	// Queries counts QueryRegion calls.
	Queries    int
	ProtectLog []ProtectCall
	Freed      []common.Address

	nextAlloc common.Address
}

var _ memory.Space = (*Space)(nil)

// New returns an empty space allocating from DefaultAllocBase.
func New() *Space {
	return NewAt(DefaultAllocBase)
}

// NewAt returns an empty space whose first allocation is placed at allocBase.
func NewAt(allocBase common.Address) *Space {
	return &Space{nextAlloc: allocBase}
}

// Map adds a committed region holding data.
func (s *Space) Map(base common.Address, data []byte, prot common.Protection) *common.MemoryBuffer {
	buf := common.NewMemoryBuffer(base, data)
	s.insert(&region{
		Region: memory.Region{Base: base, Size: uint32(len(data)), Committed: true, Protect: prot},
		buf:    buf,
	})
	return buf
}

// Reserve adds an uncommitted region.
func (s *Space) Reserve(base common.Address, size uint32) {
	s.insert(&region{Region: memory.Region{Base: base, Size: size}})
}

// AddModule registers a module for EnumerateModules.
func (s *Space) AddModule(name string, base common.Address, size uint32) {
	s.Modules = append(s.Modules, memory.Module{Name: name, Base: base, Size: size})
}

func (s *Space) insert(r *region) {
	for _, existing := range s.regions {
		if r.Base < existing.End() && existing.Base < r.End() {
			panic(fmt.Sprintf("memtest: region %s overlaps %s", r.Range(), existing.Range()))
		}
	}
	s.regions = append(s.regions, r)
	sort.Slice(s.regions, func(i, j int) bool { return s.regions[i].Base < s.regions[j].Base })
}

func (s *Space) find(addr common.Address) *region {
	for _, r := range s.regions {
		if r.Committed && r.Range().Contains(addr) {
			return r
		}
	}
	return nil
}

// Protection returns the current protection at addr.
func (s *Space) Protection(addr common.Address) common.Protection {
	if r := s.find(addr); r != nil {
		return r.Protect
	}
	return 0
}

// Bytes returns a copy of n bytes at addr, or nil when unmapped.
func (s *Space) Bytes(addr common.Address, n int) []byte {
	b := make([]byte, n)
	if err := common.ReadFull(s, addr, b); err != nil {
		return nil
	}
	return b
}

func (s *Space) ReadMemory(addr common.Address, data []byte) (int, error) {
	r := s.find(addr)
	if r == nil {
		return 0, fmt.Errorf("read at %s: %w", addr, common.ErrUnmapped)
	}
	return r.buf.ReadMemory(addr, data)
}

func (s *Space) WriteMemory(addr common.Address, data []byte) (int, error) {
	r := s.find(addr)
	if r == nil {
		return 0, fmt.Errorf("write at %s: %w", addr, common.ErrUnmapped)
	}
	if !r.Protect.CanWrite() {
		return 0, fmt.Errorf("write at %s (%s): %w", addr, r.Protect, ErrReadOnly)
	}
	return r.buf.WriteMemory(addr, data)
}

func (s *Space) Unprotect(addr common.Address, size uint32) (common.Protection, error) {
	s.ProtectLog = append(s.ProtectLog, ProtectCall{Op: "unprotect", Addr: addr, Size: size, Prot: common.ProtExecuteReadWrite})
	if s.ProtectErr != nil {
		return 0, &memory.ProtectionError{Op: "unprotect", Addr: addr, Size: size, Err: s.ProtectErr}
	}
	r := s.find(addr)
	if r == nil {
		return 0, &memory.ProtectionError{Op: "unprotect", Addr: addr, Size: size, Err: common.ErrUnmapped}
	}
	old := r.Protect
	r.Protect = common.ProtExecuteReadWrite
	return old, nil
}

func (s *Space) Protect(addr common.Address, size uint32, prot common.Protection) error {
	s.ProtectLog = append(s.ProtectLog, ProtectCall{Op: "protect", Addr: addr, Size: size, Prot: prot})
	if s.ProtectErr != nil {
		return &memory.ProtectionError{Op: "protect", Addr: addr, Size: size, Err: s.ProtectErr}
	}
	r := s.find(addr)
	if r == nil {
		return &memory.ProtectionError{Op: "protect", Addr: addr, Size: size, Err: common.ErrUnmapped}
	}
	r.Protect = prot
	return nil
}

func (s *Space) QueryRegion(addr common.Address) (memory.Region, error) {
	s.Queries++
	for _, r := range s.regions {
		if addr >= r.End() {
			continue
		}
		if addr < r.Base {
			return memory.Region{Base: addr, Size: uint32(r.Base - addr)}, nil
		}
		return r.Region, nil
	}
	return memory.Region{}, memory.ErrNoRegion
}

func (s *Space) EnumerateModules() (memory.ModuleList, error) {
	if s.EnumErr != nil {
		return memory.ModuleList{}, s.EnumErr
	}
	return memory.ModuleList{
		Modules:   append([]memory.Module(nil), s.Modules...),
		Truncated: s.Truncated,
	}, nil
}

// Allocate maps a fresh read-write block at the next page-aligned fake address.
func (s *Space) Allocate(size uint32) (*memory.Block, error) {
	if s.AllocErr != nil {
		return nil, s.AllocErr
	}
	base := s.nextAlloc
	buf := s.Map(base, make([]byte, size), common.ProtReadWrite)
	s.nextAlloc = base.Offset((size + pageSize - 1) &^ (pageSize - 1))
	if size == 0 {
		s.nextAlloc = base.Offset(pageSize)
	}
	return &memory.Block{Base: base, Bytes: buf.Data}, nil
}

func (s *Space) Free(b *memory.Block) error {
	for i, r := range s.regions {
		if r.Base == b.Base && r.Committed {
			s.regions = append(s.regions[:i], s.regions[i+1:]...)
			s.Freed = append(s.Freed, b.Base)
			b.Bytes = nil
			return nil
		}
	}
	return fmt.Errorf("free %s: %w", b.Base, common.ErrUnmapped)
}
