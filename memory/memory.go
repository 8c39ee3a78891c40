// Package memory abstracts the operating-system services the patcher needs:
// page protection, region queries, module enumeration and stable allocations.
package memory

import (
	"errors"
	"fmt"

	"hotpatch/common"
)

var (
	// ErrNoRegion is returned by QueryRegion when no region exists at or above the address.
	ErrNoRegion = errors.New("no region at or above address")
	// ErrUnsupported is returned by Native on platforms without a backend.
	ErrUnsupported = errors.New("native memory access not supported on this platform")
)

// MaxModules is the largest number of modules an enumeration reports.
const MaxModules = 1024

// Region is one contiguous range of pages sharing state and protection.
type Region struct {
	Base      common.Address
	Size      uint32
	Committed bool
	Protect   common.Protection
}

// End returns the first address past the region, saturating at the top of the space.
func (r Region) End() common.Address {
	end := uint64(r.Base) + uint64(r.Size)
	if end > uint64(common.MaxAddress) {
		return common.MaxAddress
	}
	return common.Address(end)
}

// Range returns [Base, End()).
func (r Region) Range() common.Range {
	return common.Range{Start: r.Base, End: r.End()}
}

// Module is a loaded image.
type Module struct {
	Name string
	Base common.Address
	Size uint32
}

// ModuleList is the result of one enumeration. Truncated is set when the
// process holds more than MaxModules modules.
type ModuleList struct {
	Modules   []Module
	Truncated bool
}

// Protector changes page protection.
type Protector interface {
	// Unprotect makes [addr, addr+size) readable, writable and executable and
	// returns the protection it replaced.
	Unprotect(addr common.Address, size uint32) (common.Protection, error)
	Protect(addr common.Address, size uint32, prot common.Protection) error
}

// RegionQuerier describes the region containing addr, or the next region
// above it when addr falls in a gap.
type RegionQuerier interface {
	QueryRegion(addr common.Address) (Region, error)
}

// ModuleEnumerator lists the modules loaded in the address space, at most
// MaxModules of them.
type ModuleEnumerator interface {
	EnumerateModules() (ModuleList, error)
}

// Block is memory owned by an Allocator. Its base never moves.
type Block struct {
	Base  common.Address
	Bytes []byte
}

// Allocator hands out read-write blocks with a fixed address.
type Allocator interface {
	Allocate(size uint32) (*Block, error)
	Free(b *Block) error
}

// Space bundles every service of one address space.
type Space interface {
	common.MemoryReader
	common.MemoryWriter
	Protector
	RegionQuerier
	ModuleEnumerator
	Allocator
}

// ProtectionError reports a failed protection change.
type ProtectionError struct {
	Op   string
	Addr common.Address
	Size uint32
	Err  error
}

func (e *ProtectionError) Error() string {
	return fmt.Sprintf("%s %d bytes at %s: %v", e.Op, e.Size, e.Addr, e.Err)
}

func (e *ProtectionError) Unwrap() error { return e.Err }

// Patch writes data at addr in memory that may be write-protected: the range is
// unprotected, written, and its previous protection restored.
func Patch(p Protector, w common.MemoryWriter, addr common.Address, data []byte) error {
	size := uint32(len(data))
	old, err := p.Unprotect(addr, size)
	if err != nil {
		return err
	}
	n, werr := w.WriteMemory(addr, data)
	if werr == nil && n < len(data) {
		werr = fmt.Errorf("short write at %s: %d of %d bytes", addr, n, len(data))
	}
	if err := p.Protect(addr, size, old); err != nil {
		return errors.Join(werr, err)
	}
	return werr
}
