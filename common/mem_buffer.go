package common

import (
	"fmt"
)

// MemoryBuffer implements MemoryReader and MemoryWriter for a single
// contiguous region of memory.
type MemoryBuffer struct {
	// BaseAddr is the starting address of this memory region
	BaseAddr Address
	// Data holds the actual memory contents
	Data []byte
}

// NewMemoryBuffer creates a new memory buffer for the given address range.
func NewMemoryBuffer(baseAddr Address, data []byte) *MemoryBuffer {
	return &MemoryBuffer{
		BaseAddr: baseAddr,
		Data:     data,
	}
}

// span returns the offset of addr and the bytes available from it.
func (mb *MemoryBuffer) span(addr Address) (uint32, uint32, error) {
	if addr < mb.BaseAddr {
		return 0, 0, fmt.Errorf("address %s is before buffer base %s: %w", addr, mb.BaseAddr, ErrUnmapped)
	}
	offset := uint32(addr - mb.BaseAddr)
	if uint64(offset) >= uint64(len(mb.Data)) {
		return 0, 0, fmt.Errorf("address %s is beyond buffer range %s: %w", addr, mb.Range(), ErrUnmapped)
	}
	return offset, uint32(len(mb.Data)) - offset, nil
}

// ReadMemory copies as many bytes as the buffer holds from addr onwards.
func (mb *MemoryBuffer) ReadMemory(addr Address, data []byte) (int, error) {
	offset, available, err := mb.span(addr)
	if err != nil {
		return 0, err
	}
	n := min(uint32(len(data)), available)
	copy(data, mb.Data[offset:offset+n])
	return int(n), nil
}

// WriteMemory stores data at addr, truncated at the end of the buffer.
func (mb *MemoryBuffer) WriteMemory(addr Address, data []byte) (int, error) {
	offset, available, err := mb.span(addr)
	if err != nil {
		return 0, err
	}
	n := min(uint32(len(data)), available)
	copy(mb.Data[offset:offset+n], data)
	return int(n), nil
}

// Contains checks if the given address falls within this buffer's range.
func (mb *MemoryBuffer) Contains(addr Address) bool {
	return addr >= mb.BaseAddr && uint64(addr-mb.BaseAddr) < uint64(len(mb.Data))
}

// EndAddr returns the address immediately after the last byte in this buffer.
func (mb *MemoryBuffer) EndAddr() Address {
	return mb.BaseAddr.Offset(uint32(len(mb.Data)))
}

// Range returns the buffer's address interval.
func (mb *MemoryBuffer) Range() Range {
	return Range{Start: mb.BaseAddr, End: mb.EndAddr()}
}

// MultiRegionMemory spans several non-overlapping buffers.
type MultiRegionMemory struct {
	Regions []*MemoryBuffer
}

// NewMultiRegionMemory creates a memory accessor that spans multiple regions.
func NewMultiRegionMemory() *MultiRegionMemory {
	return &MultiRegionMemory{
		Regions: make([]*MemoryBuffer, 0),
	}
}

// AddRegion adds a buffer, rejecting empty buffers and overlaps with existing regions.
func (mrm *MultiRegionMemory) AddRegion(region *MemoryBuffer) error {
	if len(region.Data) == 0 {
		return fmt.Errorf("empty region at %s", region.BaseAddr)
	}
	if uint64(region.BaseAddr)+uint64(len(region.Data)) > uint64(MaxAddress) {
		return fmt.Errorf("region at %s overflows the address space", region.BaseAddr)
	}
	for _, existing := range mrm.Regions {
		if region.BaseAddr < existing.EndAddr() && existing.BaseAddr < region.EndAddr() {
			return fmt.Errorf("overlap detected: %s conflicts with existing %s",
				region.Range(), existing.Range())
		}
	}
	mrm.Regions = append(mrm.Regions, region)
	return nil
}

// Find returns the region containing addr, or nil.
func (mrm *MultiRegionMemory) Find(addr Address) *MemoryBuffer {
	for _, region := range mrm.Regions {
		if region.Contains(addr) {
			return region
		}
	}
	return nil
}

// ReadMemory reads from the region containing addr.
func (mrm *MultiRegionMemory) ReadMemory(addr Address, data []byte) (int, error) {
	if region := mrm.Find(addr); region != nil {
		return region.ReadMemory(addr, data)
	}
	return 0, fmt.Errorf("address %s not found in any memory region: %w", addr, ErrUnmapped)
}

// WriteMemory writes into the region containing addr.
func (mrm *MultiRegionMemory) WriteMemory(addr Address, data []byte) (int, error) {
	if region := mrm.Find(addr); region != nil {
		return region.WriteMemory(addr, data)
	}
	return 0, fmt.Errorf("address %s not found in any memory region: %w", addr, ErrUnmapped)
}
