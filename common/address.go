package common

import "fmt"

// Address names a byte in a 32-bit target address space.
// All arithmetic wraps modulo 2^32.
type Address uint32

const (
	// NullGuard is the lowest address considered when no module scope is given.
	NullGuard Address = 0x1000
	// MaxAddress is the highest representable address.
	MaxAddress Address = 0xFFFFFFFF
)

// AddressFromUintptr converts a host pointer value, failing when it does not fit 32 bits.
func AddressFromUintptr(p uintptr) (Address, bool) {
	if uint64(p) > uint64(MaxAddress) {
		return 0, false
	}
	return Address(p), true
}

// Add returns a displaced by a signed delta.
func (a Address) Add(delta int32) Address {
	return a + Address(uint32(delta))
}

// Offset returns a advanced by n bytes.
func (a Address) Offset(n uint32) Address {
	return a + Address(n)
}

// Diff returns a-b as a wrapped signed displacement.
func (a Address) Diff(b Address) int32 {
	return int32(uint32(a) - uint32(b))
}

// Uint32 returns the raw address value.
func (a Address) Uint32() uint32 {
	return uint32(a)
}

// Uintptr returns the address as a host pointer value.
func (a Address) Uintptr() uintptr {
	return uintptr(a)
}

func (a Address) String() string {
	return fmt.Sprintf("0x%08X", uint32(a))
}

// Range is the half-open address interval [Start, End).
type Range struct {
	Start Address
	End   Address
}

// Contains reports whether addr lies inside the range.
func (r Range) Contains(addr Address) bool {
	return addr >= r.Start && addr < r.End
}

// Size returns the number of bytes covered.
func (r Range) Size() uint32 {
	if r.End <= r.Start {
		return 0
	}
	return uint32(r.End - r.Start)
}

func (r Range) String() string {
	return fmt.Sprintf("[%s-%s)", r.Start, r.End)
}
