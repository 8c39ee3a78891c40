//go:build linux && 386

package memory

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"hotpatch/common"
)

// Process is the current process viewed through /proc/self and mprotect.
type Process struct {
	mem *os.File
	log common.Logger
}

func newProcess() (*Process, error) {
	f, err := os.OpenFile("/proc/self/mem", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open process memory: %w", err)
	}
	return &Process{mem: f}, nil
}

func (p *Process) ReadMemory(addr common.Address, data []byte) (int, error) {
	n, err := p.mem.ReadAt(data, int64(addr))
	if n == 0 && err != nil {
		return 0, fmt.Errorf("read at %s: %w", addr, err)
	}
	return n, nil
}

func (p *Process) WriteMemory(addr common.Address, data []byte) (int, error) {
	n, err := p.mem.WriteAt(data, int64(addr))
	if err != nil {
		return n, fmt.Errorf("write at %s: %w", addr, err)
	}
	return n, nil
}

func (p *Process) maps() ([]mapping, error) {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseMaps(f)
}

func (p *Process) Unprotect(addr common.Address, size uint32) (common.Protection, error) {
	maps, err := p.maps()
	if err != nil {
		return 0, &ProtectionError{Op: "unprotect", Addr: addr, Size: size, Err: err}
	}
	region, err := regionAt(maps, addr)
	if err != nil || !region.Committed || region.Base > addr {
		return 0, &ProtectionError{Op: "unprotect", Addr: addr, Size: size, Err: common.ErrUnmapped}
	}
	if err := mprotect(addr, size, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC); err != nil {
		return 0, &ProtectionError{Op: "unprotect", Addr: addr, Size: size, Err: err}
	}
	return region.Protect, nil
}

func (p *Process) Protect(addr common.Address, size uint32, prot common.Protection) error {
	flags := unix.PROT_NONE
	if prot.CanRead() {
		flags |= unix.PROT_READ
	}
	if prot.CanWrite() {
		flags |= unix.PROT_WRITE
	}
	if prot.CanExecute() {
		flags |= unix.PROT_EXEC
	}
	if err := mprotect(addr, size, flags); err != nil {
		return &ProtectionError{Op: "protect " + prot.String(), Addr: addr, Size: size, Err: err}
	}
	return nil
}

// mprotect widens [addr, addr+size) to whole pages.
func mprotect(addr common.Address, size uint32, flags int) error {
	page := uint32(unix.Getpagesize())
	start := uint32(addr) &^ (page - 1)
	end := (uint32(addr) + size + page - 1) &^ (page - 1)
	pages := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(start))), end-start)
	return unix.Mprotect(pages, flags)
}

func (p *Process) QueryRegion(addr common.Address) (Region, error) {
	maps, err := p.maps()
	if err != nil {
		return Region{}, err
	}
	return regionAt(maps, addr)
}

func (p *Process) EnumerateModules() (ModuleList, error) {
	maps, err := p.maps()
	if err != nil {
		return ModuleList{}, fmt.Errorf("read module map: %w", err)
	}
	return modulesFromMaps(maps), nil
}

func (p *Process) Allocate(size uint32) (*Block, error) {
	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", size, err)
	}
	base, err := hostAddress(uintptr(unsafe.Pointer(&b[0])))
	if err != nil {
		unix.Munmap(b)
		return nil, err
	}
	return &Block{Base: base, Bytes: b}, nil
}

func (p *Process) Free(b *Block) error {
	if err := unix.Munmap(b.Bytes); err != nil {
		return fmt.Errorf("munmap %s: %w", b.Base, err)
	}
	b.Bytes = nil
	return nil
}
