//go:build windows && 386

package memory

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"hotpatch/common"
)

// Process is the current process viewed through the Win32 memory API.
type Process struct {
	handle windows.Handle
	log    common.Logger
}

func newProcess() (*Process, error) {
	return &Process{handle: windows.CurrentProcess()}, nil
}

func (p *Process) ReadMemory(addr common.Address, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	var n uintptr
	err := windows.ReadProcessMemory(p.handle, addr.Uintptr(), &data[0], uintptr(len(data)), &n)
	if err != nil && n == 0 {
		return 0, fmt.Errorf("read at %s: %w", addr, err)
	}
	return int(n), nil
}

func (p *Process) WriteMemory(addr common.Address, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	var n uintptr
	err := windows.WriteProcessMemory(p.handle, addr.Uintptr(), &data[0], uintptr(len(data)), &n)
	if err != nil {
		return int(n), fmt.Errorf("write at %s: %w", addr, err)
	}
	return int(n), nil
}

func (p *Process) Unprotect(addr common.Address, size uint32) (common.Protection, error) {
	var old uint32
	err := windows.VirtualProtect(addr.Uintptr(), uintptr(size), windows.PAGE_EXECUTE_READWRITE, &old)
	if err != nil {
		return 0, &ProtectionError{Op: "unprotect", Addr: addr, Size: size, Err: err}
	}
	return common.Protection(old), nil
}

func (p *Process) Protect(addr common.Address, size uint32, prot common.Protection) error {
	var old uint32
	if err := windows.VirtualProtect(addr.Uintptr(), uintptr(size), uint32(prot), &old); err != nil {
		return &ProtectionError{Op: "protect " + prot.String(), Addr: addr, Size: size, Err: err}
	}
	return nil
}

func (p *Process) QueryRegion(addr common.Address) (Region, error) {
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQuery(addr.Uintptr(), &mbi, unsafe.Sizeof(mbi)); err != nil {
		// VirtualQuery fails past the highest user-mode address.
		return Region{}, ErrNoRegion
	}
	base, err := hostAddress(mbi.BaseAddress)
	if err != nil {
		return Region{}, err
	}
	return Region{
		Base:      base,
		Size:      uint32(mbi.RegionSize),
		Committed: mbi.State == windows.MEM_COMMIT,
		Protect:   common.Protection(mbi.Protect),
	}, nil
}

func (p *Process) EnumerateModules() (ModuleList, error) {
	var handles [MaxModules]windows.Handle
	var needed uint32
	err := windows.EnumProcessModules(p.handle, &handles[0], uint32(unsafe.Sizeof(handles)), &needed)
	if err != nil {
		return ModuleList{}, fmt.Errorf("EnumProcessModules: %w", err)
	}
	count := int(needed / uint32(unsafe.Sizeof(handles[0])))
	list := ModuleList{Truncated: count > MaxModules}
	count = min(count, MaxModules)

	mods, err := collectModules(handles[:count],
		func(h windows.Handle) (common.Address, uint32, error) {
			var info windows.ModuleInfo
			if err := windows.GetModuleInformation(p.handle, h, &info, uint32(unsafe.Sizeof(info))); err != nil {
				return 0, 0, fmt.Errorf("GetModuleInformation: %w", err)
			}
			base, err := hostAddress(info.BaseOfDll)
			return base, info.SizeOfImage, err
		},
		func(h windows.Handle) (string, error) {
			var name [windows.MAX_PATH]uint16
			if err := windows.GetModuleBaseName(p.handle, h, &name[0], uint32(len(name))); err != nil {
				return "", fmt.Errorf("GetModuleBaseName: %w", err)
			}
			return windows.UTF16ToString(name[:]), nil
		},
		p.log)
	if err != nil {
		return ModuleList{}, err
	}
	list.Modules = mods
	return list, nil
}

func (p *Process) Allocate(size uint32) (*Block, error) {
	ptr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("VirtualAlloc %d bytes: %w", size, err)
	}
	base, err := hostAddress(ptr)
	if err != nil {
		return nil, err
	}
	return &Block{Base: base, Bytes: unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size)}, nil
}

func (p *Process) Free(b *Block) error {
	if err := windows.VirtualFree(b.Base.Uintptr(), 0, windows.MEM_RELEASE); err != nil {
		return fmt.Errorf("VirtualFree %s: %w", b.Base, err)
	}
	b.Bytes = nil
	return nil
}
