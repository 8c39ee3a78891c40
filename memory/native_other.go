//go:build !((windows || linux) && 386)

package memory

import "hotpatch/common"

// Process is unavailable on this platform; every method fails with ErrUnsupported.
type Process struct {
	log common.Logger
}

func newProcess() (*Process, error) {
	return nil, ErrUnsupported
}

func (p *Process) ReadMemory(common.Address, []byte) (int, error)  { return 0, ErrUnsupported }
func (p *Process) WriteMemory(common.Address, []byte) (int, error) { return 0, ErrUnsupported }
func (p *Process) Unprotect(common.Address, uint32) (common.Protection, error) {
	return 0, ErrUnsupported
}
func (p *Process) Protect(common.Address, uint32, common.Protection) error { return ErrUnsupported }
func (p *Process) QueryRegion(common.Address) (Region, error)              { return Region{}, ErrUnsupported }
func (p *Process) EnumerateModules() (ModuleList, error)                   { return ModuleList{}, ErrUnsupported }
func (p *Process) Allocate(uint32) (*Block, error)                         { return nil, ErrUnsupported }
func (p *Process) Free(*Block) error                                       { return ErrUnsupported }
