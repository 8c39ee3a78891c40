package memory

import "hotpatch/common"

var _ Space = (*Process)(nil)

// Native returns the current process as a Space.
func Native() (*Process, error) {
	p, err := newProcess()
	if err != nil {
		return nil, err
	}
	p.log = common.NewNoOpLogger()
	return p, nil
}

// SetLogger sets the logger used for non-fatal enumeration problems.
func (p *Process) SetLogger(l common.Logger) { p.log = common.OrNoOp(l) }

// hostAddress converts a pointer returned by the OS.
func hostAddress(p uintptr) (common.Address, error) {
	a, ok := common.AddressFromUintptr(p)
	if !ok {
		return 0, ErrUnsupported
	}
	return a, nil
}
