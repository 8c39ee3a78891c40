// Package hook installs and removes branch redirections at code sites.
package hook

import (
	"errors"
	"fmt"

	"hotpatch/branch"
	"hotpatch/common"
	"hotpatch/memory"
	"hotpatch/patch"
)

// ErrTooShort is returned when the overwritten length cannot hold a near branch.
var ErrTooShort = errors.New("hook site shorter than a near branch")

// Kind selects the branch written at the site.
type Kind int

const (
	Jmp Kind = iota
	Call
)

func (k Kind) String() string {
	if k == Call {
		return "call"
	}
	return "jmp"
}

// Space is what a hook needs from an address space.
type Space interface {
	common.MemoryReader
	common.MemoryWriter
	memory.Protector
}

// Options configures Install.
type Options struct {
	Logger common.Logger
}

// Hook is an installed redirection. Remove restores the saved bytes.
type Hook struct {
	space     Space
	site      common.Address
	dest      common.Address
	kind      Kind
	saved     []byte
	previous  *branch.Instruction
	installed bool
	log       common.Logger
}

// Follow returns the destination of the branch at site.
func Follow(mem common.MemoryReader, site common.Address) (common.Address, error) {
	return branch.Target(mem, site)
}

// Install overwrites length bytes at site with a branch of kind to dest,
// padded with NOPs. A length of zero overwrites exactly the branch already at
// site, which must be a near call or jmp.
func Install(space Space, site common.Address, kind Kind, dest common.Address, length int, opts Options) (*Hook, error) {
	h := &Hook{space: space, site: site, dest: dest, kind: kind, log: common.OrNoOp(opts.Logger)}

	if in, err := branch.Decode(space, site); err == nil {
		h.previous = &in
	}
	if length == 0 {
		if h.previous == nil || h.previous.Size < branch.NearSize {
			return nil, fmt.Errorf("hook at %s: no near branch to replace: %w", site, ErrTooShort)
		}
		length = int(h.previous.Size)
	}
	if length < branch.NearSize {
		return nil, fmt.Errorf("hook at %s: %d bytes: %w", site, length, ErrTooShort)
	}

	h.saved = make([]byte, length)
	if err := common.ReadFull(space, site, h.saved); err != nil {
		return nil, fmt.Errorf("hook at %s: saving original bytes: %w", site, err)
	}

	var code [branch.NearSize]byte
	if kind == Call {
		code = branch.Call(site, dest)
	} else {
		code = branch.Jmp(site, dest)
	}
	if err := memory.Patch(space, space, site, branch.Pad(code[:], length)); err != nil {
		return nil, fmt.Errorf("hook at %s: %w", site, err)
	}
	h.installed = true
	h.log.Logf(common.SeverityInfo, "installed %s hook %s -> %s (%d bytes)", kind, site, dest, length)
	return h, nil
}

// InstallPatch hooks site to the entry of a bound patch.
func InstallPatch(space Space, site common.Address, kind Kind, p *patch.Patch, length int, opts Options) (*Hook, error) {
	if !p.Executable() {
		return nil, fmt.Errorf("hook at %s: patch at %s is not bound", site, p.Entry())
	}
	return Install(space, site, kind, p.Entry(), length, opts)
}

// Remove restores the original bytes. Removing twice is a no-op.
func (h *Hook) Remove() error {
	if !h.installed {
		return nil
	}
	if err := memory.Patch(h.space, h.space, h.site, h.saved); err != nil {
		return fmt.Errorf("unhook %s: %w", h.site, err)
	}
	h.installed = false
	h.log.Logf(common.SeverityInfo, "removed hook at %s", h.site)
	return nil
}

func (h *Hook) Site() common.Address { return h.site }
func (h *Hook) Dest() common.Address { return h.dest }
func (h *Hook) Kind() Kind           { return h.kind }
func (h *Hook) Installed() bool      { return h.installed }

// Saved returns a copy of the bytes the hook replaced.
func (h *Hook) Saved() []byte { return append([]byte(nil), h.saved...) }

// Original returns the branch that was at the site before installation, if
// the site held a supported branch. Replacement code chains to its Target.
func (h *Hook) Original() (branch.Instruction, bool) {
	if h.previous == nil {
		return branch.Instruction{}, false
	}
	return *h.previous, true
}
