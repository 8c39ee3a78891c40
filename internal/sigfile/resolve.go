package sigfile

import (
	"fmt"

	"hotpatch/branch"
	"hotpatch/common"
	"hotpatch/scan"
)

// Result is a resolved signature.
type Result struct {
	Name  string
	Addr  common.Address
	Found bool
	// Branch is the decoded instruction when the signature follows a branch
	Branch *branch.Instruction
}

type group struct {
	module string
	prot   common.Protection
}

// Resolve finds every signature, batching those that share a module and
// protection into one scan. Results are in signature order. A follow that
// does not land on a supported branch is an error.
func Resolve(s *scan.Scanner, mem common.MemoryReader, sigs []Signature) ([]Result, error) {
	results := make([]Result, len(sigs))
	batches := map[group][]int{}
	var order []group
	for i, sig := range sigs {
		results[i].Name = sig.Name
		g := group{module: sig.Module, prot: common.Protection(sig.Protect)}
		if _, ok := batches[g]; !ok {
			order = append(order, g)
		}
		batches[g] = append(batches[g], i)
	}

	for _, g := range order {
		idx := batches[g]
		patterns := make([][]byte, len(idx))
		for j, i := range idx {
			patterns[j] = sigs[i].Pattern
		}
		var modules []string
		if g.module != "" {
			modules = []string{g.module}
		}
		matches, err := s.FindBytes(patterns, g.prot, modules...)
		if err != nil {
			return nil, err
		}
		for j, i := range idx {
			if !matches[j].Found {
				continue
			}
			addr := matches[j].Addr.Add(sigs[i].Offset)
			if sigs[i].Follow {
				in, err := branch.Decode(mem, addr)
				if err != nil {
					return nil, fmt.Errorf("signature %q (line %d): %w", sigs[i].Name, sigs[i].Line, err)
				}
				results[i].Branch = &in
				addr = in.Target
			}
			results[i].Addr = addr
			results[i].Found = true
		}
	}
	return results, nil
}
