package memory

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"hotpatch/common"
)

// mapping is one line of a /proc/<pid>/maps listing.
type mapping struct {
	start, end common.Address
	prot       common.Protection
	path       string
}

// parseMaps reads a /proc/<pid>/maps listing. Mappings above the 32-bit space are dropped.
func parseMaps(r io.Reader) ([]mapping, error) {
	var out []mapping
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) < 5 {
			return nil, fmt.Errorf("maps line %d: too few fields", line)
		}
		lo, hi, ok := strings.Cut(fields[0], "-")
		if !ok {
			return nil, fmt.Errorf("maps line %d: bad range %q", line, fields[0])
		}
		start, err := strconv.ParseUint(lo, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("maps line %d: %w", line, err)
		}
		end, err := strconv.ParseUint(hi, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("maps line %d: %w", line, err)
		}
		if start > uint64(common.MaxAddress) {
			continue
		}
		end = min(end, uint64(common.MaxAddress))
		m := mapping{
			start: common.Address(start),
			end:   common.Address(end),
			prot:  protFromPerms(fields[1]),
		}
		if len(fields) >= 6 {
			m.path = strings.Join(fields[5:], " ")
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out, nil
}

// protFromPerms maps an "rwxp" permission string onto the Windows-style values.
func protFromPerms(perms string) common.Protection {
	if len(perms) < 3 {
		return common.ProtNoAccess
	}
	r, w, x := perms[0] == 'r', perms[1] == 'w', perms[2] == 'x'
	switch {
	case x && w:
		return common.ProtExecuteReadWrite
	case x && r:
		return common.ProtExecuteRead
	case x:
		return common.ProtExecute
	case w:
		return common.ProtReadWrite
	case r:
		return common.ProtReadOnly
	}
	return common.ProtNoAccess
}

// regionAt answers a region query from a sorted mapping list. Gaps are
// reported as uncommitted regions.
func regionAt(maps []mapping, addr common.Address) (Region, error) {
	for _, m := range maps {
		if addr >= m.end {
			continue
		}
		if addr < m.start {
			return Region{Base: addr, Size: uint32(m.start - addr)}, nil
		}
		return Region{Base: m.start, Size: uint32(m.end - m.start), Committed: true, Protect: m.prot}, nil
	}
	return Region{}, ErrNoRegion
}

// modulesFromMaps groups file-backed mappings into modules.
func modulesFromMaps(maps []mapping) ModuleList {
	var list ModuleList
	index := map[string]int{}
	for _, m := range maps {
		if !strings.HasPrefix(m.path, "/") {
			continue
		}
		if i, ok := index[m.path]; ok {
			mod := &list.Modules[i]
			mod.Size = uint32(max(m.end, mod.Base.Offset(mod.Size)) - mod.Base)
			continue
		}
		if len(list.Modules) == MaxModules {
			list.Truncated = true
			continue
		}
		index[m.path] = len(list.Modules)
		list.Modules = append(list.Modules, Module{
			Name: strings.ToLower(filepath.Base(m.path)),
			Base: m.start,
			Size: uint32(m.end - m.start),
		})
	}
	return list
}
