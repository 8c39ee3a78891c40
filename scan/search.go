package scan

import (
	"bytes"

	"hotpatch/common"
)

// Match is the result for one pattern.
type Match struct {
	Pattern []byte
	Addr    common.Address
	Found   bool
}

// FindBytes returns the first occurrence of each pattern in the named modules,
// or anywhere above MinAddress when no module is named, searching regions
// whose protection matches prot (zero means common.Readable). Results are in
// pattern order.
func (s *Scanner) FindBytes(patterns [][]byte, prot common.Protection, modules ...string) ([]Match, error) {
	if len(patterns) == 0 {
		return []Match{}, nil
	}
	return s.FindBytesInRanges(patterns, prot, s.scope(modules))
}

// FindBytesExec is FindBytes over executable regions.
func (s *Scanner) FindBytesExec(patterns [][]byte, modules ...string) ([]Match, error) {
	return s.FindBytes(patterns, common.Executable, modules...)
}

// FindBytesInRanges is FindBytes over explicit ranges.
func (s *Scanner) FindBytesInRanges(patterns [][]byte, prot common.Protection, ranges []common.Range) ([]Match, error) {
	matches := make([]Match, len(patterns))
	maxLen := 0
	for i, p := range patterns {
		matches[i].Pattern = p
		maxLen = max(maxLen, len(p))
	}
	if len(patterns) == 0 {
		return matches, nil
	}

	remaining := len(patterns)
	overlap := uint32(max(maxLen-1, 0))
	buf := make([]byte, s.chunk+overlap)

	err := s.walk(ranges, prot, func(lo, hi common.Address) bool {
		for pos := lo; pos < hi; {
			want := min(uint64(s.chunk)+uint64(overlap), uint64(hi-pos))
			n, err := s.space.ReadMemory(pos, buf[:want])
			if err != nil {
				s.log.Logf(common.SeverityDebug, "skipping unreadable memory at %s: %v", pos, err)
				return false
			}
			window := buf[:n]
			for i := range matches {
				if matches[i].Found {
					continue
				}
				if idx := bytes.Index(window, matches[i].Pattern); idx >= 0 {
					matches[i].Addr = pos.Offset(uint32(idx))
					matches[i].Found = true
					remaining--
				}
			}
			if remaining == 0 {
				return true
			}
			if uint64(n) < want || uint64(hi-pos) <= uint64(s.chunk) {
				return false
			}
			pos = pos.Offset(s.chunk)
		}
		return false
	})
	return matches, err
}

// FindAddresses reports for each address whether it lies in a region whose
// protection matches prot (zero means common.Readable), within the named modules or anywhere above
// MinAddress when no module is named.
func (s *Scanner) FindAddresses(addrs []common.Address, prot common.Protection, modules ...string) ([]bool, error) {
	if len(addrs) == 0 {
		return []bool{}, nil
	}
	return s.FindAddressesInRanges(addrs, prot, s.scope(modules))
}

// FindAddressesWrite checks addresses against writable data regions.
func (s *Scanner) FindAddressesWrite(addrs []common.Address, modules ...string) ([]bool, error) {
	return s.FindAddresses(addrs, common.Writable, modules...)
}

// FindAddressesExec checks addresses against executable regions.
func (s *Scanner) FindAddressesExec(addrs []common.Address, modules ...string) ([]bool, error) {
	return s.FindAddresses(addrs, common.Executable, modules...)
}

// FindAddressesInRanges is FindAddresses over explicit ranges.
func (s *Scanner) FindAddressesInRanges(addrs []common.Address, prot common.Protection, ranges []common.Range) ([]bool, error) {
	found := make([]bool, len(addrs))
	if len(addrs) == 0 {
		return found, nil
	}
	remaining := len(addrs)
	err := s.walk(ranges, prot, func(lo, hi common.Address) bool {
		r := common.Range{Start: lo, End: hi}
		for i, a := range addrs {
			if !found[i] && r.Contains(a) {
				found[i] = true
				remaining--
			}
		}
		return remaining == 0
	})
	return found, err
}
