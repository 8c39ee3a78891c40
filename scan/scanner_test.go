package scan

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"hotpatch/common"
	"hotpatch/memory/memtest"
)

const (
	heapBase  common.Address = 0x00010000
	gameBase  common.Address = 0x00400000
	textBase  common.Address = 0x00401000
	dataBase  common.Address = 0x00402000
	guardBase common.Address = 0x00030000
)

// newTestSpace lays out a heap, a reserved range, a guard page and a
// three-region module.
func newTestSpace() *memtest.Space {
	space := memtest.New()

	heap := make([]byte, 0x1000)
	copy(heap[0x100:], "heap-marker")
	space.Map(heapBase, heap, common.ProtReadWrite)

	space.Reserve(0x00020000, 0x1000)

	guard := make([]byte, 0x1000)
	copy(guard, "guarded")
	space.Map(guardBase, guard, common.ProtReadWrite|common.ProtGuard)

	header := make([]byte, 0x1000)
	copy(header, "MZ")
	space.Map(gameBase, header, common.ProtReadOnly)

	text := bytes.Repeat([]byte{0xCC}, 0x1000)
	copy(text[0x10:], []byte{0x29, 0xD8, 0x38, 0xF4, 0x04})
	copy(text[0x80:], []byte{0x29, 0xD8, 0x38, 0xF4, 0x04})
	space.Map(textBase, text, common.ProtExecuteRead)

	data := make([]byte, 0x1000)
	copy(data[0x40:], "data-marker")
	space.Map(dataBase, data, common.ProtReadWrite)

	space.AddModule("Game.exe", gameBase, 0x3000)
	return space
}

func TestDiscover(t *testing.T) {
	space := newTestSpace()
	space.AddModule("KERNEL32.DLL", 0x7C800000, 0x100000)
	s := New(space, Config{})

	for i := 0; i < 2; i++ {
		if err := s.Discover(); err != nil {
			t.Fatalf("Discover() error = %v", err)
		}
	}

	want := []ModuleRange{
		{Name: "game.exe", Range: common.Range{Start: gameBase, End: 0x00403000}},
		{Name: "kernel32.dll", Range: common.Range{Start: 0x7C800000, End: 0x7C900000}},
	}
	if diff := cmp.Diff(want, s.Modules()); diff != "" {
		t.Errorf("Modules() mismatch (-want +got):\n%s", diff)
	}
	if _, ok := s.Module("GAME.EXE"); !ok {
		t.Errorf("Module() lookup is case-sensitive")
	}
	if s.Truncated() {
		t.Errorf("Truncated() = true")
	}
}

func TestDiscoverFailureClearsSnapshot(t *testing.T) {
	space := newTestSpace()
	s := New(space, Config{})
	if err := s.Discover(); err != nil {
		t.Fatal(err)
	}

	space.EnumErr = errors.New("access denied")
	err := s.Discover()
	var de *DiscoveryError
	if !errors.As(err, &de) || !errors.Is(err, space.EnumErr) {
		t.Fatalf("Discover() error = %v, want *DiscoveryError wrapping the cause", err)
	}
	if got := s.Modules(); len(got) != 0 {
		t.Errorf("Modules() after failed discovery = %v, want empty", got)
	}
}

func TestDiscoverTruncated(t *testing.T) {
	var stdout, stderr bytes.Buffer
	space := newTestSpace()
	space.Truncated = true
	s := New(space, Config{Logger: common.NewStdLoggerWithWriter(&stdout, &stderr, common.SeverityInfo, "scan")})

	if err := s.Discover(); err != nil {
		t.Fatal(err)
	}
	if !s.Truncated() {
		t.Errorf("Truncated() = false")
	}
	if !strings.Contains(stdout.String(), "WARNING") || !strings.Contains(stdout.String(), "truncated") {
		t.Errorf("expected a truncation warning, got: %s", stdout.String())
	}
}

func TestFindBytes(t *testing.T) {
	sig := []byte{0x29, 0xD8, 0x38, 0xF4, 0x04}

	tests := []struct {
		name     string
		patterns [][]byte
		prot     common.Protection
		modules  []string
		want     []Match
	}{
		{
			name:     "whole space readable",
			patterns: [][]byte{sig, []byte("data-marker"), []byte("heap-marker"), []byte("absent")},
			prot:     common.Readable,
			want: []Match{
				{Pattern: sig, Addr: textBase + 0x10, Found: true},
				{Pattern: []byte("data-marker"), Addr: dataBase + 0x40, Found: true},
				{Pattern: []byte("heap-marker"), Addr: heapBase + 0x100, Found: true},
				{Pattern: []byte("absent")},
			},
		},
		{
			name:     "exec only",
			patterns: [][]byte{sig, []byte("data-marker")},
			prot:     common.Executable,
			want: []Match{
				{Pattern: sig, Addr: textBase + 0x10, Found: true},
				{Pattern: []byte("data-marker")},
			},
		},
		{
			name:     "module scope excludes heap",
			patterns: [][]byte{[]byte("heap-marker"), []byte("data-marker")},
			prot:     common.Readable,
			modules:  []string{"GAME.exe"},
			want: []Match{
				{Pattern: []byte("heap-marker")},
				{Pattern: []byte("data-marker"), Addr: dataBase + 0x40, Found: true},
			},
		},
		{
			name:     "unknown module finds nothing",
			patterns: [][]byte{sig},
			prot:     common.Readable,
			modules:  []string{"missing.dll"},
			want:     []Match{{Pattern: sig}},
		},
		{
			name:     "guard pages skipped",
			patterns: [][]byte{[]byte("guarded")},
			prot:     common.Readable,
			want:     []Match{{Pattern: []byte("guarded")}},
		},
		{
			name:     "empty pattern matches first qualifying region",
			patterns: [][]byte{{}},
			prot:     common.Executable,
			want:     []Match{{Pattern: []byte{}, Addr: textBase, Found: true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(newTestSpace(), Config{})
			if err := s.Discover(); err != nil {
				t.Fatal(err)
			}
			got, err := s.FindBytes(tt.patterns, tt.prot, tt.modules...)
			if err != nil {
				t.Fatalf("FindBytes() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FindBytes() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFindBytesShortCircuit(t *testing.T) {
	space := newTestSpace()
	s := New(space, Config{})

	got, err := s.FindBytes([][]byte{[]byte("heap-marker")}, common.Readable)
	if err != nil || !got[0].Found {
		t.Fatalf("FindBytes() = %v, %v", got, err)
	}
	// the gap below the heap, then the heap itself
	if space.Queries != 2 {
		t.Errorf("QueryRegion called %d times, want 2", space.Queries)
	}

	space.Queries = 0
	if _, err := s.FindBytes([][]byte{[]byte("absent")}, common.Readable); err != nil {
		t.Fatal(err)
	}
	if space.Queries <= 2 {
		t.Errorf("a missing pattern should walk the whole space, got %d queries", space.Queries)
	}
}

func TestFindBytesEmptyList(t *testing.T) {
	space := newTestSpace()
	s := New(space, Config{})
	got, err := s.FindBytes(nil, common.Readable)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 || space.Queries != 0 {
		t.Errorf("FindBytes(nil) = %v with %d queries, want empty and none", got, space.Queries)
	}
}

func TestFindBytesAcrossChunks(t *testing.T) {
	space := memtest.New()
	region := make([]byte, 64)
	copy(region[14:], "span")
	copy(region[60:], "tail")
	space.Map(0x5000, region, common.ProtReadOnly)

	s := New(space, Config{ChunkSize: 16})
	got, err := s.FindBytesInRanges([][]byte{[]byte("span"), []byte("tail")}, common.Readable,
		[]common.Range{{Start: 0x5000, End: 0x6000}})
	if err != nil {
		t.Fatal(err)
	}
	want := []Match{
		{Pattern: []byte("span"), Addr: 0x500E, Found: true},
		{Pattern: []byte("tail"), Addr: 0x503C, Found: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FindBytesInRanges() mismatch (-want +got):\n%s", diff)
	}
}

func TestFindBytesRangeClipping(t *testing.T) {
	s := New(newTestSpace(), Config{})
	sig := []byte{0x29, 0xD8, 0x38, 0xF4, 0x04}

	got, err := s.FindBytesInRanges([][]byte{sig}, common.Executable,
		[]common.Range{{Start: textBase + 0x20, End: textBase + 0x100}})
	if err != nil {
		t.Fatal(err)
	}
	if !got[0].Found || got[0].Addr != textBase+0x80 {
		t.Errorf("FindBytesInRanges() = %+v, want match at %s", got[0], textBase+0x80)
	}

	got, err = s.FindBytesInRanges([][]byte{sig}, common.Executable,
		[]common.Range{{Start: textBase + 0x20, End: textBase + 0x83}})
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Found {
		t.Errorf("match straddling the range end should not be reported: %+v", got[0])
	}
}

func TestFindAddresses(t *testing.T) {
	addrs := []common.Address{textBase + 4, dataBase + 8, 0x00020010, heapBase, guardBase}

	tests := []struct {
		name string
		find func(s *Scanner) ([]bool, error)
		want []bool
	}{
		{"readable", func(s *Scanner) ([]bool, error) { return s.FindAddresses(addrs, common.Readable) },
			[]bool{true, true, false, true, false}},
		{"exec", func(s *Scanner) ([]bool, error) { return s.FindAddressesExec(addrs) },
			[]bool{true, false, false, false, false}},
		{"write", func(s *Scanner) ([]bool, error) { return s.FindAddressesWrite(addrs) },
			[]bool{false, true, false, true, false}},
		{"write in module", func(s *Scanner) ([]bool, error) { return s.FindAddressesWrite(addrs, "game.exe") },
			[]bool{false, true, false, false, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(newTestSpace(), Config{})
			if err := s.Discover(); err != nil {
				t.Fatal(err)
			}
			got, err := tt.find(s)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDefaultProtectionIsReadable(t *testing.T) {
	s := New(newTestSpace(), Config{})

	matches, err := s.FindBytes([][]byte{[]byte("heap-marker"), []byte("guarded")}, 0)
	if err != nil {
		t.Fatalf("FindBytes() error = %v", err)
	}
	want := []Match{
		{Pattern: []byte("heap-marker"), Addr: heapBase + 0x100, Found: true},
		{Pattern: []byte("guarded")},
	}
	if diff := cmp.Diff(want, matches); diff != "" {
		t.Errorf("FindBytes(0) mismatch (-want +got):\n%s", diff)
	}

	found, err := s.FindAddresses([]common.Address{heapBase, textBase, guardBase}, 0)
	if err != nil {
		t.Fatalf("FindAddresses() error = %v", err)
	}
	if diff := cmp.Diff([]bool{true, true, false}, found); diff != "" {
		t.Errorf("FindAddresses(0) mismatch (-want +got):\n%s", diff)
	}
}

func TestFindAddressesShortCircuit(t *testing.T) {
	space := newTestSpace()
	s := New(space, Config{})
	got, err := s.FindAddresses([]common.Address{heapBase + 1}, common.Writable)
	if err != nil || !got[0] {
		t.Fatalf("FindAddresses() = %v, %v", got, err)
	}
	if space.Queries != 2 {
		t.Errorf("QueryRegion called %d times, want 2", space.Queries)
	}

	space.Queries = 0
	if got, _ := s.FindAddresses(nil, common.Writable); len(got) != 0 || space.Queries != 0 {
		t.Errorf("FindAddresses(nil) = %v with %d queries", got, space.Queries)
	}
}
