package sigfile

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"hotpatch/common"
	"hotpatch/memory/memtest"
	"hotpatch/scan"
)

const sample = `signatures:
  - name: compare
    module: game.exe
    pattern: 29 D8 38 F4
    offset: -5
    protect: exec
    follow: true
  - name: banner
    pattern: "48656c6c6f"
  - name: missing
    pattern: DE AD BE EF
    protect: write
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := []Signature{
		{Name: "compare", Module: "game.exe", Pattern: Pattern{0x29, 0xD8, 0x38, 0xF4}, Offset: -5,
			Protect: Protect(common.Executable), Follow: true, Line: 2},
		{Name: "banner", Pattern: Pattern("Hello"), Protect: Protect(common.Readable), Line: 8},
		{Name: "missing", Pattern: Pattern{0xDE, 0xAD, 0xBE, 0xEF}, Protect: Protect(common.Writable), Line: 10},
	}
	if diff := cmp.Diff(want, f.Signatures); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEmpty(t *testing.T) {
	f, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error = %v", err)
	}
	if len(f.Signatures) != 0 {
		t.Errorf("Parse(nil) = %+v", f)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantSub string
	}{
		{"bad hex", "signatures:\n  - name: a\n    pattern: 2G\n", "line 3: bad pattern"},
		{"odd hex", "signatures:\n  - name: a\n    pattern: 29 D\n", "bad pattern"},
		{"bad protect", "signatures:\n  - name: a\n    pattern: 90\n    protect: rwx\n", "line 4: unknown protection"},
		{"unknown key", "signatures:\n  - name: a\n    pattern: 90\n    wildcard: true\n", "wildcard"},
		{"no name", "signatures:\n  - pattern: 90\n", "line 2: signature without a name"},
		{"no pattern", "signatures:\n  - name: a\n", "line 2: signature \"a\" has no pattern"},
		{"duplicate", "signatures:\n  - name: a\n    pattern: 90\n  - name: a\n    pattern: 91\n", "line 4: duplicate signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			if err == nil {
				t.Fatal("Parse() error = nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Parse() error = %q, want it to contain %q", err, tt.wantSub)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	space := memtest.New()
	text := make([]byte, 0x100)
	copy(text, []byte{0xE8, 0xFB, 0x0F, 0x00, 0x00, 0x29, 0xD8, 0x38, 0xF4})
	space.Map(0x00401000, text, common.ProtExecuteRead)
	data := make([]byte, 0x100)
	copy(data[0x20:], "Hello")
	space.Map(0x00402000, data, common.ProtReadWrite)
	space.AddModule("game.exe", 0x00401000, 0x1100)

	s := scan.New(space, scan.Config{})
	if err := s.Discover(); err != nil {
		t.Fatal(err)
	}
	f, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}

	results, err := Resolve(s, space, f.Signatures)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	type row struct {
		Name  string
		Addr  common.Address
		Found bool
	}
	var got []row
	for _, r := range results {
		got = append(got, row{r.Name, r.Addr, r.Found})
	}
	want := []row{
		{"compare", 0x00402000, true},
		{"banner", 0x00402020, true},
		{"missing", 0, false},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
	}
	if results[0].Branch == nil || !results[0].Branch.Link {
		t.Errorf("compare should record the followed call, got %+v", results[0].Branch)
	}
}

func TestResolveFollowNonBranch(t *testing.T) {
	space := memtest.New()
	space.Map(0x00401000, []byte{0x90, 0x29, 0xD8}, common.ProtExecuteRead)
	s := scan.New(space, scan.Config{})

	sigs := []Signature{{Name: "nop", Pattern: Pattern{0x29, 0xD8}, Offset: -1, Protect: Protect(common.Executable), Follow: true, Line: 3}}
	_, err := Resolve(s, space, sigs)
	if err == nil || !strings.Contains(err.Error(), `signature "nop" (line 3)`) {
		t.Errorf("Resolve() error = %v, want a decode failure naming the signature", err)
	}
}

func TestResolveZeroProtectScansReadable(t *testing.T) {
	space := memtest.New()
	data := make([]byte, 0x40)
	copy(data[0x10:], "Hello")
	space.Map(0x00402000, data, common.ProtReadWrite)
	s := scan.New(space, scan.Config{})

	results, err := Resolve(s, space, []Signature{{Name: "banner", Pattern: Pattern("Hello")}})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !results[0].Found || results[0].Addr != 0x00402010 {
		t.Errorf("Resolve() = %+v, want banner at 0x00402010", results[0])
	}
}
