package patch

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCompileTemplate(t *testing.T) {
	l, err := CompileTemplate(compareTemplate)
	if err != nil {
		t.Fatalf("CompileTemplate() error = %v", err)
	}

	if l.Len() != 21 {
		t.Errorf("Len() = %d, want 21", l.Len())
	}
	wantPlaceholders := []PlaceholderDescriptor{
		{Name: "equal", Offset: 7, Relative: true},
		{Name: "other", Offset: 12, Relative: true},
		{Name: "value", Offset: 17, Relative: false},
	}
	if diff := cmp.Diff(wantPlaceholders, l.Placeholders()); diff != "" {
		t.Errorf("Placeholders() mismatch (-want +got):\n%s", diff)
	}
	wantInitial := []byte{
		0x29, 0xD8, 0x38, 0xF4, 0x04,
		0x0F, 0x84, 0, 0, 0, 0,
		0xE9, 0, 0, 0, 0,
		0x68, 0, 0, 0, 0,
	}
	if diff := cmp.Diff(wantInitial, l.Initial()); diff != "" {
		t.Errorf("Initial() mismatch (-want +got):\n%s", diff)
	}

	value, ok := l.Lookup("value")
	if !ok || l.Initial()[value.Offset-1] != 0x68 {
		t.Errorf("value field should follow the push opcode, got %+v", value)
	}
	if _, ok := l.Lookup("missing"); ok {
		t.Errorf("Lookup(missing) = true")
	}
}

func TestCompileTemplateCaches(t *testing.T) {
	a, err := CompileTemplate("call target; ret")
	if err != nil {
		t.Fatal(err)
	}
	b, err := CompileTemplate("call target; ret")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("CompileTemplate() returned distinct layouts for the same source")
	}
	c := MustCompile("call target; retn")
	if c == a {
		t.Errorf("distinct sources share a layout")
	}
}

func TestLayoutAccessorsCopy(t *testing.T) {
	l := MustCompile("push v")
	init := l.Initial()
	init[0] = 0xCC
	if l.Initial()[0] != 0x68 {
		t.Errorf("Initial() exposes internal storage")
	}
	ph := l.Placeholders()
	ph[0].Name = "changed"
	if _, ok := l.Lookup("v"); !ok || l.Placeholders()[0].Name != "v" {
		t.Errorf("Placeholders() exposes internal storage")
	}
}

func TestCompileComponents(t *testing.T) {
	l, err := Compile([]Component{
		ImmediateField{Name: "a"},
		Literal{0x90},
		RelativeField{Name: "b"},
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	want := []PlaceholderDescriptor{
		{Name: "a", Offset: 0},
		{Name: "b", Offset: 5, Relative: true},
	}
	if diff := cmp.Diff(want, l.Placeholders()); diff != "" {
		t.Errorf("Placeholders() mismatch (-want +got):\n%s", diff)
	}

	_, err = Compile([]Component{ImmediateField{Name: "a"}, RelativeField{Prefix: []byte{0xE8}, Name: "a"}})
	if !errors.Is(err, ErrDuplicatePlaceholder) {
		t.Errorf("Compile() duplicate error = %v, want ErrDuplicatePlaceholder", err)
	}
}

func TestMustCompilePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("MustCompile() of a bad template did not panic")
		}
	}()
	MustCompile("frobnicate x")
}

func TestEveryMnemonicCompiles(t *testing.T) {
	for name, m := range mnemonics {
		src := name
		if m.field != fieldNone {
			src += " target"
		}
		l, err := CompileTemplate(src)
		if err != nil {
			t.Errorf("CompileTemplate(%q) error = %v", src, err)
			continue
		}
		wantLen := len(m.prefix)
		if m.field != fieldNone {
			wantLen += 4
		}
		if l.Len() != wantLen {
			t.Errorf("%s: Len() = %d, want %d", name, l.Len(), wantLen)
		}
	}
}
