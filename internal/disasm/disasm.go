// Package disasm renders 32-bit x86 listings of generated and patched code.
package disasm

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"hotpatch/common"
)

// Line is one decoded instruction. Undecodable bytes produce a one-byte line
// with Op == 0 and Text "(bad)".
type Line struct {
	Addr  common.Address
	Bytes []byte
	Op    x86asm.Op
	Text  string
	// Target is set for relative branches
	Target    common.Address
	HasTarget bool
}

// Listing disassembles code as if it were loaded at base.
func Listing(code []byte, base common.Address) []Line {
	var lines []Line
	for off := 0; off < len(code); {
		pc := base.Offset(uint32(off))
		inst, err := x86asm.Decode(code[off:], 32)
		// truncated input decodes as a bare prefix with Op == 0
		if err != nil || inst.Op == 0 {
			lines = append(lines, Line{Addr: pc, Bytes: code[off : off+1], Text: "(bad)"})
			off++
			continue
		}
		line := Line{
			Addr:  pc,
			Bytes: code[off : off+inst.Len],
			Op:    inst.Op,
			Text:  x86asm.IntelSyntax(inst, uint64(pc), nil),
		}
		if rel, ok := inst.Args[0].(x86asm.Rel); ok {
			line.Target = pc.Offset(uint32(inst.Len)).Add(int32(rel))
			line.HasTarget = true
		}
		lines = append(lines, line)
		off += inst.Len
	}
	return lines
}

// Format renders lines as "address  bytes  text", one instruction per row.
func Format(lines []Line) string {
	var sb strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&sb, "%s  %-21s %s\n", l.Addr, fmt.Sprintf("% X", l.Bytes), l.Text)
	}
	return sb.String()
}
