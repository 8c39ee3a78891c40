package branch

import (
	"encoding/binary"
	"fmt"

	"hotpatch/common"
)

// Kind classifies a decoded branch by operand form.
type Kind int

const (
	KindNear  Kind = iota // rel32 relative to the next instruction
	KindFar               // absolute ptr16:32
	KindShort             // rel8 relative to the next instruction
)

func (k Kind) String() string {
	switch k {
	case KindNear:
		return "near"
	case KindFar:
		return "far"
	case KindShort:
		return "short"
	default:
		return "invalid"
	}
}

// Instruction describes a decoded branch.
type Instruction struct {
	// Addr is the address of the first opcode byte
	Addr common.Address
	// Opcode is the one or two opcode bytes
	Opcode []byte
	// Size is the full instruction length in bytes
	Size uint32
	Kind Kind
	// Conditional is set for Jcc and jecxz
	Conditional bool
	// Link is set for calls
	Link   bool
	Target common.Address
	// Segment is the selector of a far branch
	Segment uint16
}

// Next returns the address following the instruction.
func (in Instruction) Next() common.Address {
	return in.Addr.Offset(in.Size)
}

func (in Instruction) String() string {
	var name string
	switch {
	case in.Link:
		name = "call"
	case len(in.Opcode) == 2:
		name = Condition(in.Opcode[1] & 0x0F).String()
	case in.Opcode[0] == OpJecxz:
		name = "jecxz"
	case in.Conditional:
		name = Condition(in.Opcode[0] & 0x0F).String()
	default:
		name = "jmp"
	}
	if in.Kind == KindFar {
		return fmt.Sprintf("%s: %s far %04X:%s", in.Addr, name, in.Segment, in.Target)
	}
	return fmt.Sprintf("%s: %s %s %s", in.Addr, name, in.Kind, in.Target)
}

// Target returns the destination of the branch starting at addr.
// addr must be the start of a genuine branch instruction; bytes that merely
// look like one decode without complaint.
func Target(mem common.MemoryReader, addr common.Address) (common.Address, error) {
	in, err := Decode(mem, addr)
	if err != nil {
		return 0, err
	}
	return in.Target, nil
}

// Decode reads and decodes the branch starting at addr. Only the bytes the
// opcode needs are read.
func Decode(mem common.MemoryReader, addr common.Address) (Instruction, error) {
	var op [1]byte
	if err := read(mem, addr, op[:]); err != nil {
		return Instruction{}, err
	}

	in := Instruction{Addr: addr, Opcode: []byte{op[0]}}
	switch {
	case op[0] == OpCallRel32 || op[0] == OpJmpRel32:
		var rel [4]byte
		if err := read(mem, addr.Offset(1), rel[:]); err != nil {
			return Instruction{}, err
		}
		in.Size = NearSize
		in.Kind = KindNear
		in.Link = op[0] == OpCallRel32
		in.Target = in.Next().Add(int32(binary.LittleEndian.Uint32(rel[:])))

	case op[0] == OpCallFar || op[0] == OpJmpFar:
		var ptr [6]byte
		if err := read(mem, addr.Offset(1), ptr[:]); err != nil {
			return Instruction{}, err
		}
		in.Size = FarSize
		in.Kind = KindFar
		in.Link = op[0] == OpCallFar
		in.Target = common.Address(binary.LittleEndian.Uint32(ptr[:4]))
		in.Segment = binary.LittleEndian.Uint16(ptr[4:])

	case op[0] == OpJmpRel8 || op[0] == OpJecxz || op[0]&0xF0 == opJccRel8:
		var rel [1]byte
		if err := read(mem, addr.Offset(1), rel[:]); err != nil {
			return Instruction{}, err
		}
		in.Size = ShortSize
		in.Kind = KindShort
		in.Conditional = op[0] != OpJmpRel8
		in.Target = in.Next().Add(int32(int8(rel[0])))

	case op[0] == OpTwoByte:
		var rest [5]byte
		if err := read(mem, addr.Offset(1), rest[:1]); err != nil {
			return Instruction{}, err
		}
		if rest[0]&0xF0 != opJccRel32 {
			return Instruction{}, &DecodeError{Addr: addr, Opcode: []byte{op[0], rest[0]}}
		}
		if err := read(mem, addr.Offset(2), rest[1:]); err != nil {
			return Instruction{}, err
		}
		in.Opcode = []byte{op[0], rest[0]}
		in.Size = JccSize
		in.Kind = KindNear
		in.Conditional = true
		in.Target = in.Next().Add(int32(binary.LittleEndian.Uint32(rest[1:])))

	default:
		return Instruction{}, &DecodeError{Addr: addr, Opcode: []byte{op[0]}}
	}
	return in, nil
}

func read(mem common.MemoryReader, addr common.Address, b []byte) error {
	if err := common.ReadFull(mem, addr, b); err != nil {
		return fmt.Errorf("reading instruction bytes at %s: %w", addr, err)
	}
	return nil
}
