package branch

import (
	"encoding/binary"

	"hotpatch/common"
)

// Rel32 returns the displacement stored by a relative branch of size bytes
// at from that lands on to.
func Rel32(from, to common.Address, size uint32) int32 {
	return to.Diff(from.Offset(size))
}

func near(op byte, from, to common.Address) [NearSize]byte {
	var b [NearSize]byte
	b[0] = op
	binary.LittleEndian.PutUint32(b[1:], uint32(Rel32(from, to, NearSize)))
	return b
}

// Call encodes `call rel32` at from targeting to.
func Call(from, to common.Address) [NearSize]byte {
	return near(OpCallRel32, from, to)
}

// Jmp encodes `jmp rel32` at from targeting to.
func Jmp(from, to common.Address) [NearSize]byte {
	return near(OpJmpRel32, from, to)
}

// Jcc encodes the near form of a conditional jump.
func Jcc(c Condition, from, to common.Address) [JccSize]byte {
	var b [JccSize]byte
	op := c.NearOpcode()
	copy(b[:2], op[:])
	binary.LittleEndian.PutUint32(b[2:], uint32(Rel32(from, to, JccSize)))
	return b
}

// Jz encodes `jz rel32` (0F 84).
func Jz(from, to common.Address) [JccSize]byte { return Jcc(CondE, from, to) }

// Jnz encodes `jnz rel32` (0F 85).
func Jnz(from, to common.Address) [JccSize]byte { return Jcc(CondNE, from, to) }

// Jl encodes `jl rel32` (0F 8C).
func Jl(from, to common.Address) [JccSize]byte { return Jcc(CondL, from, to) }

// Jge encodes `jge rel32` (0F 8D).
func Jge(from, to common.Address) [JccSize]byte { return Jcc(CondGE, from, to) }

// Jg encodes `jg rel32` (0F 8F).
func Jg(from, to common.Address) [JccSize]byte { return Jcc(CondG, from, to) }

// Jle encodes `jle rel32` (0F 8E).
func Jle(from, to common.Address) [JccSize]byte { return Jcc(CondLE, from, to) }

// Push encodes `push imm32`.
func Push(imm uint32) [NearSize]byte {
	var b [NearSize]byte
	b[0] = OpPushImm32
	binary.LittleEndian.PutUint32(b[1:], imm)
	return b
}

// Pad returns code followed by NOPs up to n bytes. code longer than n is returned unchanged.
func Pad(code []byte, n int) []byte {
	out := append([]byte(nil), code...)
	for len(out) < n {
		out = append(out, Nop)
	}
	return out
}
