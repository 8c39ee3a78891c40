// Package branch encodes and decodes the x86 branch forms used for hot
// patching: near call/jmp, far call/jmp, short jumps, near Jcc and push imm32.
package branch

const (
	OpCallRel32 byte = 0xE8
	OpJmpRel32  byte = 0xE9
	OpCallFar   byte = 0x9A
	OpJmpFar    byte = 0xEA
	OpJmpRel8   byte = 0xEB
	OpJecxz     byte = 0xE3
	OpPushImm32 byte = 0x68
	OpPushad    byte = 0x60
	OpPopad     byte = 0x61
	OpRet       byte = 0xC3
	OpTwoByte   byte = 0x0F
	Nop         byte = 0x90

	// short Jcc is 0x70|cc, near Jcc is 0x0F 0x80|cc
	opJccRel8  byte = 0x70
	opJccRel32 byte = 0x80
)

const (
	NearSize  = 5 // E8/E9 rel32, 68 imm32
	JccSize   = 6 // 0F 8x rel32
	ShortSize = 2 // EB/E3/7x rel8
	FarSize   = 7 // 9A/EA ptr16:32
)

// Condition is the 4-bit x86 condition code.
type Condition uint8

const (
	CondO Condition = iota
	CondNO
	CondB
	CondAE
	CondE
	CondNE
	CondBE
	CondA
	CondS
	CondNS
	CondP
	CondNP
	CondL
	CondGE
	CondLE
	CondG
)

// conditionNames lists the mnemonics of each condition; the first is canonical.
var conditionNames = [16][]string{
	CondO:  {"jo"},
	CondNO: {"jno"},
	CondB:  {"jb", "jc", "jnae"},
	CondAE: {"jae", "jnb", "jnc"},
	CondE:  {"jz", "je"},
	CondNE: {"jne", "jnz"},
	CondBE: {"jbe", "jna"},
	CondA:  {"ja", "jnbe"},
	CondS:  {"js"},
	CondNS: {"jns"},
	CondP:  {"jp", "jpe"},
	CondNP: {"jnp", "jpo"},
	CondL:  {"jl", "jnge"},
	CondGE: {"jge", "jnl"},
	CondLE: {"jle", "jng"},
	CondG:  {"jg", "jnle"},
}

var conditionByName = func() map[string]Condition {
	m := make(map[string]Condition)
	for c, names := range conditionNames {
		for _, n := range names {
			m[n] = Condition(c)
		}
	}
	return m
}()

// LookupCondition resolves a Jcc mnemonic (any alias, lower case).
func LookupCondition(mnemonic string) (Condition, bool) {
	c, ok := conditionByName[mnemonic]
	return c, ok
}

// Conditions returns every condition code in encoding order.
func Conditions() []Condition {
	cs := make([]Condition, len(conditionNames))
	for i := range cs {
		cs[i] = Condition(i)
	}
	return cs
}

// Mnemonics returns all accepted spellings of c.
func (c Condition) Mnemonics() []string {
	if c > CondG {
		return nil
	}
	return append([]string(nil), conditionNames[c]...)
}

// NearOpcode returns the two-byte near Jcc opcode.
func (c Condition) NearOpcode() [2]byte {
	return [2]byte{OpTwoByte, opJccRel32 | byte(c&0x0F)}
}

func (c Condition) String() string {
	if c > CondG {
		return "j?"
	}
	return conditionNames[c][0]
}
