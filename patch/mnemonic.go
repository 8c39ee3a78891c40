package patch

import "hotpatch/branch"

type fieldKind int

const (
	fieldNone fieldKind = iota // expands to prefix only
	fieldRelative
	fieldImmediate
)

type mnemonic struct {
	prefix []byte
	field  fieldKind
}

// expand returns the components a mnemonic produces for target.
func (m mnemonic) expand(target string) []Component {
	prefix := append([]byte(nil), m.prefix...)
	switch m.field {
	case fieldRelative:
		return []Component{RelativeField{Prefix: prefix, Name: target}}
	case fieldImmediate:
		if len(m.prefix) == 0 {
			return []Component{ImmediateField{Name: target}}
		}
		return []Component{Literal(prefix), ImmediateField{Name: target}}
	}
	return []Component{Literal(prefix)}
}

var mnemonics = func() map[string]mnemonic {
	m := map[string]mnemonic{
		"imm32":  {field: fieldImmediate},
		"rel32":  {field: fieldRelative},
		"push":   {prefix: []byte{branch.OpPushImm32}, field: fieldImmediate},
		"call":   {prefix: []byte{branch.OpCallRel32}, field: fieldRelative},
		"jmp":    {prefix: []byte{branch.OpJmpRel32}, field: fieldRelative},
		"pushad": {prefix: []byte{branch.OpPushad}},
		"popad":  {prefix: []byte{branch.OpPopad}},
		"ret":    {prefix: []byte{branch.OpRet}},
		"retn":   {prefix: []byte{branch.OpRet}},
	}
	for _, c := range branch.Conditions() {
		op := c.NearOpcode()
		for _, name := range c.Mnemonics() {
			m[name] = mnemonic{prefix: op[:], field: fieldRelative}
		}
	}
	return m
}()

func lookupMnemonic(name string) (mnemonic, bool) {
	m, ok := mnemonics[name]
	return m, ok
}
