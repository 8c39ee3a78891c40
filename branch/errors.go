package branch

import (
	"fmt"
	"strings"

	"hotpatch/common"
)

// DecodeError reports bytes at Addr that do not start a supported branch.
// Opcode holds one byte for an unknown primary opcode and two bytes for an
// unknown 0x0F-prefixed opcode.
type DecodeError struct {
	Addr   common.Address
	Opcode []byte
}

func (e *DecodeError) Error() string {
	hex := make([]string, len(e.Opcode))
	for i, b := range e.Opcode {
		hex[i] = fmt.Sprintf("%02X", b)
	}
	return fmt.Sprintf("unexpected opcode %s at %s", strings.Join(hex, " "), e.Addr)
}

// DoubleByte reports whether the rejected opcode was 0x0F-prefixed.
func (e *DecodeError) DoubleByte() bool {
	return len(e.Opcode) == 2
}
