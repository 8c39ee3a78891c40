package patch

import (
	"errors"
	"fmt"
)

// Definition errors, wrapped in *DefinitionError.
var (
	ErrUnknownMnemonic      = errors.New("unknown mnemonic")
	ErrDuplicatePlaceholder = errors.New("duplicate placeholder")
	ErrByteRange            = errors.New("byte literal out of range")
	ErrMissingTarget        = errors.New("mnemonic needs a target name")
	ErrReservedName         = errors.New("mnemonic used as target name")
	ErrUnexpectedToken      = errors.New("unexpected token")
)

// Bind errors.
var (
	ErrValueCount         = errors.New("wrong number of placeholder values")
	ErrMissingValue       = errors.New("no value for placeholder")
	ErrUnknownPlaceholder = errors.New("unknown placeholder")
	ErrClosed             = errors.New("patch is closed")
)

// DefinitionError reports a malformed template. Line and Column are zero for
// templates built from components rather than parsed from text.
type DefinitionError struct {
	Token  string
	Line   int
	Column int
	Err    error
}

func (e *DefinitionError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d:%d: %v %q", e.Line, e.Column, e.Err, e.Token)
	}
	return fmt.Sprintf("%v %q", e.Err, e.Token)
}

func (e *DefinitionError) Unwrap() error { return e.Err }
