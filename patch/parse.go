package patch

import (
	"strconv"
	"strings"
	"text/scanner"
)

// Parse turns template text into components.
//
// The text is a flat stream of byte literals (decimal, 0x hex or 0 octal) and
// mnemonics. Mnemonics that take a field are followed by the placeholder name.
// Commas, semicolons and newlines separate tokens; // and # start comments.
//
//	0x29 0xD8; 0x38 0xF4 0x04
//	jz equal
//	jmp other
//	push value
func Parse(src string) ([]Component, error) {
	var s scanner.Scanner
	s.Init(strings.NewReader(src))
	s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanComments | scanner.SkipComments
	s.Error = func(*scanner.Scanner, string) {}

	var (
		out     []Component
		literal Literal
		seen    = map[string]bool{}
	)
	flush := func() {
		if len(literal) > 0 {
			out = append(out, literal)
			literal = nil
		}
	}
	fail := func(tok string, pos scanner.Position, err error) ([]Component, error) {
		return nil, &DefinitionError{Token: tok, Line: pos.Line, Column: pos.Column, Err: err}
	}

	for tok := s.Scan(); tok != scanner.EOF; tok = s.Scan() {
		pos, text := s.Position, s.TokenText()
		switch tok {
		case ',', ';':
			continue

		case '#':
			for r := s.Peek(); r != '\n' && r != scanner.EOF; r = s.Peek() {
				s.Next()
			}

		case scanner.Int:
			v, err := strconv.ParseUint(text, 0, 64)
			if err != nil || v > 0xFF {
				return fail(text, pos, ErrByteRange)
			}
			literal = append(literal, byte(v))

		case scanner.Ident:
			name := strings.ToLower(text)
			m, ok := lookupMnemonic(name)
			if !ok {
				return fail(text, pos, ErrUnknownMnemonic)
			}
			target := ""
			if m.field != fieldNone {
				if s.Scan() != scanner.Ident {
					return fail(text, pos, ErrMissingTarget)
				}
				target = s.TokenText()
				if _, reserved := lookupMnemonic(strings.ToLower(target)); reserved {
					return fail(target, s.Position, ErrReservedName)
				}
				if seen[target] {
					return fail(target, s.Position, ErrDuplicatePlaceholder)
				}
				seen[target] = true
			}
			if m.field == fieldNone {
				literal = append(literal, m.prefix...)
				continue
			}
			flush()
			out = append(out, m.expand(target)...)

		default:
			return fail(text, pos, ErrUnexpectedToken)
		}
	}
	flush()
	return out, nil
}
