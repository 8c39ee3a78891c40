package common

import "strings"

// Protection is a page-protection bit set. The values mirror the x86 Windows
// PAGE_* constants so the Windows backend passes them through unchanged.
type Protection uint32

const (
	ProtNoAccess         Protection = 0x01
	ProtReadOnly         Protection = 0x02
	ProtReadWrite        Protection = 0x04
	ProtWriteCopy        Protection = 0x08
	ProtExecute          Protection = 0x10
	ProtExecuteRead      Protection = 0x20
	ProtExecuteReadWrite Protection = 0x40
	ProtExecuteWriteCopy Protection = 0x80
	ProtGuard            Protection = 0x100 // modifier

	// Readable matches every protection that permits reads.
	Readable = ProtReadOnly | ProtReadWrite | ProtWriteCopy |
		ProtExecuteRead | ProtExecuteReadWrite | ProtExecuteWriteCopy
	// Writable matches plain data pages that permit writes.
	Writable = ProtReadWrite | ProtWriteCopy
	// Executable matches code pages that permit reads.
	Executable = ProtExecuteRead | ProtExecuteReadWrite
)

var protectionNames = []struct {
	p    Protection
	name string
}{
	{ProtNoAccess, "NOACCESS"},
	{ProtReadOnly, "R"},
	{ProtReadWrite, "RW"},
	{ProtWriteCopy, "WC"},
	{ProtExecute, "X"},
	{ProtExecuteRead, "RX"},
	{ProtExecuteReadWrite, "RWX"},
	{ProtExecuteWriteCopy, "XWC"},
	{ProtGuard, "GUARD"},
}

// Matches reports whether a region protected with p passes the filter f.
// Any bit of p outside f (including modifiers such as ProtGuard) excludes it.
func (p Protection) Matches(f Protection) bool {
	return p != 0 && p&^f == 0
}

// CanRead reports whether p permits reads.
func (p Protection) CanRead() bool {
	return p&Readable != 0 && p&(ProtGuard|ProtNoAccess) == 0
}

// CanWrite reports whether p permits writes.
func (p Protection) CanWrite() bool {
	return p&(ProtReadWrite|ProtWriteCopy|ProtExecuteReadWrite|ProtExecuteWriteCopy) != 0
}

// CanExecute reports whether p permits execution.
func (p Protection) CanExecute() bool {
	return p&(ProtExecute|ProtExecuteRead|ProtExecuteReadWrite|ProtExecuteWriteCopy) != 0
}

func (p Protection) String() string {
	if p == 0 {
		return "NONE"
	}
	var parts []string
	rest := p
	for _, n := range protectionNames {
		if p&n.p != 0 {
			parts = append(parts, n.name)
			rest &^= n.p
		}
	}
	if rest != 0 {
		parts = append(parts, "?")
	}
	return strings.Join(parts, "|")
}

// ParseProtection accepts the short names used in signature files.
func ParseProtection(s string) (Protection, bool) {
	switch strings.ToLower(s) {
	case "", "read", "readable":
		return Readable, true
	case "write", "writable":
		return Writable, true
	case "exec", "executable":
		return Executable, true
	}
	return 0, false
}
