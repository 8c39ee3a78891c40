package common

// MemoryReader reads bytes from a target address space.
//
// Implementations can provide:
// - the live memory of the current process
// - in-memory buffers for tests and offline images
//
// ReadMemory returns the number of bytes actually read. A read that runs off the
// end of a readable range returns the partial count and no error; a read that
// starts at an inaccessible address returns an error.
type MemoryReader interface {
	ReadMemory(addr Address, data []byte) (int, error)
}

// MemoryWriter writes bytes into a target address space.
type MemoryWriter interface {
	WriteMemory(addr Address, data []byte) (int, error)
}

// ReadFull reads exactly len(data) bytes or fails.
func ReadFull(r MemoryReader, addr Address, data []byte) error {
	n, err := r.ReadMemory(addr, data)
	if err != nil {
		return err
	}
	if n < len(data) {
		return &ShortReadError{Addr: addr, Want: len(data), Got: n}
	}
	return nil
}
