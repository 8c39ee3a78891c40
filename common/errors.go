package common

import (
	"errors"
	"fmt"
)

// ErrUnmapped is returned when an address is not backed by any region.
var ErrUnmapped = errors.New("address not mapped")

// ShortReadError reports a read that stopped before the requested length.
type ShortReadError struct {
	Addr Address
	Want int
	Got  int
}

func (e *ShortReadError) Error() string {
	return fmt.Sprintf("short read at %s: got %d of %d bytes", e.Addr, e.Got, e.Want)
}
