package memory

import (
	"errors"
	"strings"

	"hotpatch/common"
)

var errNoName = errors.New("empty module name")

// collectModules resolves enumerated module handles. A module whose name
// cannot be read is skipped; an info failure aborts the enumeration.
func collectModules[H any](
	handles []H,
	info func(H) (common.Address, uint32, error),
	name func(H) (string, error),
	log common.Logger,
) ([]Module, error) {
	mods := make([]Module, 0, len(handles))
	for _, h := range handles {
		base, size, err := info(h)
		if err != nil {
			return nil, err
		}
		n, err := name(h)
		if err == nil && n == "" {
			err = errNoName
		}
		if err != nil {
			log.Logf(common.SeverityDebug, "skipping module at %s: %v", base, err)
			continue
		}
		mods = append(mods, Module{Name: strings.ToLower(n), Base: base, Size: size})
	}
	return mods, nil
}
