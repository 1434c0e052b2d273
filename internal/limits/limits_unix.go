//go:build linux || darwin

package limits

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func setAddressSpace(limit uint64) error {
	var cur unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &cur); err != nil {
		return fmt.Errorf("%w: getrlimit: %v", ErrSetup, err)
	}
	// The hard limit can only be lowered by unprivileged processes.
	if cur.Max != unix.RLIM_INFINITY && limit > cur.Max {
		limit = cur.Max
	}
	rl := unix.Rlimit{Cur: limit, Max: limit}
	if err := unix.Setrlimit(unix.RLIMIT_AS, &rl); err != nil {
		return fmt.Errorf("%w: setrlimit(RLIMIT_AS, %d): %v", ErrSetup, limit, err)
	}
	return nil
}

// AddressSpace returns the current soft address-space limit.
func AddressSpace() (uint64, error) {
	var cur unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &cur); err != nil {
		return 0, err
	}
	return cur.Cur, nil
}
