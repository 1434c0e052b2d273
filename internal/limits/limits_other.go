//go:build !(linux || darwin)

package limits

import "fmt"

func setAddressSpace(limit uint64) error {
	return fmt.Errorf("%w: address-space limits are not supported on this platform", ErrSetup)
}

// AddressSpace is not available on this platform.
func AddressSpace() (uint64, error) {
	return 0, fmt.Errorf("address-space limits are not supported on this platform")
}
