// Package limits installs per-process resource ceilings for benchmark jobs.
//
// Limits are process-wide and inherited by child processes, so they are
// meant to be installed inside a short-lived worker that runs one job.
package limits

import "errors"

// ErrSetup marks a failure to install a resource limit. It is fatal to the run.
var ErrSetup = errors.New("resource limit setup failed")

// Limiter installs resource ceilings on the current process.
type Limiter interface {
	LimitAddressSpace(bytes int64) error
}

// Process is the Limiter acting on the current OS process.
type Process struct{}

// LimitAddressSpace sets the address-space ceiling. Zero or negative means unlimited.
func (Process) LimitAddressSpace(bytes int64) error {
	if bytes <= 0 {
		return nil
	}
	return setAddressSpace(uint64(bytes))
}

// Noop ignores every limit. Used when jobs share the orchestrating process.
type Noop struct{}

func (Noop) LimitAddressSpace(int64) error { return nil }
