package model

import (
	"fmt"
	"strings"
)

// RunningMode selects how a planner is invoked on a problem.
type RunningMode string

const (
	ModeOneshot RunningMode = "oneshot"
	ModeAnytime RunningMode = "anytime"
	// ModeMerged is a reporting-time combination of oneshot and anytime.
	// The resolver never produces it.
	ModeMerged RunningMode = "merged"
)

// ExecutableModes lists the modes a job can actually run in, in enumeration order.
func ExecutableModes() []RunningMode {
	return []RunningMode{ModeOneshot, ModeAnytime}
}

// Executable returns true if jobs can be run in this mode.
func (m RunningMode) Executable() bool {
	return m == ModeOneshot || m == ModeAnytime
}

// ParseRunningMode parses a mode name, case-insensitively.
func ParseRunningMode(s string) (RunningMode, error) {
	switch RunningMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeOneshot:
		return ModeOneshot, nil
	case ModeAnytime:
		return ModeAnytime, nil
	case ModeMerged:
		return ModeMerged, nil
	}
	return "", fmt.Errorf("unknown running mode: %q", s)
}
