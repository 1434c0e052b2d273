package model

import "fmt"

// PlannerResultStatus is the outcome taxonomy of a benchmark job.
type PlannerResultStatus string

const (
	StatusSolved      PlannerResultStatus = "SOLVED"
	StatusUnsolvable  PlannerResultStatus = "UNSOLVABLE"
	StatusTimeout     PlannerResultStatus = "TIMEOUT"
	StatusMemout      PlannerResultStatus = "MEMOUT"
	StatusError       PlannerResultStatus = "ERROR"
	StatusUnsupported PlannerResultStatus = "UNSUPPORTED"
	StatusNotRun      PlannerResultStatus = "NOT_RUN"
)

// AllStatuses returns every status in reporting order.
func AllStatuses() []PlannerResultStatus {
	return []PlannerResultStatus{
		StatusSolved,
		StatusUnsolvable,
		StatusTimeout,
		StatusMemout,
		StatusError,
		StatusUnsupported,
		StatusNotRun,
	}
}

// HasPlan returns true if results with this status may carry plan and quality fields.
func (s PlannerResultStatus) HasPlan() bool {
	return s == StatusSolved
}

// ParseStatus parses a stored status name.
func ParseStatus(s string) (PlannerResultStatus, error) {
	for _, st := range AllStatuses() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown planner result status: %q", s)
}
