// Package engine defines the Solving Engine contract and the engines
// PlannerBench can drive.
package engine

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strconv"
	"time"
)

// Status is the native outcome reported by a Solving Engine.
type Status string

const (
	StatusSolvedOptimal        Status = "solved-optimal"
	StatusSolvedSatisficing    Status = "solved-satisficing"
	StatusIntermediate         Status = "intermediate"
	StatusUnsolvableProven     Status = "unsolvable-proven"
	StatusUnsolvableIncomplete Status = "unsolvable-incomplete"
	StatusTimeout              Status = "timeout"
	StatusMemout               Status = "memout"
	StatusInternalError        Status = "internal-error"
	StatusUnsupported          Status = "unsupported"
)

// AllStatuses lists every engine status.
func AllStatuses() []Status {
	return []Status{
		StatusSolvedOptimal,
		StatusSolvedSatisficing,
		StatusIntermediate,
		StatusUnsolvableProven,
		StatusUnsolvableIncomplete,
		StatusTimeout,
		StatusMemout,
		StatusInternalError,
		StatusUnsupported,
	}
}

// MetricInternalTime is the metrics key holding the engine's own timing, in seconds.
const MetricInternalTime = "engine_internal_time"

// Result is a single answer from an engine.
type Result struct {
	Status  Status            `json:"status"`
	Plan    string            `json:"plan,omitempty"`
	Metrics map[string]string `json:"metrics,omitempty"`
}

// HasPlan returns true if the result carries a plan.
func (r Result) HasPlan() bool {
	switch r.Status {
	case StatusSolvedOptimal, StatusSolvedSatisficing, StatusIntermediate:
		return true
	}
	return false
}

// ReportedTime returns the engine-reported computation time, if any.
func (r Result) ReportedTime() (float64, bool) {
	raw, ok := r.Metrics[MetricInternalTime]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// Engine is the Solving Engine contract. Engines are not required to
// honor ctx; callers enforce deadlines with a watchdog.
type Engine interface {
	OneshotSolve(ctx context.Context, problem any, timeout time.Duration, log io.Writer) (Result, error)
	AnytimeSolve(ctx context.Context, problem any, timeout time.Duration, log io.Writer) iter.Seq2[Result, error]
}

// Files is the problem object handed to file-based engines.
type Files struct {
	DomainFile  string `json:"domain_file"`
	ProblemFile string `json:"problem_file"`
}

func (f Files) String() string {
	return f.ProblemFile
}

// UnsupportedModeError is returned by engines that cannot run a mode.
type UnsupportedModeError struct {
	Mode string
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("engine does not support %s mode", e.Mode)
}
