package model

import (
	"fmt"
	"strconv"
)

// PlannerResult is the outcome of one (planner, problem, mode) job.
// Results are immutable values once produced.
type PlannerResult struct {
	PlannerName     string              `json:"planner"`
	ProblemName     string              `json:"problem"`
	Domain          string              `json:"domain"`
	RunningMode     RunningMode         `json:"mode"`
	Status          PlannerResultStatus `json:"status"`
	ComputationTime *float64            `json:"computation_time,omitempty"`
	PlanQuality     *float64            `json:"plan_quality,omitempty"`
	ErrorMessage    string              `json:"error,omitempty"`
	Plan            string              `json:"plan,omitempty"`
	Intermediate    bool                `json:"intermediate,omitempty"`
	FromDatabase    bool                `json:"from_database,omitempty"`
}

// Float returns a pointer to v, for the optional numeric fields.
func Float(v float64) *float64 {
	return &v
}

// SameOutcome reports whether two results are equal ignoring FromDatabase.
func (r PlannerResult) SameOutcome(o PlannerResult) bool {
	return r.PlannerName == o.PlannerName &&
		r.ProblemName == o.ProblemName &&
		r.Domain == o.Domain &&
		r.RunningMode == o.RunningMode &&
		r.Status == o.Status &&
		floatPtrEqual(r.ComputationTime, o.ComputationTime) &&
		floatPtrEqual(r.PlanQuality, o.PlanQuality) &&
		r.ErrorMessage == o.ErrorMessage &&
		r.Plan == o.Plan &&
		r.Intermediate == o.Intermediate
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r PlannerResult) String() string {
	s := fmt.Sprintf("%s/%s/%s: %s", r.PlannerName, r.ProblemName, r.RunningMode, r.Status)
	if r.ComputationTime != nil {
		s += " t=" + strconv.FormatFloat(*r.ComputationTime, 'f', 3, 64)
	}
	if r.PlanQuality != nil {
		s += " q=" + strconv.FormatFloat(*r.PlanQuality, 'g', -1, 64)
	}
	return s
}

// Fingerprint is the unique cache key of a job.
type Fingerprint struct {
	PlannerName      string
	ProblemName      string
	RunningMode      RunningMode
	Jobs             int
	MemoryLimitBytes int64
	TimeoutSeconds   float64
}

// NewFingerprint builds the cache key for a job.
func NewFingerprint(planner, problem string, mode RunningMode, solve SolveConfig) Fingerprint {
	return Fingerprint{
		PlannerName:      planner,
		ProblemName:      problem,
		RunningMode:      mode,
		Jobs:             solve.Jobs,
		MemoryLimitBytes: solve.MemoryLimitBytes,
		TimeoutSeconds:   solve.TimeoutSeconds,
	}
}

// Key renders the fingerprint as a stable string. Components are quoted so
// names containing the separator cannot collide.
func (f Fingerprint) Key() string {
	return fmt.Sprintf("%q|%q|%s|%d|%d|%s",
		f.PlannerName, f.ProblemName, f.RunningMode, f.Jobs, f.MemoryLimitBytes,
		strconv.FormatFloat(f.TimeoutSeconds, 'g', -1, 64))
}
