package orchestrator

import (
	"context"
	"fmt"

	"github.com/AaronLay10/plannerbench/internal/model"
	"github.com/AaronLay10/plannerbench/internal/resolver"
)

// Job is one cell of the benchmark matrix.
type Job struct {
	Planner model.PlannerConfig
	Problem *model.Problem
	Mode    model.RunningMode
	Solve   model.SolveConfig
}

func (j Job) String() string {
	return fmt.Sprintf("%s/%s/%s", j.Planner.Name, j.Problem.Name, j.Mode)
}

// JobRunner executes a job and returns its results. The last result is
// the terminal one; any earlier ones are intermediate.
type JobRunner interface {
	RunJob(ctx context.Context, job Job) ([]model.PlannerResult, error)
}

// LocalRunner resolves jobs inside the current process.
type LocalRunner struct {
	Resolver *resolver.Resolver
}

func (r *LocalRunner) RunJob(ctx context.Context, job Job) ([]model.PlannerResult, error) {
	var out []model.PlannerResult
	for res, err := range r.Resolver.Resolve(ctx, job.Planner, job.Problem, job.Mode, job.Solve) {
		if err != nil {
			return out, fmt.Errorf("job %s: %w", job, err)
		}
		out = append(out, res)
	}
	return out, nil
}

// terminal returns the terminal result of a job's results.
func terminal(results []model.PlannerResult) (model.PlannerResult, bool) {
	if len(results) == 0 {
		return model.PlannerResult{}, false
	}
	last := results[len(results)-1]
	if last.Intermediate {
		return model.PlannerResult{}, false
	}
	return last, true
}
