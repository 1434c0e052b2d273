// Package orchestrator fans the (mode, planner, problem) job matrix out to
// a JobRunner, sequentially or with bounded parallelism, and collects the
// terminal results into a Report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AaronLay10/plannerbench/internal/events"
	"github.com/AaronLay10/plannerbench/internal/limits"
	"github.com/AaronLay10/plannerbench/internal/model"
	"github.com/AaronLay10/plannerbench/internal/storage"
)

// Orchestrator runs a job matrix.
type Orchestrator struct {
	Runner JobRunner
	// Workers overrides the parallelism derived from SolveConfig.Jobs when
	// positive. A LocalRunner always runs one job at a time.
	Workers int
	// RunID identifies the run in events and the report. uuid.Nil draws a new one.
	RunID uuid.UUID
	// OnResult is called with each job's terminal result. Calls are serialized.
	OnResult func(model.PlannerResult)

	now func() time.Time
}

// New creates an orchestrator around a runner.
func New(runner JobRunner) *Orchestrator {
	return &Orchestrator{Runner: runner, now: time.Now}
}

// Workers returns the number of concurrent jobs for a jobs setting.
// Negative values count down from the number of CPUs plus one.
func Workers(jobs int) int {
	if jobs < 0 {
		jobs = runtime.NumCPU() + 1 + jobs
	}
	if jobs < 1 {
		return 1
	}
	return jobs
}

// Plan expands the matrix into jobs, in mode, domain, planner, problem order.
// MERGED is not executed: it adds both executable modes. merged reports
// whether it was requested.
func Plan(planners []model.PlannerConfig, problems []*model.Problem, modes []model.RunningMode, solve model.SolveConfig) (jobs []Job, merged bool) {
	want := make(map[model.RunningMode]bool)
	for _, m := range modes {
		if m == model.ModeMerged {
			merged = true
			for _, em := range model.ExecutableModes() {
				want[em] = true
			}
			continue
		}
		want[m] = true
	}

	ps := append([]model.PlannerConfig(nil), planners...)
	model.SortPlanners(ps)
	domains, groups := model.GroupByDomain(problems)

	for _, mode := range model.ExecutableModes() {
		if !want[mode] {
			continue
		}
		for _, domain := range domains {
			for _, planner := range ps {
				for _, problem := range groups[domain] {
					jobs = append(jobs, Job{Planner: planner, Problem: problem, Mode: mode, Solve: solve})
				}
			}
		}
	}
	return jobs, merged
}

// Run executes every job of the matrix. In sequential mode a runner error
// aborts the run. In parallel mode store and resource limit failures abort
// the run; any other failing job is logged and its result lost.
func (o *Orchestrator) Run(ctx context.Context, planners []model.PlannerConfig, problems []*model.Problem, modes []model.RunningMode, solve model.SolveConfig) (*Report, error) {
	if err := solve.Validate(); err != nil {
		return nil, err
	}
	now := o.now
	if now == nil {
		now = time.Now
	}

	jobs, merged := Plan(planners, problems, modes, solve)
	workers := o.Workers
	if workers <= 0 {
		workers = Workers(solve.Jobs)
	}
	// In-process jobs share one environment and one set of resource limits.
	if _, local := o.Runner.(*LocalRunner); local {
		workers = 1
	}

	runID := o.RunID
	if runID == uuid.Nil {
		runID = uuid.New()
	}
	report := &Report{RunID: runID, StartedAt: now().UTC()}
	o.emitEvent("run.started", map[string]interface{}{
		"run_id":  report.RunID.String(),
		"jobs":    len(jobs),
		"workers": workers,
	})

	var err error
	if workers == 1 {
		err = o.runSequential(ctx, jobs, report)
	} else {
		err = o.runParallel(ctx, jobs, workers, report)
	}
	report.FinishedAt = now().UTC()
	if merged {
		report.Merged = MergeResults(report.Results)
	}

	fields := map[string]interface{}{
		"run_id":   report.RunID.String(),
		"results":  len(report.Results),
		"duration": report.FinishedAt.Sub(report.StartedAt).String(),
	}
	for status, n := range report.Counts() {
		fields[string(status)] = n
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	o.emitEvent("run.completed", fields)

	return report, err
}

func (o *Orchestrator) runSequential(ctx context.Context, jobs []Job, report *Report) error {
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		results, err := o.Runner.RunJob(ctx, job)
		if err != nil {
			return err
		}
		res, ok := terminal(results)
		if !ok {
			return fmt.Errorf("job %s produced no terminal result", job)
		}
		report.Results = append(report.Results, res)
		o.done(res, i+1, len(jobs))
	}
	return nil
}

func (o *Orchestrator) runParallel(ctx context.Context, jobs []Job, workers int, report *Report) error {
	var (
		mu        sync.Mutex
		completed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			results, err := o.Runner.RunJob(gctx, job)
			res, ok := terminal(results)
			if err == nil && !ok {
				err = fmt.Errorf("job %s produced no terminal result", job)
			}
			if err != nil && isFatal(err) {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			completed++
			if err != nil {
				if gctx.Err() == nil {
					events.Emit("error", "job.lost", err.Error(), map[string]interface{}{
						"planner": job.Planner.Name,
						"problem": job.Problem.Name,
						"mode":    string(job.Mode),
					})
				}
				return nil
			}
			report.Results = append(report.Results, res)
			o.done(res, completed, len(jobs))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// isFatal reports whether err must abort the whole run rather than lose one job.
func isFatal(err error) bool {
	return errors.Is(err, storage.ErrStoreIO) || errors.Is(err, limits.ErrSetup)
}

// done reports a finished job. Callers serialize calls.
func (o *Orchestrator) done(res model.PlannerResult, completed, total int) {
	if o.OnResult != nil {
		o.OnResult(res)
	}
	o.emitEvent("job.progress", map[string]interface{}{
		"completed": completed,
		"total":     total,
		"planner":   res.PlannerName,
		"problem":   res.ProblemName,
		"mode":      string(res.RunningMode),
		"status":    string(res.Status),
	})
}

func (o *Orchestrator) emitEvent(name string, fields map[string]interface{}) {
	events.Emit("info", name, "", fields)
}
