// Package resolver runs a single benchmark job: it consults the result
// cache, applies the resource limits, drives the solving engine under a
// watchdog deadline, classifies the outcome and persists it.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/AaronLay10/plannerbench/internal/engine"
	"github.com/AaronLay10/plannerbench/internal/events"
	"github.com/AaronLay10/plannerbench/internal/limits"
	"github.com/AaronLay10/plannerbench/internal/model"
	"github.com/AaronLay10/plannerbench/internal/storage"
)

// Resolver executes jobs. A Resolver holds no per-job state and may be
// shared, but process-wide limits and environment make it unsafe to run
// several jobs of different planners concurrently in one process.
type Resolver struct {
	Store   storage.ResultStore
	Engines *engine.Registry
	Limiter limits.Limiter
	// LogDir is the root of per-job engine logs. Empty discards engine output.
	LogDir string
	Now    func() time.Time
}

// New creates a resolver with the process limiter and the wall clock.
func New(store storage.ResultStore, engines *engine.Registry, logDir string) *Resolver {
	return &Resolver{
		Store:   store,
		Engines: engines,
		Limiter: limits.Process{},
		LogDir:  logDir,
		Now:     time.Now,
	}
}

// job carries the inputs of one Resolve call.
type job struct {
	planner model.PlannerConfig
	problem *model.Problem
	mode    model.RunningMode
	solve   model.SolveConfig
}

func (j job) base() model.PlannerResult {
	return model.PlannerResult{
		PlannerName: j.planner.Name,
		ProblemName: j.problem.Name,
		Domain:      j.problem.Domain,
		RunningMode: j.mode,
	}
}

func (j job) fields() map[string]interface{} {
	return map[string]interface{}{
		"planner": j.planner.Name,
		"problem": j.problem.Name,
		"domain":  j.problem.Domain,
		"mode":    string(j.mode),
	}
}

// Resolve runs one job. The sequence yields intermediate results in ANYTIME
// mode and always ends with exactly one terminal result. A non-nil error
// ends the sequence and is fatal to the run.
func (r *Resolver) Resolve(ctx context.Context, planner model.PlannerConfig, problem *model.Problem, mode model.RunningMode, solve model.SolveConfig) iter.Seq2[model.PlannerResult, error] {
	return func(yield func(model.PlannerResult, error) bool) {
		j := job{planner: planner, problem: problem, mode: mode, solve: solve}
		if !mode.Executable() {
			yield(model.PlannerResult{}, fmt.Errorf("running mode %s is not executable", mode))
			return
		}
		if err := ctx.Err(); err != nil {
			yield(model.PlannerResult{}, err)
			return
		}

		events.Emit("info", "job.started", "", j.fields())

		// VERSION_LOOKUP
		version, ok := planner.VersionFor(problem.Domain)
		if !ok {
			yield(r.finish(j, unsupported(j, fmt.Sprintf("planner %s declares no version for domain %s", planner.Name, problem.Domain))), nil)
			return
		}
		v, ok := problem.Versions[version]
		if !ok {
			yield(r.finish(j, unsupported(j, fmt.Sprintf("problem %s has no version %q", problem.Name, version))), nil)
			return
		}
		engineName, ok := planner.EngineName(mode)
		if !ok {
			yield(r.finish(j, unsupported(j, fmt.Sprintf("planner %s has no %s engine", planner.Name, mode))), nil)
			return
		}

		// CACHE_LOOKUP
		if !solve.NoDBLoad {
			cached, err := r.Store.Load(ctx, planner.Name, problem.Name, mode, solve)
			if err != nil {
				yield(model.PlannerResult{}, err)
				return
			}
			if cached != nil {
				f := j.fields()
				f["status"] = string(cached.Status)
				events.Emit("info", "job.cached", "", f)
				yield(r.finish(j, *cached), nil)
				return
			}
			if solve.DBOnly {
				res := j.base()
				res.Status = model.StatusNotRun
				yield(r.finish(j, res), nil)
				return
			}
		}

		// EXECUTE
		if err := applyEnv(planner.Env); err != nil {
			yield(model.PlannerResult{}, err)
			return
		}
		if err := r.Limiter.LimitAddressSpace(solve.MemoryLimitBytes); err != nil {
			yield(model.PlannerResult{}, err)
			return
		}

		logFile, err := r.openLog(j)
		if err != nil {
			yield(model.PlannerResult{}, err)
			return
		}
		defer logFile.Close()

		obj, err := v.Get()
		if err != nil {
			err = fmt.Errorf("failed to build problem version %s: %w", version, err)
			fmt.Fprintln(logFile, err)
			r.persist(ctx, j, failed(j, 0, err), yield)
			return
		}

		eng, err := r.Engines.Build(engineName, planner.Engine)
		if err != nil {
			fmt.Fprintln(logFile, err)
			// Configuration problems are not cached.
			yield(r.finish(j, failed(j, 0, err)), nil)
			return
		}

		var (
			terminal model.PlannerResult
			fatal    error
			stopped  bool
		)
		if mode == model.ModeAnytime {
			terminal, fatal, stopped = r.runAnytime(ctx, j, eng, obj, logFile, yield)
		} else {
			terminal, fatal = r.runOneshot(ctx, j, eng, obj, logFile)
		}
		if stopped {
			return
		}
		if fatal != nil {
			yield(model.PlannerResult{}, fatal)
			return
		}

		// PERSIST
		r.persist(ctx, j, terminal, yield)
	}
}

// persist saves and yields the terminal result. It returns false if the
// sequence must stop.
func (r *Resolver) persist(ctx context.Context, j job, res model.PlannerResult, yield func(model.PlannerResult, error) bool) bool {
	if !j.solve.NoDBSave {
		if err := r.Store.Save(ctx, res, j.solve); err != nil {
			yield(model.PlannerResult{}, err)
			return false
		}
	}
	return yield(r.finish(j, res), nil)
}

// finish emits job.completed and returns res unchanged.
func (r *Resolver) finish(j job, res model.PlannerResult) model.PlannerResult {
	f := j.fields()
	f["status"] = string(res.Status)
	f["from_database"] = res.FromDatabase
	if res.ComputationTime != nil {
		f["computation_time"] = *res.ComputationTime
	}
	if res.PlanQuality != nil {
		f["plan_quality"] = *res.PlanQuality
	}
	if res.ErrorMessage != "" {
		f["error"] = res.ErrorMessage
	}
	events.Emit("info", "job.completed", "", f)
	return res
}

// outcome is what the engine goroutine hands back to the watchdog.
type outcome struct {
	res engine.Result
	err error
}

func (r *Resolver) runOneshot(ctx context.Context, j job, eng engine.Engine, obj any, log io.Writer) (model.PlannerResult, error) {
	wctx, cancel := context.WithTimeout(ctx, j.solve.Deadline())
	defer cancel()

	start := r.Now()
	done := make(chan outcome, 1)
	go func() {
		res, err := eng.OneshotSolve(wctx, obj, j.solve.Timeout(), log)
		done <- outcome{res: res, err: err}
	}()

	select {
	case <-wctx.Done():
		if err := ctx.Err(); err != nil {
			return model.PlannerResult{}, err
		}
		return timedOut(j), nil
	case o := <-done:
		elapsed := r.Now().Sub(start).Seconds()
		if o.err != nil {
			if err := ctx.Err(); err != nil {
				return model.PlannerResult{}, err
			}
			if errors.Is(o.err, context.DeadlineExceeded) {
				return timedOut(j), nil
			}
			return failed(j, elapsed, o.err), nil
		}
		return r.classify(j, o.res, elapsed), nil
	}
}

// runAnytime streams solutions until the deadline fires or the engine is
// exhausted. stopped reports that the consumer ended the sequence early.
func (r *Resolver) runAnytime(ctx context.Context, j job, eng engine.Engine, obj any, log io.Writer, yield func(model.PlannerResult, error) bool) (terminal model.PlannerResult, fatal error, stopped bool) {
	wctx, cancel := context.WithTimeout(ctx, j.solve.Deadline())
	defer cancel()

	start := r.Now()
	items := make(chan outcome)
	go func() {
		defer close(items)
		for res, err := range eng.AnytimeSolve(wctx, obj, j.solve.Timeout(), log) {
			select {
			case items <- outcome{res: res, err: err}:
			case <-wctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var (
		best     *model.PlannerResult
		last     *engine.Result
		engErr   error
		deadline bool
	)
loop:
	for {
		select {
		case <-wctx.Done():
			deadline = true
			break loop
		case o, ok := <-items:
			if !ok {
				break loop
			}
			elapsed := r.Now().Sub(start).Seconds()
			if o.err != nil {
				engErr = o.err
				break loop
			}
			res := o.res
			last = &res
			if !res.HasPlan() {
				continue
			}
			sol := r.classify(j, res, elapsed)
			if sol.Status != model.StatusSolved {
				// Arrived past the timeout, or the plan could not be scored.
				continue
			}
			sol.Intermediate = true
			best = &sol

			f := j.fields()
			f["computation_time"] = *sol.ComputationTime
			if sol.PlanQuality != nil {
				f["plan_quality"] = *sol.PlanQuality
			}
			events.Emit("info", "job.solution", "", f)
			if !yield(sol, nil) {
				return model.PlannerResult{}, nil, true
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return model.PlannerResult{}, err, false
	}

	switch {
	case best != nil:
		terminal = *best
		terminal.Intermediate = false
	case engErr != nil && !deadline && !errors.Is(engErr, context.DeadlineExceeded):
		terminal = failed(j, r.Now().Sub(start).Seconds(), engErr)
	case last != nil && !deadline:
		terminal = r.classify(j, *last, r.Now().Sub(start).Seconds())
	default:
		terminal = timedOut(j)
	}
	return terminal, nil, false
}

// classify turns an engine answer into a result, applying timeout dominance.
func (r *Resolver) classify(j job, res engine.Result, elapsed float64) model.PlannerResult {
	out := j.base()
	out.Status = Classify(res.Status)

	reported, hasReported := res.ReportedTime()
	spent := elapsed
	if hasReported && reported > spent {
		spent = reported
	}

	switch out.Status {
	case model.StatusTimeout:
		return timedOut(j)
	case model.StatusSolved, model.StatusUnsolvable:
		if spent > j.solve.TimeoutSeconds {
			return timedOut(j)
		}
	}

	t := elapsed
	if hasReported {
		t = reported
	}
	out.ComputationTime = model.Float(t)

	if out.Status == model.StatusSolved {
		q, err := j.problem.Quality(res.Plan)
		if err != nil {
			return failed(j, t, fmt.Errorf("failed to evaluate plan: %w", err))
		}
		out.Plan = res.Plan
		out.PlanQuality = model.Float(q)
	}
	if out.Status == model.StatusError {
		out.ErrorMessage = "engine reported internal error"
	}
	return out
}

// Classify maps an engine status onto the result taxonomy. Unknown
// statuses classify as ERROR.
func Classify(s engine.Status) model.PlannerResultStatus {
	switch s {
	case engine.StatusSolvedOptimal, engine.StatusSolvedSatisficing, engine.StatusIntermediate:
		return model.StatusSolved
	case engine.StatusUnsolvableProven, engine.StatusUnsolvableIncomplete:
		return model.StatusUnsolvable
	case engine.StatusTimeout:
		return model.StatusTimeout
	case engine.StatusMemout:
		return model.StatusMemout
	case engine.StatusInternalError:
		return model.StatusError
	case engine.StatusUnsupported:
		return model.StatusUnsupported
	default:
		return model.StatusError
	}
}

func timedOut(j job) model.PlannerResult {
	res := j.base()
	res.Status = model.StatusTimeout
	res.ComputationTime = model.Float(j.solve.TimeoutSeconds)
	return res
}

func failed(j job, elapsed float64, err error) model.PlannerResult {
	res := j.base()
	res.Status = model.StatusError
	res.ComputationTime = model.Float(elapsed)
	res.ErrorMessage = err.Error()
	return res
}

func unsupported(j job, reason string) model.PlannerResult {
	res := j.base()
	res.Status = model.StatusUnsupported
	res.ErrorMessage = reason
	return res
}

// LogPath returns the engine log file of a job.
func (r *Resolver) LogPath(planner string, problem *model.Problem, mode model.RunningMode) string {
	return filepath.Join(r.LogDir, planner, problem.Domain, problem.LogID()+"_"+string(mode)+".log")
}

// openLog truncates or creates the job's log file.
func (r *Resolver) openLog(j job) (io.WriteCloser, error) {
	if r.LogDir == "" {
		return nopCloser{io.Discard}, nil
	}
	path := r.LogPath(j.planner.Name, j.problem, j.mode)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// applyEnv sets the planner's environment variables on this process.
func applyEnv(env map[string]string) error {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := os.Setenv(k, env[k]); err != nil {
			return fmt.Errorf("%w: failed to set %s: %v", limits.ErrSetup, k, err)
		}
	}
	return nil
}
