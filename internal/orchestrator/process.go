package orchestrator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/AaronLay10/plannerbench/internal/limits"
	"github.com/AaronLay10/plannerbench/internal/model"
	"github.com/AaronLay10/plannerbench/internal/resolver"
	"github.com/AaronLay10/plannerbench/internal/storage"
)

// JobSpec is what a worker process reads from stdin. Workers share no
// memory with the orchestrator, so the planner and problem are named and
// looked up again in the worker's own copy of the configuration.
type JobSpec struct {
	ConfigPath string            `json:"config"`
	Planner    string            `json:"planner"`
	Problem    string            `json:"problem"`
	Mode       model.RunningMode `json:"mode"`
	Solve      model.SolveConfig `json:"solve"`
}

// Worker exit codes for the fatal error classes. Any other non-zero exit
// is treated as a crash of that one job.
const (
	ExitStoreIO = 10
	ExitSetup   = 11
)

// ExitCode returns the exit status a worker reports for err.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, storage.ErrStoreIO):
		return ExitStoreIO
	case errors.Is(err, limits.ErrSetup):
		return ExitSetup
	default:
		return 1
	}
}

// ProcessRunner runs every job in a fresh worker process, so that
// resource limits and environment changes die with the job.
type ProcessRunner struct {
	Executable string
	Args       []string
	ConfigPath string
	// Stderr receives the worker's stderr. nil means os.Stderr.
	Stderr io.Writer
	// GracePeriod is how long a worker may take to exit after an interrupt.
	GracePeriod time.Duration
}

// NewProcessRunner creates a runner that re-executes the current binary
// with the "job" subcommand.
func NewProcessRunner(configPath string) (*ProcessRunner, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}
	return &ProcessRunner{
		Executable:  exe,
		Args:        []string{"job"},
		ConfigPath:  configPath,
		GracePeriod: 5 * time.Second,
	}, nil
}

func (r *ProcessRunner) RunJob(ctx context.Context, job Job) ([]model.PlannerResult, error) {
	spec := JobSpec{
		ConfigPath: r.ConfigPath,
		Planner:    job.Planner.Name,
		Problem:    job.Problem.Name,
		Mode:       job.Mode,
		Solve:      job.Solve,
	}
	in, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job spec: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.Executable, r.Args...)
	cmd.Stdin = bytes.NewReader(in)
	cmd.Stderr = r.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	// Interrupt first so the worker can kill its engine; WaitDelay escalates.
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = r.GracePeriod

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create worker stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker for %s: %w", job, err)
	}

	results, decodeErr := DecodeResults(stdout)
	waitErr := cmd.Wait()
	if err := ctx.Err(); err != nil {
		return results, err
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			switch exitErr.ExitCode() {
			case ExitStoreIO:
				return results, fmt.Errorf("worker for %s: %w", job, storage.ErrStoreIO)
			case ExitSetup:
				return results, fmt.Errorf("worker for %s: %w", job, limits.ErrSetup)
			}
		}
		return results, fmt.Errorf("worker for %s failed: %w", job, waitErr)
	}
	if decodeErr != nil {
		return results, fmt.Errorf("worker for %s: %w", job, decodeErr)
	}
	if _, ok := terminal(results); !ok {
		return results, fmt.Errorf("worker for %s produced no terminal result", job)
	}
	return results, nil
}

// DecodeResults reads JSON-lines results until EOF.
func DecodeResults(r io.Reader) ([]model.PlannerResult, error) {
	var out []model.PlannerResult
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var res model.PlannerResult
		if err := json.Unmarshal(line, &res); err != nil {
			// Drain so the worker is not blocked on a full pipe.
			io.Copy(io.Discard, r)
			return out, fmt.Errorf("failed to decode result: %w", err)
		}
		out = append(out, res)
	}
	if err := scanner.Err(); err != nil {
		io.Copy(io.Discard, r)
		return out, fmt.Errorf("failed to read results: %w", err)
	}
	return out, nil
}

// ServeJob is the worker side: it resolves one job and writes each result
// as a JSON line to w.
func ServeJob(ctx context.Context, res *resolver.Resolver, job Job, w io.Writer) error {
	enc := json.NewEncoder(w)
	for r, err := range res.Resolve(ctx, job.Planner, job.Problem, job.Mode, job.Solve) {
		if err != nil {
			return err
		}
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	return nil
}

// ReadJobSpec decodes the job spec a worker receives on stdin.
func ReadJobSpec(r io.Reader) (JobSpec, error) {
	var spec JobSpec
	if err := json.NewDecoder(r).Decode(&spec); err != nil {
		return spec, fmt.Errorf("failed to decode job spec: %w", err)
	}
	if spec.Planner == "" || spec.Problem == "" {
		return spec, fmt.Errorf("job spec requires planner and problem")
	}
	if _, err := model.ParseRunningMode(string(spec.Mode)); err != nil {
		return spec, err
	}
	if !spec.Mode.Executable() {
		return spec, fmt.Errorf("running mode %s is not executable", spec.Mode)
	}
	return spec, nil
}
