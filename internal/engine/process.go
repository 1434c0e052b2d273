package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// waitDelay bounds how long Wait blocks on pipes after the engine was killed.
	waitDelay = 2 * time.Second

	maxLineBytes = 16 << 20
)

// ProcessEngine runs a planner binary as a subprocess.
//
// The binary reports results on stdout as JSON lines:
//
//	{"status":"solved-satisficing","plan":"(move a b)\n","metrics":{"engine_internal_time":"3.2"}}
//
// Every other stdout line and all of stderr is copied to the log sink.
// Arguments may use the {name}, {problem}, {domain}, {timeout} and {mode} placeholders.
type ProcessEngine struct {
	Name    string
	Command string
	Args    []string
	Dir     string
}

// NewProcessEngine creates a subprocess engine.
func NewProcessEngine(name, command string, args []string, dir string) (*ProcessEngine, error) {
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("engine %s: command is required", name)
	}
	return &ProcessEngine{
		Name:    name,
		Command: command,
		Args:    append([]string{}, args...),
		Dir:     dir,
	}, nil
}

// OneshotSolve runs the engine once and returns its last reported result.
func (e *ProcessEngine) OneshotSolve(ctx context.Context, problem any, timeout time.Duration, log io.Writer) (Result, error) {
	var (
		last  Result
		found bool
	)
	for res, err := range e.run(ctx, "oneshot", problem, timeout, log) {
		if err != nil {
			if found {
				break
			}
			return Result{}, err
		}
		last, found = res, true
	}
	if !found {
		return Result{}, fmt.Errorf("engine %s produced no result", e.Name)
	}
	return last, nil
}

// AnytimeSolve runs the engine and yields every result as it is reported.
func (e *ProcessEngine) AnytimeSolve(ctx context.Context, problem any, timeout time.Duration, log io.Writer) iter.Seq2[Result, error] {
	return e.run(ctx, "anytime", problem, timeout, log)
}

func (e *ProcessEngine) run(ctx context.Context, mode string, problem any, timeout time.Duration, log io.Writer) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		if log == nil {
			log = io.Discard
		}
		sink := &syncWriter{w: log}

		cmd := exec.CommandContext(ctx, e.Command, e.expandArgs(mode, problem, timeout)...)
		cmd.Dir = e.Dir
		cmd.Env = os.Environ()
		cmd.Stderr = sink
		configureEngineProcess(cmd)
		cmd.Cancel = func() error { return killEngineProcess(cmd) }
		cmd.WaitDelay = waitDelay

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			yield(Result{}, fmt.Errorf("engine %s: stdout pipe: %w", e.Name, err))
			return
		}
		if err := cmd.Start(); err != nil {
			yield(Result{}, fmt.Errorf("start engine %s: %w", e.Name, err))
			return
		}

		stopped := false
		results := 0
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := scanner.Text()
			fmt.Fprintln(sink, line)
			res, ok := parseResultLine(line)
			if !ok {
				continue
			}
			results++
			if !yield(res, nil) {
				stopped = true
				break
			}
		}
		if stopped {
			_ = killEngineProcess(cmd)
			_, _ = io.Copy(io.Discard, stdout)
			_ = cmd.Wait()
			return
		}

		waitErr := cmd.Wait()
		if ctx.Err() != nil {
			yield(Result{}, ctx.Err())
			return
		}
		if waitErr != nil && results == 0 {
			yield(Result{}, fmt.Errorf("engine %s exited: %w", e.Name, waitErr))
			return
		}
		if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
			yield(Result{}, fmt.Errorf("engine %s: read output: %w", e.Name, err))
		}
	}
}

func (e *ProcessEngine) expandArgs(mode string, problem any, timeout time.Duration) []string {
	var domainFile, problemFile string
	switch p := problem.(type) {
	case Files:
		domainFile, problemFile = p.DomainFile, p.ProblemFile
	case *Files:
		domainFile, problemFile = p.DomainFile, p.ProblemFile
	case fmt.Stringer:
		problemFile = p.String()
	default:
		problemFile = fmt.Sprint(problem)
	}
	r := strings.NewReplacer(
		"{name}", e.Name,
		"{problem}", problemFile,
		"{domain}", domainFile,
		"{timeout}", strconv.FormatFloat(timeout.Seconds(), 'f', -1, 64),
		"{mode}", mode,
	)
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = r.Replace(a)
	}
	return args
}

func parseResultLine(line string) (Result, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return Result{}, false
	}
	var res Result
	if err := json.Unmarshal([]byte(line), &res); err != nil {
		return Result{}, false
	}
	if res.Status == "" {
		return Result{}, false
	}
	return res, true
}

// syncWriter serializes writes from the stdout scanner and the stderr copier.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
