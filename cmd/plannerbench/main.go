package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/AaronLay10/plannerbench/internal/api"
	"github.com/AaronLay10/plannerbench/internal/config"
	"github.com/AaronLay10/plannerbench/internal/engine"
	"github.com/AaronLay10/plannerbench/internal/events"
	"github.com/AaronLay10/plannerbench/internal/model"
	"github.com/AaronLay10/plannerbench/internal/mqtt"
	"github.com/AaronLay10/plannerbench/internal/orchestrator"
	"github.com/AaronLay10/plannerbench/internal/resolver"
	"github.com/AaronLay10/plannerbench/internal/version"
)

const usage = `usage: plannerbench <command> [flags]

commands:
  run      run the benchmark described by a bench.yaml
  version  print the version
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "run":
		err = runCmd(ctx, os.Args[2:])
	case "job":
		if err := jobCmd(ctx); err != nil {
			log.Printf("job failed: %v", err)
			stop()
			os.Exit(orchestrator.ExitCode(err))
		}
	case "version":
		fmt.Println(version.Version)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		stop()
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

type runFlags struct {
	config   string
	jobs     int
	timeout  float64
	dbOnly   bool
	noDBLoad bool
	noDBSave bool
	inProc   bool
}

func parseRunFlags(args []string) (runFlags, error) {
	var f runFlags
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.StringVar(&f.config, "config", "bench.yaml", "path to bench.yaml")
	fs.IntVar(&f.jobs, "jobs", 0, "concurrent jobs; negative counts down from CPUs+1 (default from config)")
	fs.Float64Var(&f.timeout, "timeout", 0, "timeout in seconds (default from config)")
	fs.BoolVar(&f.dbOnly, "db-only", false, "only report cached results")
	fs.BoolVar(&f.noDBLoad, "no-db-load", false, "ignore cached results")
	fs.BoolVar(&f.noDBSave, "no-db-save", false, "do not cache results")
	fs.BoolVar(&f.inProc, "in-process", false, "run jobs in this process instead of worker processes")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if fs.NArg() > 0 {
		return f, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return f, nil
}

// apply overlays the command-line flags onto the configured solve budget.
func (f runFlags) apply(solve model.SolveConfig) model.SolveConfig {
	if f.jobs != 0 {
		solve.Jobs = f.jobs
	}
	if f.timeout > 0 {
		solve.TimeoutSeconds = f.timeout
	}
	solve.DBOnly = solve.DBOnly || f.dbOnly
	solve.NoDBLoad = solve.NoDBLoad || f.noDBLoad
	solve.NoDBSave = solve.NoDBSave || f.noDBSave
	return solve
}

func runCmd(ctx context.Context, args []string) error {
	f, err := parseRunFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.LoadBenchConfig(f.config)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", f.config, err)
	}
	solve := f.apply(cfg.SolveConfig())

	hostname, _ := os.Hostname()
	api.Init()
	if cfg.StatusPort > 0 {
		api.Start(ctx, cfg.StatusPort)
	}

	if cfg.MQTT.URL != "" {
		pub := mqtt.NewPublisher(mqtt.BrokerURL(cfg.MQTT.URL), fmt.Sprintf("plannerbench-%s-%d", hostname, os.Getpid()), cfg.MQTT.Topic)
		if pub.Start() {
			events.SetSink(pub)
			api.SetMQTTConnected(true)
			defer func() {
				events.SetSink(nil)
				pub.Disconnect()
			}()
		}
	}

	emit("info", "system.startup", "plannerbench starting", map[string]interface{}{
		"version":      version.Version,
		"hostname":     hostname,
		"pid":          os.Getpid(),
		"config":       cfg.Path(),
		"driver":       cfg.Database.Driver,
		"memory_limit": cfg.MemoryLimitString(),
	})
	defer emit("info", "system.shutdown", "plannerbench stopping", nil)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	api.SetStoreReady(true)
	emit("info", "store.ready", "", map[string]interface{}{"driver": cfg.Database.Driver})

	planners, err := cfg.SelectedPlanners()
	if err != nil {
		return err
	}
	problems, err := cfg.SelectedProblems()
	if err != nil {
		return err
	}
	modes, err := cfg.Modes()
	if err != nil {
		return err
	}

	var runner orchestrator.JobRunner
	if f.inProc {
		if orchestrator.Workers(solve.Jobs) > 1 {
			log.Printf("in-process jobs share one environment, running them one at a time")
		}
		runner = &orchestrator.LocalRunner{Resolver: resolver.New(store, engine.DefaultRegistry(), cfg.LogsDir)}
	} else {
		runner, err = orchestrator.NewProcessRunner(cfg.Path())
		if err != nil {
			return err
		}
	}

	jobs, _ := orchestrator.Plan(planners, problems, modes, solve)

	o := orchestrator.New(runner)
	o.RunID = uuid.New()
	o.OnResult = api.RecordResult
	api.SetRun(o.RunID.String(), len(jobs))

	report, err := o.Run(ctx, planners, problems, modes, solve)
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(report.Summary()); encErr != nil {
			log.Printf("failed to write summary: %v", encErr)
		}
	}
	return err
}

// jobCmd is the worker side of ProcessRunner: one job in, JSON-lines results out.
func jobCmd(ctx context.Context) error {
	spec, err := orchestrator.ReadJobSpec(os.Stdin)
	if err != nil {
		return err
	}
	cfg, err := config.LoadBenchConfig(spec.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", spec.ConfigPath, err)
	}
	planner, err := cfg.Planner(spec.Planner)
	if err != nil {
		return err
	}
	problem, err := cfg.Problem(spec.Problem)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	res := resolver.New(store, engine.DefaultRegistry(), cfg.LogsDir)
	job := orchestrator.Job{Planner: planner, Problem: problem, Mode: spec.Mode, Solve: spec.Solve}
	return orchestrator.ServeJob(ctx, res, job, os.Stdout)
}

func emit(level, name, msg string, fields map[string]interface{}) {
	if _, err := events.Emit(level, name, msg, fields); err != nil {
		log.Printf("failed to emit %s: %v", name, err)
	}
}
