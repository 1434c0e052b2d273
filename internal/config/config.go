// Package config loads bench.yaml, the description of a benchmark run:
// budget, cache backend, planners, problem catalog and selection.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/AaronLay10/plannerbench/internal/engine"
	"github.com/AaronLay10/plannerbench/internal/model"
)

type BenchConfig struct {
	Version    int                   `yaml:"version"`
	Solve      SolveSection          `yaml:"solve"`
	Database   DatabaseConfig        `yaml:"database"`
	LogsDir    string                `yaml:"logs_dir"`
	Planners   []model.PlannerConfig `yaml:"planners"`
	Problems   []ProblemEntry        `yaml:"problems"`
	Select     Selection             `yaml:"select"`
	MQTT       MQTTConfig            `yaml:"mqtt"`
	StatusPort int                   `yaml:"status_port"`

	// path is the file the config was loaded from.
	path string
}

// SolveSection is the solve budget. memory_limit is a human size ("4GiB", "512MB").
type SolveSection struct {
	model.SolveConfig `yaml:",inline"`
	MemoryLimit       string `yaml:"memory_limit"`
}

// DatabaseConfig selects the result cache backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	// Path is the sqlite file, relative to the config file.
	Path string `yaml:"path"`
	// DSN is the postgres connection string. Empty uses the PG* environment.
	DSN string `yaml:"dsn"`
	// Addr and DB address a redis server. The password comes from REDIS_PASSWORD(_FILE).
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

// ProblemEntry is one catalog problem with its versions.
type ProblemEntry struct {
	Domain   string                  `yaml:"domain"`
	Name     string                  `yaml:"name"`
	UID      string                  `yaml:"uid"`
	Versions map[string]VersionFiles `yaml:"versions"`
}

// VersionFiles are the files of one problem version, relative to the config file.
type VersionFiles struct {
	Domain  string `yaml:"domain"`
	Problem string `yaml:"problem"`
}

// Selection narrows the catalog. Empty lists select everything.
type Selection struct {
	Planners []string `yaml:"planners"`
	Problems []string `yaml:"problems"`
	Domains  []string `yaml:"domains"`
	Modes    []string `yaml:"modes"`
}

type MQTTConfig struct {
	URL   string `yaml:"url"`
	Topic string `yaml:"topic"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

func LoadBenchConfig(path string) (*BenchConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg BenchConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported bench.yaml version: %d", cfg.Version)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg.path = abs

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Path returns the absolute path of the loaded file.
func (c *BenchConfig) Path() string {
	return c.path
}

// resolve makes p absolute relative to the config file's directory.
func (c *BenchConfig) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(c.path), p)
}

func (c *BenchConfig) applyDefaults() error {
	if c.Solve.Jobs == 0 {
		c.Solve.Jobs = 1
	}
	if c.Solve.MemoryLimit != "" {
		n, err := humanize.ParseBytes(c.Solve.MemoryLimit)
		if err != nil {
			return fmt.Errorf("invalid memory_limit %q: %w", c.Solve.MemoryLimit, err)
		}
		c.Solve.MemoryLimitBytes = int64(n)
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Path == "" {
		c.Database.Path = "plannerbench.db"
	}
	c.Database.Path = c.resolve(c.Database.Path)
	if c.Database.Addr == "" {
		c.Database.Addr = "localhost:6379"
	}

	if c.LogsDir == "" {
		c.LogsDir = "logs"
	}
	c.LogsDir = c.resolve(c.LogsDir)

	for i := range c.Problems {
		p := &c.Problems[i]
		if p.UID == "" {
			p.UID = p.Name
		}
		if p.Name == "" && p.UID != "" {
			p.Name = p.Domain + ":" + p.UID
		}
	}
	return nil
}

// applyEnv applies environment overrides.
func (c *BenchConfig) applyEnv() error {
	if url := os.Getenv("MQTT_URL"); url != "" {
		c.MQTT.URL = url
	}
	if port := os.Getenv("PLANNERBENCH_STATUS_PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PLANNERBENCH_STATUS_PORT %q: %w", port, err)
		}
		c.StatusPort = n
	}
	return nil
}

func (c *BenchConfig) validate() error {
	if err := c.Solve.Validate(); err != nil {
		return fmt.Errorf("invalid solve section: %w", err)
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres, DriverRedis:
	default:
		return fmt.Errorf("unknown database driver: %s", c.Database.Driver)
	}

	planners := make(map[string]bool)
	for _, p := range c.Planners {
		if p.Name == "" {
			return fmt.Errorf("planner without name")
		}
		if planners[p.Name] {
			return fmt.Errorf("duplicate planner: %s", p.Name)
		}
		planners[p.Name] = true
	}

	problems := make(map[string]bool)
	for _, p := range c.Problems {
		if p.Domain == "" || p.Name == "" {
			return fmt.Errorf("problem entries require domain and name or uid")
		}
		if problems[p.Name] {
			return fmt.Errorf("duplicate problem: %s", p.Name)
		}
		problems[p.Name] = true
		if len(p.Versions) == 0 {
			return fmt.Errorf("problem %s declares no versions", p.Name)
		}
	}

	for _, m := range c.Select.Modes {
		if _, err := model.ParseRunningMode(m); err != nil {
			return err
		}
	}
	return nil
}

// SolveConfig returns the run's budget and cache policy.
func (c *BenchConfig) SolveConfig() model.SolveConfig {
	return c.Solve.SolveConfig
}

// Planner returns the planner named name.
func (c *BenchConfig) Planner(name string) (model.PlannerConfig, error) {
	for _, p := range c.Planners {
		if p.Name == name {
			return p, nil
		}
	}
	return model.PlannerConfig{}, fmt.Errorf("planner not found: %s", name)
}

// Problem builds the catalog problem named name.
func (c *BenchConfig) Problem(name string) (*model.Problem, error) {
	for _, p := range c.Problems {
		if p.Name == name {
			return c.buildProblem(p), nil
		}
	}
	return nil, fmt.Errorf("problem not found: %s", name)
}

// buildProblem turns a catalog entry into a problem whose versions check
// their files lazily, on first use by a job.
func (c *BenchConfig) buildProblem(e ProblemEntry) *model.Problem {
	p := &model.Problem{
		UID:      e.UID,
		Domain:   e.Domain,
		Name:     e.Name,
		Versions: make(map[string]*model.Version, len(e.Versions)),
	}
	for version, files := range e.Versions {
		f := engine.Files{
			DomainFile:  c.resolve(files.Domain),
			ProblemFile: c.resolve(files.Problem),
		}
		p.Versions[version] = model.NewVersion(func() (any, error) {
			for _, path := range []string{f.DomainFile, f.ProblemFile} {
				if path == "" {
					continue
				}
				if _, err := os.Stat(path); err != nil {
					return nil, err
				}
			}
			if f.ProblemFile == "" {
				return nil, fmt.Errorf("version %s has no problem file", version)
			}
			return f, nil
		})
	}
	return p
}

// SelectedPlanners returns the selected planners, all if none are selected.
func (c *BenchConfig) SelectedPlanners() ([]model.PlannerConfig, error) {
	if len(c.Select.Planners) == 0 {
		return append([]model.PlannerConfig(nil), c.Planners...), nil
	}
	out := make([]model.PlannerConfig, 0, len(c.Select.Planners))
	for _, name := range c.Select.Planners {
		p, err := c.Planner(name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// SelectedProblems builds the selected problems. Problems and domains
// filters both apply.
func (c *BenchConfig) SelectedProblems() ([]*model.Problem, error) {
	names := toSet(c.Select.Problems)
	domains := toSet(c.Select.Domains)

	for name := range names {
		if _, err := c.Problem(name); err != nil {
			return nil, err
		}
	}

	var out []*model.Problem
	for _, e := range c.Problems {
		if len(names) > 0 && !names[e.Name] {
			continue
		}
		if len(domains) > 0 && !domains[e.Domain] {
			continue
		}
		out = append(out, c.buildProblem(e))
	}
	return out, nil
}

// Modes returns the selected running modes, oneshot if none are selected.
func (c *BenchConfig) Modes() ([]model.RunningMode, error) {
	if len(c.Select.Modes) == 0 {
		return []model.RunningMode{model.ModeOneshot}, nil
	}
	out := make([]model.RunningMode, 0, len(c.Select.Modes))
	for _, s := range c.Select.Modes {
		m, err := model.ParseRunningMode(s)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// MemoryLimitString renders the memory limit for logs.
func (c *BenchConfig) MemoryLimitString() string {
	if c.Solve.MemoryLimitBytes <= 0 {
		return "unlimited"
	}
	return humanize.IBytes(uint64(c.Solve.MemoryLimitBytes))
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out[s] = true
		}
	}
	return out
}
