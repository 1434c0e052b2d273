package model

import (
	"fmt"
	"time"
)

// SolveConfig is the resource budget and cache policy shared by every job of a run.
type SolveConfig struct {
	Jobs             int     `json:"jobs" yaml:"jobs"`
	MemoryLimitBytes int64   `json:"memory_limit_bytes" yaml:"-"`
	TimeoutSeconds   float64 `json:"timeout" yaml:"timeout"`
	TimeoutOffset    float64 `json:"timeout_offset" yaml:"timeout_offset"`
	DBOnly           bool    `json:"db_only" yaml:"db_only"`
	NoDBLoad         bool    `json:"no_db_load" yaml:"no_db_load"`
	NoDBSave         bool    `json:"no_db_save" yaml:"no_db_save"`
}

// Timeout returns the nominal timeout as a duration.
func (c SolveConfig) Timeout() time.Duration {
	return seconds(c.TimeoutSeconds)
}

// Deadline returns the wall-clock budget including the offset.
func (c SolveConfig) Deadline() time.Duration {
	return seconds(c.TimeoutSeconds + c.TimeoutOffset)
}

// Validate checks the budget and the mutually exclusive cache policies.
func (c SolveConfig) Validate() error {
	if c.DBOnly && c.NoDBLoad {
		return fmt.Errorf("db_only and no_db_load are mutually exclusive")
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout must be > 0, got %v", c.TimeoutSeconds)
	}
	if c.TimeoutOffset < 0 {
		return fmt.Errorf("timeout_offset must be >= 0, got %v", c.TimeoutOffset)
	}
	if c.MemoryLimitBytes < 0 {
		return fmt.Errorf("memory limit must be >= 0, got %d", c.MemoryLimitBytes)
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// EngineSpec names the registry entry that builds a planner's engine
// plus the settings that entry needs.
type EngineSpec struct {
	Kind    string   `json:"kind" yaml:"kind"`
	Command string   `json:"command,omitempty" yaml:"command"`
	Args    []string `json:"args,omitempty" yaml:"args"`
	Dir     string   `json:"dir,omitempty" yaml:"dir"`
}

// PlannerConfig describes a planner's identity and capabilities.
// It is read-only after construction.
type PlannerConfig struct {
	Name        string `json:"name" yaml:"name"`
	OneshotName string `json:"oneshot_name,omitempty" yaml:"oneshot_name"`
	AnytimeName string `json:"anytime_name,omitempty" yaml:"anytime_name"`
	// ProblemVersions maps a domain to the problem version this planner supports.
	ProblemVersions map[string]string `json:"problem_versions" yaml:"problem_versions"`
	Env             map[string]string `json:"env,omitempty" yaml:"env"`
	Engine          EngineSpec        `json:"engine" yaml:"engine"`
}

// VersionFor returns the problem version declared for domain.
func (p PlannerConfig) VersionFor(domain string) (string, bool) {
	v, ok := p.ProblemVersions[domain]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// EngineName returns the engine identifier used for mode.
// Oneshot falls back to the planner name; anytime must be declared.
func (p PlannerConfig) EngineName(mode RunningMode) (string, bool) {
	switch mode {
	case ModeOneshot:
		if p.OneshotName != "" {
			return p.OneshotName, true
		}
		return p.Name, p.Name != ""
	case ModeAnytime:
		return p.AnytimeName, p.AnytimeName != ""
	}
	return "", false
}
