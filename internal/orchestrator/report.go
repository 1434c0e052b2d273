package orchestrator

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/AaronLay10/plannerbench/internal/model"
)

// Report is the outcome of a run. Results holds terminal results only; in
// parallel runs their order is unspecified.
type Report struct {
	RunID      uuid.UUID             `json:"run_id"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Results    []model.PlannerResult `json:"results"`
	Merged     []model.PlannerResult `json:"merged,omitempty"`
}

// Counts returns the number of results per status.
func (r *Report) Counts() map[model.PlannerResultStatus]int {
	counts := make(map[model.PlannerResultStatus]int)
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// Summary is the compact form of a report printed at the end of a run.
type Summary struct {
	RunID    uuid.UUID      `json:"run_id"`
	Started  time.Time      `json:"started_at"`
	Duration string         `json:"duration"`
	Jobs     int            `json:"jobs"`
	Cached   int            `json:"cached"`
	Counts   map[string]int `json:"counts"`
	Merged   map[string]int `json:"merged,omitempty"`
}

func (r *Report) Summary() Summary {
	s := Summary{
		RunID:    r.RunID,
		Started:  r.StartedAt,
		Duration: r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
		Jobs:     len(r.Results),
		Counts:   make(map[string]int),
	}
	for status, n := range r.Counts() {
		s.Counts[string(status)] = n
	}
	for _, res := range r.Results {
		if res.FromDatabase {
			s.Cached++
		}
	}
	if len(r.Merged) > 0 {
		s.Merged = make(map[string]int)
		for _, res := range r.Merged {
			s.Merged[string(res.Status)]++
		}
	}
	return s
}

// MergeResults pairs the oneshot and anytime terminal results of each
// (planner, problem) and merges them. Pairs missing either mode are skipped.
// The output is sorted by planner, then problem.
func MergeResults(results []model.PlannerResult) []model.PlannerResult {
	type key struct{ planner, problem string }
	oneshot := make(map[key]model.PlannerResult)
	anytime := make(map[key]model.PlannerResult)
	for _, r := range results {
		k := key{r.PlannerName, r.ProblemName}
		switch r.RunningMode {
		case model.ModeOneshot:
			oneshot[k] = r
		case model.ModeAnytime:
			anytime[k] = r
		}
	}

	var out []model.PlannerResult
	for k, o := range oneshot {
		a, ok := anytime[k]
		if !ok {
			continue
		}
		out = append(out, model.Merge(o, a))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlannerName != out[j].PlannerName {
			return out[i].PlannerName < out[j].PlannerName
		}
		return out[i].ProblemName < out[j].ProblemName
	})
	return out
}
