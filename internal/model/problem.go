package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// Builder constructs a problem object on demand.
type Builder func() (any, error)

// Version is a lazily built problem variant. The builder runs at most once.
type Version struct {
	once  sync.Once
	build Builder
	value any
	err   error
}

// NewVersion wraps a builder.
func NewVersion(build Builder) *Version {
	return &Version{build: build}
}

// StaticVersion wraps an already built problem object.
func StaticVersion(v any) *Version {
	return NewVersion(func() (any, error) { return v, nil })
}

// Get builds the version on first use and returns the cached outcome afterwards.
func (v *Version) Get() (any, error) {
	v.once.Do(func() {
		if v.build == nil {
			v.err = fmt.Errorf("problem version has no builder")
			return
		}
		v.value, v.err = v.build()
	})
	return v.value, v.err
}

// QualityEvaluator scores a plan produced for a problem. Lower is better.
type QualityEvaluator interface {
	Quality(plan string) (float64, error)
}

// PlanLength scores a plan by its number of actions.
// Blank lines and lines starting with ';' are ignored.
type PlanLength struct{}

func (PlanLength) Quality(plan string) (float64, error) {
	n := 0
	for _, line := range strings.Split(plan, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		n++
	}
	return float64(n), nil
}

// Problem is a catalog entry. It is consumed read-only.
type Problem struct {
	UID       string
	Domain    string
	Name      string
	Versions  map[string]*Version
	Evaluator QualityEvaluator
}

// Quality evaluates a plan with the problem's evaluator, PlanLength if none is set.
func (p *Problem) Quality(plan string) (float64, error) {
	if p.Evaluator == nil {
		return PlanLength{}.Quality(plan)
	}
	return p.Evaluator.Quality(plan)
}

// LogID returns the identifier used in per-job log file names.
func (p *Problem) LogID() string {
	if p.UID != "" {
		return p.UID
	}
	return p.Name
}

// numericSuffix returns the trailing integer of name, or -1 if it has none.
func numericSuffix(name string) int {
	end := len(name)
	start := end
	for start > 0 && unicode.IsDigit(rune(name[start-1])) {
		start--
	}
	if start == end {
		return -1
	}
	n, err := strconv.Atoi(name[start:end])
	if err != nil {
		return -1
	}
	return n
}

// SortProblems orders problems by domain, then numeric name suffix, then name.
func SortProblems(problems []*Problem) {
	sort.SliceStable(problems, func(i, j int) bool {
		a, b := problems[i], problems[j]
		if a.Domain != b.Domain {
			return a.Domain < b.Domain
		}
		na, nb := numericSuffix(a.Name), numericSuffix(b.Name)
		if na != nb {
			return na < nb
		}
		return a.Name < b.Name
	})
}

// SortPlanners orders planners by name.
func SortPlanners(planners []PlannerConfig) {
	sort.SliceStable(planners, func(i, j int) bool {
		return planners[i].Name < planners[j].Name
	})
}

// GroupByDomain groups problems by domain. Domains are returned sorted and
// each group is sorted by natural key.
func GroupByDomain(problems []*Problem) ([]string, map[string][]*Problem) {
	groups := make(map[string][]*Problem)
	for _, p := range problems {
		groups[p.Domain] = append(groups[p.Domain], p)
	}
	domains := make([]string, 0, len(groups))
	for d, ps := range groups {
		domains = append(domains, d)
		SortProblems(ps)
	}
	sort.Strings(domains)
	return domains, groups
}
