//go:build property
// +build property

package resolver

import (
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/AaronLay10/plannerbench/internal/engine"
	"github.com/AaronLay10/plannerbench/internal/model"
)

func isResultStatus(s model.PlannerResultStatus) bool {
	for _, known := range model.AllStatuses() {
		if s == known && s != model.StatusNotRun {
			return true
		}
	}
	return false
}

// TestClassifyTotality verifies every engine status lands in the taxonomy.
// Property: Classify(s) is a result status and never NOT_RUN
func TestClassifyTotality(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	statuses := make([]interface{}, 0, len(engine.AllStatuses()))
	for _, s := range engine.AllStatuses() {
		statuses = append(statuses, string(s))
	}

	properties.Property("known statuses classify into the taxonomy", prop.ForAll(
		func(s string) bool {
			return isResultStatus(Classify(engine.Status(s)))
		},
		gen.OneConstOf(statuses...),
	))

	properties.Property("arbitrary statuses classify into the taxonomy", prop.ForAll(
		func(s string) bool {
			return isResultStatus(Classify(engine.Status(s)))
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// TestTimeoutDominance verifies no result reports more time than the budget.
// Property: classify(r).ComputationTime <= timeout for SOLVED and UNSOLVABLE
func TestTimeoutDominance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	statuses := make([]interface{}, 0, len(engine.AllStatuses()))
	for _, s := range engine.AllStatuses() {
		statuses = append(statuses, s)
	}

	f := &fixture{
		planner: model.PlannerConfig{Name: "lama"},
		problem: &model.Problem{Domain: "blocks", Name: "blocks:01"},
	}
	r := &Resolver{}

	properties.Property("budget dominates reported and elapsed time", prop.ForAll(
		func(status engine.Status, reported, elapsed, timeout float64) bool {
			j := job{planner: f.planner, problem: f.problem, mode: model.ModeOneshot,
				solve: model.SolveConfig{TimeoutSeconds: timeout}}
			res := r.classify(j, engine.Result{
				Status:  status,
				Plan:    "(a)",
				Metrics: map[string]string{engine.MetricInternalTime: strconv.FormatFloat(reported, 'g', -1, 64)},
			}, elapsed)

			switch res.Status {
			case model.StatusTimeout:
				return res.ComputationTime != nil && *res.ComputationTime == timeout && res.Plan == ""
			case model.StatusSolved, model.StatusUnsolvable:
				return res.ComputationTime != nil && *res.ComputationTime <= timeout
			}
			return res.Plan == ""
		},
		gen.OneConstOf(statuses...),
		gen.Float64Range(0, 20),
		gen.Float64Range(0, 20),
		gen.Float64Range(0.1, 10),
	))

	properties.TestingRun(t)
}
