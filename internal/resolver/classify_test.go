package resolver

import (
	"testing"

	"github.com/AaronLay10/plannerbench/internal/engine"
	"github.com/AaronLay10/plannerbench/internal/model"
)

func TestClassifyIsExhaustive(t *testing.T) {
	want := map[engine.Status]model.PlannerResultStatus{
		engine.StatusSolvedOptimal:        model.StatusSolved,
		engine.StatusSolvedSatisficing:    model.StatusSolved,
		engine.StatusIntermediate:         model.StatusSolved,
		engine.StatusUnsolvableProven:     model.StatusUnsolvable,
		engine.StatusUnsolvableIncomplete: model.StatusUnsolvable,
		engine.StatusTimeout:              model.StatusTimeout,
		engine.StatusMemout:               model.StatusMemout,
		engine.StatusInternalError:        model.StatusError,
		engine.StatusUnsupported:          model.StatusUnsupported,
	}
	for _, s := range engine.AllStatuses() {
		got, ok := want[s]
		if !ok {
			t.Errorf("engine status %s has no expected mapping", s)
			continue
		}
		if Classify(s) != got {
			t.Errorf("Classify(%s) = %s, want %s", s, Classify(s), got)
		}
	}
	if Classify("exploded") != model.StatusError {
		t.Errorf("unknown status must classify as ERROR")
	}
}
