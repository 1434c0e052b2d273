package model

// Merge combines the oneshot and anytime terminal results of the same
// (planner, problem) into a single merged result for reporting.
// The better solution wins (lower quality, then lower time); with no
// solution the oneshot outcome is kept.
func Merge(oneshot, anytime PlannerResult) PlannerResult {
	best := oneshot
	if betterSolution(anytime, oneshot) {
		best = anytime
	}
	best.RunningMode = ModeMerged
	best.Intermediate = false
	best.FromDatabase = oneshot.FromDatabase && anytime.FromDatabase
	return best
}

func betterSolution(a, b PlannerResult) bool {
	if a.Status != StatusSolved {
		return false
	}
	if b.Status != StatusSolved {
		return true
	}
	switch {
	case a.PlanQuality != nil && b.PlanQuality == nil:
		return true
	case a.PlanQuality == nil && b.PlanQuality != nil:
		return false
	case a.PlanQuality != nil && *a.PlanQuality != *b.PlanQuality:
		return *a.PlanQuality < *b.PlanQuality
	}
	if a.ComputationTime != nil && b.ComputationTime != nil {
		return *a.ComputationTime < *b.ComputationTime
	}
	return false
}
