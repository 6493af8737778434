package simulation

import "time"

// evaluate reports whether c's Spec matches given a scenario's
// current pipeline outcomes and elapsed/resource state, per
// original_source simulation.rs's ConditionSpec variants and spec.md
// §4.F step 5 "Evaluate scenario success/failure conditions".
func (c ScenarioCondition) evaluate(results map[string]bool, elapsed time.Duration, usage ResourceUsage) bool {
	switch c.Spec {
	case SpecAllPipelinesSuccess:
		if len(results) == 0 {
			return false
		}
		for _, ok := range results {
			if !ok {
				return false
			}
		}
		return true

	case SpecPipelinesSuccess:
		for _, id := range c.PipelineIDs {
			if !results[id] {
				return false
			}
		}
		return len(c.PipelineIDs) > 0

	case SpecExecutionTime:
		return elapsed.Milliseconds() > c.MaxMS

	case SpecResourceUsage:
		return len(checkBudget("", c.Limits, usage, 0, time.Time{})) > 0

	default:
		return false
	}
}
