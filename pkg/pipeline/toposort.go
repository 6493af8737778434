package pipeline

// batch computes Kahn-style topological batches: each batch is the
// set of all stages whose dependencies are already resolved.
// Same-`parallel_group` stages that become ready together land in one
// batch, and ready stages without a group run alongside them in that
// same batch rather than alone. A cycle returns ErrCyclicDependency
// before any stage runs.
func batch(stages []Stage) ([][]Stage, error) {
	byID := make(map[string]Stage, len(stages))
	indegree := make(map[string]int, len(stages))
	dependents := make(map[string][]string, len(stages))

	for _, s := range stages {
		byID[s.StageID] = s
		if _, ok := indegree[s.StageID]; !ok {
			indegree[s.StageID] = 0
		}
	}
	for _, s := range stages {
		for _, dep := range s.Dependencies {
			indegree[s.StageID]++
			dependents[dep] = append(dependents[dep], s.StageID)
		}
	}

	var batches [][]Stage
	remaining := len(stages)

	for remaining > 0 {
		ready := make([]string, 0)
		for id, deg := range indegree {
			if deg == 0 {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			return nil, ErrCyclicDependency
		}

		current, ungrouped := groupByParallelGroup(ready, byID)
		var thisBatch []Stage
		for _, id := range current {
			thisBatch = append(thisBatch, byID[id])
			delete(indegree, id)
		}
		for _, id := range ungrouped {
			thisBatch = append(thisBatch, byID[id])
			delete(indegree, id)
		}
		batches = append(batches, thisBatch)
		remaining -= len(thisBatch)

		for _, s := range thisBatch {
			for _, dep := range dependents[s.StageID] {
				if _, ok := indegree[dep]; ok {
					indegree[dep]--
				}
			}
		}
	}

	return batches, nil
}

// groupByParallelGroup splits ready stage IDs into those that belong
// to a parallel group with more than one ready member (every such
// group, not only one) and the remaining ungrouped-or-solitary stages.
// batch puts both lists into the same batch.
func groupByParallelGroup(ready []string, byID map[string]Stage) (grouped, ungrouped []string) {
	groups := make(map[string][]string)
	for _, id := range ready {
		g := byID[id].ParallelGroup
		if g == "" {
			continue
		}
		groups[g] = append(groups[g], id)
	}

	inGroup := make(map[string]bool)
	for _, ids := range groups {
		if len(ids) > 1 {
			grouped = append(grouped, ids...)
			for _, id := range ids {
				inGroup[id] = true
			}
		}
	}

	for _, id := range ready {
		if !inGroup[id] {
			ungrouped = append(ungrouped, id)
		}
	}

	return grouped, ungrouped
}
