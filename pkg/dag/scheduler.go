// Package dag implements the skill DAG engine (C4): a level-parallel
// scheduler over a workflow's tool nodes, built atop the tool executor (C3).
//
// Grounded on original_source/backend/app/engine/executor.py's
// DAGScheduler.get_execution_order(): repeatedly compute the ready set from
// the completed set, fail if it's empty while nodes remain, otherwise record
// it as a level and mark its members completed.
package dag

// Node is one node of a skill's workflow graph (§3 WorkflowNode).
type Node struct {
	ID            string
	Tool          string
	DependsOn     []string
	ParamsMapping map[string]interface{}
	Condition     string
}

// Workflow is a skill's full node list plus its output projection.
type Workflow struct {
	Nodes         []Node
	OutputMapping map[string]interface{}
}

// Plan computes the execution order: a sequence of node-id groups where
// nodes in the same group have no dependency on each other and may run
// concurrently. Returns DependencyCycleError if the graph is not a DAG.
func Plan(nodes []Node) ([][]string, error) {
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	completed := make(map[string]bool, len(nodes))
	var levels [][]string

	for len(completed) < len(nodes) {
		var ready []string
		for _, n := range nodes {
			if completed[n.ID] {
				continue
			}
			if dependenciesSatisfied(n, completed) {
				ready = append(ready, n.ID)
			}
		}

		if len(ready) == 0 {
			var remaining []string
			for _, n := range nodes {
				if !completed[n.ID] {
					remaining = append(remaining, n.ID)
				}
			}
			return nil, &DependencyCycleError{Remaining: remaining}
		}

		levels = append(levels, ready)
		for _, id := range ready {
			completed[id] = true
		}
	}

	return levels, nil
}

func dependenciesSatisfied(n Node, completed map[string]bool) bool {
	for _, dep := range n.DependsOn {
		if !completed[dep] {
			return false
		}
	}
	return true
}
