package taskparser

import "fmt"

// ValidateDAG runs Kahn's algorithm over tasks' title-keyed dependency
// edges and returns an error if the graph contains a cycle. Grounded on
// open-swarm's Coordinator.BuildExecutionOrder topological sort
// (in-degree map plus adjacency-list queue drain), adapted here from
// execution-order construction to pure cycle detection since ordering
// itself is handled by store.TaskStore.Ready at run time.
func ValidateDAG(tasks []ParsedTask) error {
	inDegree := make(map[string]int, len(tasks))
	adjacency := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		if _, ok := inDegree[t.Title]; !ok {
			inDegree[t.Title] = 0
			adjacency[t.Title] = nil
		}
	}
	for _, t := range tasks {
		inDegree[t.Title] = len(t.Dependencies)
		for _, dep := range t.Dependencies {
			adjacency[dep] = append(adjacency[dep], t.Title)
		}
	}

	var queue []string
	for title, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, title)
		}
	}
	visited := 0
	for len(queue) > 0 {
		title := queue[0]
		queue = queue[1:]
		visited++
		for _, dependent := range adjacency[title] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}
	if visited != len(inDegree) {
		return fmt.Errorf("taskparser: dependency graph contains a cycle")
	}
	return nil
}
