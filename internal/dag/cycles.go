package dag

import (
	"context"
	"slices"

	"github.com/specialistvlad/pipegrid/internal/topologystore"
)

// detectCycle runs a depth-first search along `needs` edges, visiting jobs
// and edges in declaration order so the reported witness is stable.
func detectCycle(ctx context.Context, store topologystore.Store) error {
	const (
		unvisited = iota
		inStack
		done
	)
	state := make(map[string]int)
	var stack []string

	var visit func(name string) []string
	visit = func(name string) []string {
		state[name] = inStack
		stack = append(stack, name)

		deps, _ := store.DependenciesOf(ctx, name)
		for _, dep := range deps {
			switch state[dep] {
			case inStack:
				start := slices.Index(stack, dep)
				cycle := append(slices.Clone(stack[start:]), dep)
				return cycle
			case unvisited:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[name] = done
		return nil
	}

	for _, job := range store.AllJobs(ctx) {
		if state[job.Name] != unvisited {
			continue
		}
		if cycle := visit(job.Name); cycle != nil {
			return &CyclicDependencyError{Cycle: cycle}
		}
	}
	return nil
}

// topologicalOrder is Kahn's algorithm with declaration order as the tie
// breaker. It assumes the graph is acyclic.
func topologicalOrder(ctx context.Context, store topologystore.Store) []string {
	jobs := store.AllJobs(ctx)
	remaining := make(map[string]int, len(jobs))
	for _, j := range jobs {
		deps, _ := store.DependenciesOf(ctx, j.Name)
		remaining[j.Name] = len(deps)
	}

	order := make([]string, 0, len(jobs))
	emitted := make(map[string]bool, len(jobs))
	for len(order) < len(jobs) {
		progressed := false
		for _, j := range jobs {
			if emitted[j.Name] || remaining[j.Name] > 0 {
				continue
			}
			emitted[j.Name] = true
			order = append(order, j.Name)
			progressed = true
			dependents, _ := store.DependentsOf(ctx, j.Name)
			for _, d := range dependents {
				remaining[d]--
			}
		}
		if !progressed {
			break
		}
	}
	return order
}
