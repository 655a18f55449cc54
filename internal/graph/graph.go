// Package graph derives the dependency graph over a set of registered
// container definitions and computes the order in which the lifecycle
// engine must start and stop them.
//
// An edge "A depends on B" exists when A's net field names B, meaning A
// joins B's network namespace and therefore cannot start before B is
// running, and cannot outlive B's shutdown. Edges are derived, never
// persisted; the graph is rebuilt whenever the registered set changes.
package graph

import (
	"github.com/mmr-tortoise/flotilla/internal/model"
)

// Graph is the immutable result of a successful Build. It holds the
// computed start order and the derived edge set for dependency lookups.
type Graph struct {
	// order is the topological start order: every dependency precedes its
	// dependents. Stop order is its exact reverse.
	order []string

	// deps maps a container to the containers it depends on (direct only).
	deps map[string][]string

	// dependents is the inverse of deps.
	dependents map[string][]string

	// position maps a container name to its index in order.
	position map[string]int
}

// Build derives the edge set from the given definitions and computes a
// start order via Kahn's algorithm.
//
// Determinism: among containers whose dependencies are all satisfied, ties
// are broken by declaration order (the order of defs), so the same input
// always yields the same order. When groups declare a master, the master
// is preferred among equally ready containers; a master hint never
// overrides a derived edge.
//
// Build fails with *model.UnresolvedDependencyError when a net target is
// not in defs, and with *model.CycleError when the edge set contains a
// cycle. A failed build yields no usable graph: callers must not issue any
// runtime operation.
func Build(defs []*model.ContainerDefinition, groups map[string]*model.GroupDefinition) (*Graph, error) {
	byName := make(map[string]*model.ContainerDefinition, len(defs))
	declIndex := make(map[string]int, len(defs))
	for i, d := range defs {
		byName[d.Name] = d
		declIndex[d.Name] = i
	}

	masters := make(map[string]bool)
	for _, g := range groups {
		if g.Master != "" {
			masters[g.Master] = true
		}
	}

	g := &Graph{
		deps:       make(map[string][]string, len(defs)),
		dependents: make(map[string][]string, len(defs)),
		position:   make(map[string]int, len(defs)),
	}

	// Derive edges. A missing net target is an error, not a skipped edge:
	// silently dropping it would let a dependent start unordered.
	indegree := make(map[string]int, len(defs))
	for _, d := range defs {
		indegree[d.Name] += 0
		if d.Net == "" {
			continue
		}
		if _, ok := byName[d.Net]; !ok {
			return nil, &model.UnresolvedDependencyError{Container: d.Name, Target: d.Net}
		}
		g.deps[d.Name] = append(g.deps[d.Name], d.Net)
		g.dependents[d.Net] = append(g.dependents[d.Net], d.Name)
		indegree[d.Name]++
	}

	// Kahn's algorithm with a scanned ready set. The set of containers is
	// operator-sized, so a linear scan per pick keeps the tie-break rule
	// obvious at no meaningful cost.
	done := make(map[string]bool, len(defs))
	for len(g.order) < len(defs) {
		pick := ""
		for _, d := range defs {
			if done[d.Name] || indegree[d.Name] > 0 {
				continue
			}
			if pick == "" {
				pick = d.Name
				continue
			}
			// Prefer a group master over an equally ready non-master;
			// otherwise the earlier declaration wins (pick keeps it).
			if masters[d.Name] && !masters[pick] {
				pick = d.Name
			}
		}

		if pick == "" {
			// No ready container left but the order is incomplete: the
			// remaining containers form at least one cycle.
			return nil, &model.CycleError{Cycle: findCycle(defs, g.deps, done)}
		}

		done[pick] = true
		g.position[pick] = len(g.order)
		g.order = append(g.order, pick)
		for _, dep := range g.dependents[pick] {
			indegree[dep]--
		}
	}

	return g, nil
}

// findCycle walks dependency links among the unprocessed containers until a
// name repeats, then returns the cycle with each member exactly once,
// starting from the earliest-declared member.
func findCycle(defs []*model.ContainerDefinition, deps map[string][]string, done map[string]bool) []string {
	// Any unprocessed container either sits on a cycle or depends on one,
	// so walking dependency links from it must eventually revisit a name.
	start := ""
	for _, d := range defs {
		if !done[d.Name] {
			start = d.Name
			break
		}
	}

	seen := make(map[string]int)
	var path []string
	cur := start
	for {
		if at, ok := seen[cur]; ok {
			cycle := path[at:]
			return rotateToEarliest(defs, cycle)
		}
		seen[cur] = len(path)
		path = append(path, cur)

		next := ""
		for _, dep := range deps[cur] {
			if !done[dep] {
				next = dep
				break
			}
		}
		cur = next
	}
}

// rotateToEarliest rotates the cycle so it begins with the member declared
// first, keeping error messages deterministic for a given input.
func rotateToEarliest(defs []*model.ContainerDefinition, cycle []string) []string {
	inCycle := make(map[string]int, len(cycle))
	for i, name := range cycle {
		inCycle[name] = i
	}
	for _, d := range defs {
		if at, ok := inCycle[d.Name]; ok {
			return append(append([]string{}, cycle[at:]...), cycle[:at]...)
		}
	}
	return cycle
}

// StartOrder returns the computed start order: dependencies first.
func (g *Graph) StartOrder() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// StopOrder returns the exact reverse of the start order: dependents first,
// so a container is never stopped while another container still shares its
// network namespace.
func (g *Graph) StopOrder() []string {
	out := make([]string, len(g.order))
	for i, name := range g.order {
		out[len(g.order)-1-i] = name
	}
	return out
}

// Dependencies returns the containers name directly depends on.
func (g *Graph) Dependencies(name string) []string {
	return append([]string{}, g.deps[name]...)
}

// Dependents returns the containers that directly depend on name.
func (g *Graph) Dependents(name string) []string {
	return append([]string{}, g.dependents[name]...)
}

// TransitiveDependents returns every container that directly or indirectly
// depends on name. The lifecycle engine uses this to skip a whole subtree
// when its root fails to start.
func (g *Graph) TransitiveDependents(name string) []string {
	var out []string
	seen := map[string]bool{name: true}
	queue := append([]string{}, g.dependents[name]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		queue = append(queue, g.dependents[cur]...)
	}
	return out
}

// TransitiveDependencies returns every container that name directly or
// indirectly depends on. Starting a subset of containers expands through
// this so a requested container never starts before its whole chain.
func (g *Graph) TransitiveDependencies(name string) []string {
	var out []string
	seen := map[string]bool{name: true}
	queue := append([]string{}, g.deps[name]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		queue = append(queue, g.deps[cur]...)
	}
	return out
}

// Filter returns the start order restricted to the given names, preserving
// relative order. Unknown names are ignored.
func (g *Graph) Filter(names []string) []string {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []string
	for _, n := range g.order {
		if want[n] {
			out = append(out, n)
		}
	}
	return out
}

// Contains reports whether name is part of the graph.
func (g *Graph) Contains(name string) bool {
	_, ok := g.position[name]
	return ok
}
