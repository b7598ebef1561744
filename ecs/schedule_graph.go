package ecs

import (
	"slices"
	"strings"

	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"
)

// Ambiguity is a pair of conflicting systems whose relative order comes only
// from registration order, not from an explicit constraint.
type Ambiguity struct {
	First      string
	Second     string
	Components []string
}

func (a Ambiguity) String() string {
	return a.First + " / " + a.Second + " [" + strings.Join(a.Components, ", ") + "]"
}

// scheduleGraph is the dependency graph of one built schedule. An edge u->v
// means v may only start after u has finished.
type scheduleGraph struct {
	order       []int
	successors  [][]int
	indegree    []int32
	ambiguities []Ambiguity
}

// buildScheduleGraph orders the systems by their explicit constraints, then
// adds an edge between every conflicting pair, oriented by that order.
func buildScheduleGraph(systems []*systemEntry, registry *ComponentRegistry) (*scheduleGraph, error) {
	n := len(systems)
	explicit, err := explicitEdges(systems)
	if err != nil {
		return nil, err
	}

	order, err := stableTopoSort(n, explicit, systems)
	if err != nil {
		return nil, err
	}
	position := make([]int, n)
	for pos, idx := range order {
		position[idx] = pos
	}

	// reach[u] holds every system reachable from u through explicit edges.
	reach := make([]bitmap.Bitmap, n)
	for i := n - 1; i >= 0; i-- {
		u := order[i]
		for _, v := range explicit[u] {
			reach[u].Set(uint32(v))
			union(&reach[u], reach[v])
		}
	}

	g := &scheduleGraph{
		order:      order,
		successors: make([][]int, n),
		indegree:   make([]int32, n),
	}
	addEdge := func(u, v int) {
		if slices.Contains(g.successors[u], v) {
			return
		}
		g.successors[u] = append(g.successors[u], v)
		g.indegree[v]++
	}
	for u, vs := range explicit {
		for _, v := range vs {
			addEdge(u, v)
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := order[i], order[j]
			if systems[a].meta.isCompatible(systems[b].meta) {
				continue
			}
			if !reach[a].Contains(uint32(b)) && !systems[a].ambiguousWith(systems[b]) {
				g.ambiguities = append(g.ambiguities, newAmbiguity(systems[a], systems[b], registry))
			}
			addEdge(a, b)
		}
	}

	// Keep successor lists in schedule order so dispatch is deterministic in
	// single-threaded mode and predictable otherwise.
	for u := range g.successors {
		slices.SortFunc(g.successors[u], func(x, y int) int { return position[x] - position[y] })
	}
	return g, nil
}

func explicitEdges(systems []*systemEntry) ([][]int, error) {
	byName := make(map[string][]int, len(systems))
	for i, s := range systems {
		byName[s.meta.name] = append(byName[s.meta.name], i)
	}
	resolve := func(s *systemEntry, refs []systemRef) ([]int, error) {
		var out []int
		for _, ref := range refs {
			if ref.name != "" {
				targets, ok := byName[ref.name]
				if !ok {
					return nil, eris.Wrapf(ErrUnknownSystem, "system %s references %q", s.meta.name, ref.name)
				}
				out = append(out, targets...)
				continue
			}
			if ref.handle.scheduler != s.scheduler || ref.handle.index < 0 || ref.handle.index >= len(systems) {
				return nil, eris.Wrapf(ErrUnknownSystem, "system %s references a handle of another scheduler", s.meta.name)
			}
			out = append(out, ref.handle.index)
		}
		return out, nil
	}

	edges := make([][]int, len(systems))
	for i, s := range systems {
		after, err := resolve(s, s.after)
		if err != nil {
			return nil, err
		}
		for _, u := range after {
			edges[u] = append(edges[u], i)
		}
		before, err := resolve(s, s.before)
		if err != nil {
			return nil, err
		}
		edges[i] = append(edges[i], before...)
	}
	for u := range edges {
		slices.Sort(edges[u])
		edges[u] = slices.Compact(edges[u])
		if slices.Contains(edges[u], u) {
			return nil, eris.Wrapf(ErrScheduleCycle, "system %s is ordered relative to itself", systems[u].meta.name)
		}
	}
	return edges, nil
}

// stableTopoSort returns a topological order that prefers registration order
// whenever the constraints leave a choice.
func stableTopoSort(n int, edges [][]int, systems []*systemEntry) ([]int, error) {
	indegree := make([]int, n)
	for _, vs := range edges {
		for _, v := range vs {
			indegree[v]++
		}
	}

	var ready []int
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, n)
	for len(ready) > 0 {
		u := slices.Min(ready)
		ready = slices.DeleteFunc(ready, func(x int) bool { return x == u })
		order = append(order, u)
		for _, v := range edges[u] {
			indegree[v]--
			if indegree[v] == 0 {
				ready = append(ready, v)
			}
		}
	}

	if len(order) != n {
		var names []string
		for i := 0; i < n; i++ {
			if indegree[i] > 0 {
				names = append(names, systems[i].meta.name)
			}
		}
		return nil, eris.Wrapf(ErrScheduleCycle, "systems involved: %s", strings.Join(names, ", "))
	}
	return order, nil
}

func newAmbiguity(a, b *systemEntry, registry *ComponentRegistry) Ambiguity {
	amb := Ambiguity{First: a.meta.name, Second: b.meta.name}
	if a.meta.exclusive || b.meta.exclusive {
		amb.Components = []string{"<exclusive>"}
		return amb
	}
	for _, id := range a.meta.conflicts(b.meta) {
		amb.Components = append(amb.Components, registry.Info(id).Name())
	}
	return amb
}
