package graph

import (
	"fmt"
	"sort"
)

// color states for the DFS-based cycle detector.
type color int

const (
	white color = iota
	grey
	black
)

// TopologicalSort returns a linear ordering of g's nodes consistent with
// every edge, using Kahn's algorithm with ties broken by insertion order.
// It assumes g is acyclic; callers must run DetectCycle first during
// validation.
func TopologicalSort(g *Graph) []Identifier {
	order := insertionOrder(g)
	indexOf := make(map[Identifier]int, len(order))
	for i, id := range order {
		indexOf[id] = i
	}

	inDegree := make(map[Identifier]int, len(order))
	for _, id := range order {
		inDegree[id] = 0
	}
	for _, e := range g.Edges {
		inDegree[e.To]++
	}

	ready := make([]Identifier, 0)
	for _, id := range order {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	result := make([]Identifier, 0, len(order))
	for len(ready) > 0 {
		sort.SliceStable(ready, func(i, j int) bool { return indexOf[ready[i]] < indexOf[ready[j]] })
		next := ready[0]
		ready = ready[1:]
		result = append(result, next)

		for _, e := range g.Outbound(next) {
			inDegree[e.To]--
			if inDegree[e.To] == 0 {
				ready = append(ready, e.To)
			}
		}
	}

	return result
}

// insertionOrder returns node identifiers in a stable order derived from
// Edges and Nodes, independent of Go's randomized map iteration.
func insertionOrder(g *Graph) []Identifier {
	seen := make(map[Identifier]bool, len(g.Nodes))
	order := make([]Identifier, 0, len(g.Nodes))
	add := func(id Identifier) {
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	for _, e := range g.Edges {
		add(e.From)
		add(e.To)
	}
	remaining := make([]Identifier, 0)
	for id := range g.Nodes {
		if !seen[id] {
			remaining = append(remaining, id)
		}
	}
	sort.Strings(remaining)
	for _, id := range remaining {
		add(id)
	}
	return order
}

// DetectCycle runs a DFS with grey/black coloring and returns the canonical
// path of the first cycle found (the lexicographically smallest rotation by
// node id), or nil if g is acyclic.
func DetectCycle(g *Graph) []Identifier {
	colors := make(map[Identifier]color, len(g.Nodes))
	order := insertionOrder(g)

	var path []Identifier
	var cycle []Identifier

	var visit func(id Identifier) bool
	visit = func(id Identifier) bool {
		colors[id] = grey
		path = append(path, id)

		adj := g.Outbound(id)
		sort.SliceStable(adj, func(i, j int) bool { return adj[i].To < adj[j].To })
		for _, e := range adj {
			switch colors[e.To] {
			case white:
				if visit(e.To) {
					return true
				}
			case grey:
				cycle = extractCycle(path, e.To)
				return true
			case black:
				// already fully explored, no cycle through here
			}
		}

		path = path[:len(path)-1]
		colors[id] = black
		return false
	}

	for _, id := range order {
		if colors[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

func extractCycle(path []Identifier, repeated Identifier) []Identifier {
	start := 0
	for i, id := range path {
		if id == repeated {
			start = i
			break
		}
	}
	cyc := append([]Identifier{}, path[start:]...)
	cyc = append(cyc, repeated)
	return canonicalRotation(cyc)
}

// canonicalRotation returns the lexicographically smallest rotation of a
// cycle (excluding the duplicated closing element), re-closing it.
func canonicalRotation(cycle []Identifier) []Identifier {
	if len(cycle) <= 1 {
		return cycle
	}
	body := cycle[:len(cycle)-1]
	best := body
	bestKey := fmt.Sprint(body)
	for i := 1; i < len(body); i++ {
		rot := append(append([]Identifier{}, body[i:]...), body[:i]...)
		key := fmt.Sprint(rot)
		if key < bestKey {
			best = rot
			bestKey = key
		}
	}
	out := append([]Identifier{}, best...)
	out = append(out, best[0])
	return out
}
