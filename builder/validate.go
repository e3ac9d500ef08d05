package builder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/npipeline/npipeline/graph"
)

// validate runs the ordered validation rules against the accumulated node
// definitions and edges. In ModeStrict it stops after the first rule that
// reports an Error-severity issue; otherwise every rule runs and every
// finding is returned (the caller decides whether Error-severity findings
// are fatal based on ValidationMode).
func (b *Builder) validate(g *graph.Graph) ValidationResult {
	result := ValidationResult{Issues: append([]Issue(nil), b.dedupeLog...)}

	rules := []func(*graph.Graph, *ValidationResult){
		b.checkStructure,
		b.checkEdges,
		b.checkTypes,
		b.checkCycles,
		b.checkReachability,
		b.checkLineageMapping,
	}
	for _, rule := range rules {
		rule(g, &result)
		if b.opts.ValidationMode == ModeStrict && result.HasErrors() {
			break
		}
	}

	return result
}

// checkStructure reports an Error for a Source node with inbound edges
// and for a Sink node with outbound edges. It does not check that the
// graph has a sink, and it does not flag nodes with no edges: a
// non-source node without inbound edges is reported by checkReachability.
func (b *Builder) checkStructure(g *graph.Graph, result *ValidationResult) {
	for _, id := range b.order {
		def := g.Nodes[id]
		if def.Kind == graph.KindSource && len(g.Inbound(id)) > 0 {
			result.Issues = append(result.Issues, Issue{
				Severity: SeverityError,
				Category: "Structure",
				Message:  fmt.Sprintf("source node %q has inbound edges", id),
				NodeID:   id,
			})
		}
		if def.Kind == graph.KindSink && len(g.Outbound(id)) > 0 {
			result.Issues = append(result.Issues, Issue{
				Severity: SeverityError,
				Category: "Structure",
				Message:  fmt.Sprintf("sink node %q has outbound edges", id),
				NodeID:   id,
			})
		}
	}
}

// checkEdges enforces that both endpoints of every edge exist, no
// self-loop edges, and no duplicate edges (endpoints compared
// case-insensitively). Every violation is an Error.
func (b *Builder) checkEdges(g *graph.Graph, result *ValidationResult) {
	seen := make(map[string]bool)
	for _, e := range g.Edges {
		e := e
		if _, ok := g.Nodes[e.From]; !ok {
			result.Issues = append(result.Issues, Issue{
				Severity: SeverityError, Category: "Edges",
				Message: fmt.Sprintf("edge references unknown source node %q", e.From), Edge: &e,
			})
		}
		if _, ok := g.Nodes[e.To]; !ok {
			result.Issues = append(result.Issues, Issue{
				Severity: SeverityError, Category: "Edges",
				Message: fmt.Sprintf("edge references unknown target node %q", e.To), Edge: &e,
			})
		}
		if strings.EqualFold(e.From, e.To) {
			result.Issues = append(result.Issues, Issue{
				Severity: SeverityError, Category: "Edges",
				Message: fmt.Sprintf("self-loop edge on node %q", e.From), Edge: &e,
			})
		}
		key := strings.ToLower(e.From) + "->" + strings.ToLower(e.To)
		if seen[key] {
			result.Issues = append(result.Issues, Issue{
				Severity: SeverityError, Category: "Edges",
				Message: fmt.Sprintf("duplicate edge %s -> %s", e.From, e.To), Edge: &e,
			})
		}
		seen[key] = true
	}
}

// checkTypes enforces that an edge's source OutputType must match its
// target InputType, unless the target's InputType was left unspecified
// (no static type is available when a custom merge key selector changes
// the erased representation).
func (b *Builder) checkTypes(g *graph.Graph, result *ValidationResult) {
	for _, e := range g.Edges {
		e := e
		from, ok := g.Nodes[e.From]
		if !ok {
			continue
		}
		to, ok := g.Nodes[e.To]
		if !ok {
			continue
		}
		if from.OutputType == "" || to.InputType == "" {
			continue
		}
		if from.OutputType != to.InputType {
			result.Issues = append(result.Issues, Issue{
				Severity: SeverityError,
				Category: "Types",
				Message: fmt.Sprintf("type mismatch on edge %s -> %s: %s produces %s, %s expects %s",
					e.From, e.To, e.From, from.OutputType, e.To, to.InputType),
				Edge: &e,
			})
		}
	}
}

// checkCycles enforces acyclicity via graph.DetectCycle.
func (b *Builder) checkCycles(g *graph.Graph, result *ValidationResult) {
	cycle := graph.DetectCycle(g)
	if cycle == nil {
		return
	}
	result.Issues = append(result.Issues, Issue{
		Severity: SeverityError,
		Category: "Cycle",
		Message:  fmt.Sprintf("cycle detected: %s", strings.Join(cycle, " -> ")),
	})
}

// checkReachability enforces that every node must be reachable from some
// source (an unreachable node can never execute, which is always a
// builder mistake rather than a legitimate topology).
func (b *Builder) checkReachability(g *graph.Graph, result *ValidationResult) {
	reachable := make(map[string]bool)
	var queue []string
	for _, id := range g.Sources() {
		reachable[id] = true
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range g.Outbound(id) {
			if !reachable[e.To] {
				reachable[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}

	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if !reachable[id] {
			result.Issues = append(result.Issues, Issue{
				Severity: SeverityError,
				Category: "Reachability",
				Message:  fmt.Sprintf("node %q is not reachable from any source", id),
				NodeID:   id,
			})
		}
	}
}

// checkLineageMapping enforces that a ManyToMany node declares a custom
// lineage mapper via WithCustomLineageMapper. Without one, there is no way
// to derive which inputs contributed to which outputs, so the mapping
// strategy would silently fall back to positional or materializing
// guesses; this rejects that combination outright instead.
func (b *Builder) checkLineageMapping(g *graph.Graph, result *ValidationResult) {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		def := g.Nodes[id]
		if def.Cardinality == graph.CardinalityManyToMany && !def.HasCustomLineageMapper {
			result.Issues = append(result.Issues, Issue{
				Severity: SeverityError,
				Category: "LineageMapping",
				Message:  fmt.Sprintf("node %q declares ManyToMany cardinality but has no custom lineage mapper", id),
				NodeID:   id,
			})
		}
	}
}
