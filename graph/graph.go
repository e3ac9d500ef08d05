// Package graph implements the pipeline graph model: node definitions,
// edges, and the immutable Graph they compose into. Graphs are produced
// by package builder; this package only holds the data and the
// structural invariants a builder must enforce.
package graph

import "strings"

// Identifier is a non-empty string, unique within a graph
// case-insensitively.
type Identifier = string

// NodeKind is one of the four capability sets a node may implement.
type NodeKind string

const (
	KindSource      NodeKind = "Source"
	KindTransform   NodeKind = "Transform"
	KindSink        NodeKind = "Sink"
	KindCustomMerge NodeKind = "CustomMerge"
)

// Cardinality describes how a transform's output count relates to its
// input count, driving lineage mapping-strategy selection.
type Cardinality string

const (
	CardinalityOneToOne        Cardinality = "OneToOne"
	CardinalityOneToZeroOrOne  Cardinality = "OneToZeroOrOne"
	CardinalityOneToMany       Cardinality = "OneToMany"
	CardinalityManyToOne       Cardinality = "ManyToOne"
	CardinalityManyToMany      Cardinality = "ManyToMany"
)

// StrategyKind selects which execution strategy wraps a node.
type StrategyKind string

const (
	StrategySequential StrategyKind = "Sequential"
	StrategyParallel   StrategyKind = "Parallel"
	StrategyResilient  StrategyKind = "Resilient"
)

// MergeType selects how a node with ≥2 inbound edges combines its inputs.
type MergeType string

const (
	MergeInterleave  MergeType = "Interleave"
	MergeConcatenate MergeType = "Concatenate"
	MergeKeyedJoin   MergeType = "KeyedJoin"
	MergeCustom      MergeType = "Custom"
)

// NodeDefinition is the immutable record describing one graph vertex.
// TypeName fields hold a type-system token (typically the Go type's
// fmt.Sprintf("%T") or a caller-supplied name) used only for the builder's
// type-compatibility check; the runner binds actual typed factories
// separately via generics.
type NodeDefinition struct {
	ID          Identifier
	DisplayName string
	Kind        NodeKind

	InputType  string // empty for Source
	OutputType string // empty for Sink

	StrategyKind    StrategyKind
	ContinueOnError bool

	MergeType        MergeType
	MergeKeySelector string

	Cardinality Cardinality
	// HasCustomLineageMapper reports whether the builder registered a
	// lineage.CustomMapper for this node via WithCustomLineageMapper.
	// A ManyToMany node without one fails validation.
	HasCustomLineageMapper bool
}

// Edge is an ordered pair of node identifiers.
type Edge struct {
	From Identifier
	To   Identifier
}

// Graph is the immutable product of a successful build. Nodes is keyed by
// identifier; Edges preserves insertion order, which the runner uses to
// build per-node inbound-edge lists in a deterministic order.
type Graph struct {
	Nodes map[Identifier]NodeDefinition
	Edges []Edge
}

// Inbound returns the edges pointing at id, in the order they were added.
func (g *Graph) Inbound(id Identifier) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if strings.EqualFold(e.To, id) {
			out = append(out, e)
		}
	}
	return out
}

// Outbound returns the edges leaving id, in the order they were added.
func (g *Graph) Outbound(id Identifier) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if strings.EqualFold(e.From, id) {
			out = append(out, e)
		}
	}
	return out
}

// Sources returns the identifiers of every Source-kind node, in Nodes
// iteration order is not guaranteed; callers needing determinism should
// sort the result.
func (g *Graph) Sources() []Identifier {
	var out []Identifier
	for id, def := range g.Nodes {
		if def.Kind == KindSource {
			out = append(out, id)
		}
	}
	return out
}

// Sinks returns the identifiers of every Sink-kind node.
func (g *Graph) Sinks() []Identifier {
	var out []Identifier
	for id, def := range g.Nodes {
		if def.Kind == KindSink {
			out = append(out, id)
		}
	}
	return out
}
