// Package lineage implements item-level provenance tracking: packets that
// carry a payload plus its traversal history, and the mapping strategies
// that adapt packets across a transform's input/output boundary.
package lineage

import (
	"github.com/google/uuid"
)

// Outcome records what happened to an item at a given hop.
type Outcome string

const (
	OutcomeEmitted    Outcome = "Emitted"
	OutcomeAggregated Outcome = "Aggregated"
	OutcomeDropped    Outcome = "Dropped"
)

// ObservedCardinality records how many output items a hop actually produced
// from its input(s), independent of the node's declared Cardinality.
type ObservedCardinality string

const (
	CardinalityZero    ObservedCardinality = "Zero"
	CardinalityOne     ObservedCardinality = "One"
	CardinalityMany    ObservedCardinality = "Many"
	CardinalityUnknown ObservedCardinality = "Unknown"
)

// HopRecord is one entry in a packet's traversal history.
type HopRecord struct {
	NodeID              string
	Outcome             Outcome
	ObservedCardinality ObservedCardinality
	Ancestry            []int // input indices contributing to this hop, when known
	Truncated           bool
}

// Packet wraps a payload of type T with its lineage identity and history.
type Packet[T any] struct {
	Payload       T
	LineageID     string
	TraversalPath []string
	Collect       bool
	Hops          []HopRecord
}

// NewPacket creates a fresh packet at a source, assigning a new lineage id
// via google/uuid.
func NewPacket[T any](payload T, collect bool) Packet[T] {
	return Packet[T]{
		Payload:   payload,
		LineageID: uuid.NewString(),
		Collect:   collect,
	}
}

// DefaultMaxHopRecords caps how many hops a packet records before further
// appends are suppressed when AppendHop is given maxHops <= 0; it allows a
// generous trace depth without unbounded memory growth per item.
const DefaultMaxHopRecords = 64

// AppendHop records a hop, honoring maxHops (<=0 means DefaultMaxHopRecords).
// Once the cap is reached, further hops are suppressed and the last
// recorded hop's Truncated flag is set instead of growing the list.
func (p *Packet[T]) AppendHop(nodeID string, outcome Outcome, observed ObservedCardinality, ancestry []int, maxHops int) {
	if maxHops <= 0 {
		maxHops = DefaultMaxHopRecords
	}
	p.TraversalPath = append(p.TraversalPath, nodeID)

	if len(p.Hops) >= maxHops {
		if len(p.Hops) > 0 {
			p.Hops[len(p.Hops)-1].Truncated = true
		}
		return
	}
	p.Hops = append(p.Hops, HopRecord{
		NodeID:              nodeID,
		Outcome:             outcome,
		ObservedCardinality: observed,
		Ancestry:            ancestry,
	})
}

// Derive builds a new packet around a transformed payload, carrying over
// the lineage id, traversal path, and hop history of the receiver — used by
// the streaming 1:1 mapping strategy to preserve identity exactly.
func Derive[TIn, TOut any](in Packet[TIn], payload TOut) Packet[TOut] {
	return Packet[TOut]{
		Payload:       payload,
		LineageID:     in.LineageID,
		TraversalPath: append([]string{}, in.TraversalPath...),
		Collect:       in.Collect,
		Hops:          append([]HopRecord{}, in.Hops...),
	}
}
