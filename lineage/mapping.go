package lineage

import (
	"context"

	"github.com/npipeline/npipeline/graph"
)

// MappingStrategy names which of the four ancestry-reattachment approaches
// applies to a given transform.
type MappingStrategy string

const (
	StrategyStreamingOneToOne  MappingStrategy = "StreamingOneToOne"
	StrategyMaterializing      MappingStrategy = "Materializing"
	StrategyCapAware           MappingStrategy = "CapAware"
	StrategyPositionalStreaming MappingStrategy = "PositionalStreaming"
)

// OverflowPolicy governs cap-aware behavior when both buffers cannot fit
// within materializationCap.
type OverflowPolicy string

const (
	OverflowStrict      OverflowPolicy = "Strict"
	OverflowWarnContinue OverflowPolicy = "WarnContinue"
	OverflowDegrade      OverflowPolicy = "Degrade"
)

// Options configures lineage mapping for one node.
type Options struct {
	Cardinality          graph.Cardinality
	HasCustomMapper       bool
	StreamingRequired     bool // node declares unbounded/streaming-only input
	MaterializationCap    int  // 0 means unset
	OverflowPolicy        OverflowPolicy
	MismatchBehavior      MismatchBehavior
	MaxHopRecordsPerItem  int
}

// SelectStrategy picks the cheapest mapping approach that still satisfies
// the node's cardinality, streaming, and cap constraints.
func SelectStrategy(opts Options) MappingStrategy {
	switch {
	case opts.Cardinality == graph.CardinalityOneToOne && !opts.HasCustomMapper:
		return StrategyStreamingOneToOne
	case opts.MaterializationCap > 0:
		return StrategyCapAware
	case opts.StreamingRequired:
		return StrategyPositionalStreaming
	default:
		return StrategyMaterializing
	}
}

// ItemTransform is the shape of a per-item transform function, reused here
// so the streaming 1:1 mapper can drive it directly while threading
// lineage through.
type ItemTransform[TIn, TOut any] func(ctx context.Context, item TIn) (TOut, error)

// MapStreamingOneToOne consumes packets from in, applies transform to each
// payload in lock-step, and emits a packet per output carrying the same
// lineage id with the node id appended to the traversal path.
func MapStreamingOneToOne[TIn, TOut any](
	ctx context.Context,
	nodeID string,
	in []Packet[TIn],
	transform ItemTransform[TIn, TOut],
	maxHops int,
) ([]Packet[TOut], error) {
	out := make([]Packet[TOut], 0, len(in))
	for _, pkt := range in {
		result, err := transform(ctx, pkt.Payload)
		if err != nil {
			return out, err
		}
		derived := Derive(pkt, result)
		derived.AppendHop(nodeID, OutcomeEmitted, CardinalityOne, nil, maxHops)
		out = append(out, derived)
	}
	return out, nil
}

// CustomMapper, given the index of an output item, returns the indices of
// the input items that contributed to it. Used by the materializing
// strategy for non-1:1 cardinalities.
type CustomMapper func(outputIndex int) []int

// MapMaterializing buffers both sides and aligns outputs to inputs using
// mapper when provided, falling back to positional alignment otherwise.
func MapMaterializing[TIn, TOut any](
	nodeID string,
	in []Packet[TIn],
	outputs []TOut,
	mapper CustomMapper,
	maxHops int,
) []Packet[TOut] {
	result := make([]Packet[TOut], len(outputs))
	for i, payload := range outputs {
		var ancestry []int
		if mapper != nil {
			ancestry = mapper(i)
		} else if i < len(in) {
			ancestry = []int{i}
		}

		var base Packet[TIn]
		if len(ancestry) > 0 && ancestry[0] < len(in) {
			base = in[ancestry[0]]
		} else if i < len(in) {
			base = in[i]
		} else if len(in) > 0 {
			base = in[len(in)-1]
		}

		derived := Derive(base, payload)
		outcome := OutcomeEmitted
		observed := CardinalityOne
		if len(ancestry) > 1 {
			outcome = OutcomeAggregated
			observed = CardinalityMany
		}
		derived.AppendHop(nodeID, outcome, observed, ancestry, maxHops)
		result[i] = derived
	}
	return result
}

// MapPositionalStreaming pairs input packet k with output item k in stream
// order, used as the fallback when materialization is impossible and the
// cardinality is not plain 1:1. Extra outputs beyond len(in) carry no
// ancestry; extra inputs beyond len(outputs) are simply dropped from the
// output stream.
func MapPositionalStreaming[TIn, TOut any](nodeID string, in []Packet[TIn], outputs []TOut, maxHops int) []Packet[TOut] {
	result := make([]Packet[TOut], len(outputs))
	for i, payload := range outputs {
		if i < len(in) {
			derived := Derive(in[i], payload)
			derived.AppendHop(nodeID, OutcomeEmitted, CardinalityOne, []int{i}, maxHops)
			result[i] = derived
		} else {
			pkt := NewPacket(payload, false)
			pkt.AppendHop(nodeID, OutcomeEmitted, CardinalityUnknown, nil, maxHops)
			result[i] = pkt
		}
	}
	return result
}

// MapCapAware fills buffers up to cap and chooses materializing when both
// sides fit, otherwise applies the configured overflow policy. Under
// OverflowDegrade, the first cap items on each side are materialized
// (preserving mapper-driven ancestry for that prefix) and anything beyond
// cap is paired positionally and appended, so the returned slice already
// holds the full, concatenated result.
func MapCapAware[TIn, TOut any](
	nodeID string,
	in []Packet[TIn],
	outputs []TOut,
	mapper CustomMapper,
	cap int,
	policy OverflowPolicy,
	maxHops int,
) (mapped []Packet[TOut], overflowed bool, err error) {
	if cap <= 0 || (len(in) <= cap && len(outputs) <= cap) {
		return MapMaterializing(nodeID, in, outputs, mapper, maxHops), false, nil
	}

	switch policy {
	case OverflowStrict:
		return nil, true, capOverflowError(nodeID, len(in), len(outputs), cap)
	case OverflowWarnContinue:
		cappedIn := truncate(in, cap)
		cappedOut := truncate(outputs, cap)
		return MapMaterializing(nodeID, cappedIn, cappedOut, mapper, maxHops), true, nil
	case OverflowDegrade:
		prefix := MapMaterializing(nodeID, truncate(in, cap), truncate(outputs, cap), mapper, maxHops)
		var remainderIn []Packet[TIn]
		if len(in) > cap {
			remainderIn = in[cap:]
		}
		var remainderOut []TOut
		if len(outputs) > cap {
			remainderOut = outputs[cap:]
		}
		remainder := MapPositionalStreaming(nodeID, remainderIn, remainderOut, maxHops)
		return append(prefix, remainder...), true, nil
	default:
		return MapMaterializing(nodeID, in, outputs, mapper, maxHops), true, nil
	}
}

func truncate[T any](s []T, n int) []T {
	if n >= len(s) {
		return s
	}
	return s[:n]
}
