// Package node defines the capability contracts a graph vertex implements:
// Source, Transform, Sink, and CustomMerge. Each is a narrow interface
// rather than a class hierarchy, selected by the node's tagged Kind
// instead of a virtual base class.
package node

import (
	"context"

	"github.com/npipeline/npipeline/pipe"
)

// Kind tags which capability set a node implements.
type Kind string

const (
	KindSource      Kind = "source"
	KindTransform   Kind = "transform"
	KindSink        Kind = "sink"
	KindCustomMerge Kind = "custom_merge"
)

// Source produces items lazily; it owns no inbound edges.
type Source[T any] interface {
	// Initialize builds the output pipe for a run. It must be safe to call
	// again after a restart.
	Initialize(ctx context.Context) (pipe.Pipe[T], error)

	// Close releases any resources acquired by Initialize. Called at most
	// once per instance, in reverse-topological disposal order.
	Close(ctx context.Context) error
}

// ItemTransform processes one item at a time; it is the common case, driven
// by the Sequential and Parallel strategies.
type ItemTransform[TIn, TOut any] interface {
	TransformItem(ctx context.Context, item TIn) (TOut, error)
}

// StreamTransform processes a whole input pipe at once, for nodes that need
// cross-item state (windowing, ordering, dedup) that per-item calls cannot
// express.
type StreamTransform[TIn, TOut any] interface {
	TransformStream(ctx context.Context, in pipe.Pipe[TIn]) (pipe.Pipe[TOut], error)
}

// Sink consumes a pipe to completion; sinks are terminal and produce no
// output pipe.
type Sink[TIn any] interface {
	Consume(ctx context.Context, in pipe.Pipe[TIn]) error
	Close(ctx context.Context) error
}

// CustomMerge combines multiple inbound pipes into one, used when a node's
// merge policy is Type Custom.
type CustomMerge[TIn any] interface {
	Merge(ctx context.Context, inputs []pipe.Pipe[TIn]) (pipe.Pipe[TIn], error)
}

// Closer is implemented by any node instance that holds resources needing
// release at end-of-run, regardless of its capability kind.
type Closer interface {
	Close(ctx context.Context) error
}

// Snapshotable is implemented by a node instance whose internal state is
// worth preserving across a Resilient restart. Snapshot is called after
// each item/stream attempt succeeds; Restore is handed that value back
// before the next restart attempt runs. A node that doesn't implement it
// simply restarts cold, with only its input replayed.
type Snapshotable interface {
	Snapshot() (interface{}, error)
	Restore(interface{}) error
}

// NoopCloser can be embedded by node implementations with nothing to
// release.
type NoopCloser struct{}

// Close is a no-op.
func (NoopCloser) Close(context.Context) error { return nil }
