// Package observability defines the execution observer: a composite
// lifecycle-event sink plus the null objects used when a run is built
// without an explicit observer, metric sink, or tracer. A run's observer is
// a synchronous fan-out to subscribers; a subscriber's failure or panic
// never affects the caller or any other subscriber, and no observer can
// cancel the run.
package observability

import (
	"context"
	"time"
)

// Observer receives lifecycle events emitted by the runner and execution
// strategies.
type Observer interface {
	PipelineStarting(ctx context.Context, runID string)
	PipelineFinished(ctx context.Context, runID string, duration time.Duration)
	PipelineFailed(ctx context.Context, runID string, err error)

	NodeExecuting(ctx context.Context, nodeID string)
	NodeFinished(ctx context.Context, nodeID string, duration time.Duration)
	NodeFailed(ctx context.Context, nodeID string, err error)

	ItemProduced(ctx context.Context, nodeID string)
	ItemDropped(ctx context.Context, nodeID string, reason string)
	RetryScheduled(ctx context.Context, nodeID string, attempt int, delay time.Duration)

	BreakerStateChanged(ctx context.Context, nodeID string, from, to string)
}

// MetricSink receives numeric measurements. A null object is used when no
// metrics backend is configured.
type MetricSink interface {
	IncCounter(name string, tags map[string]string, delta int64)
	ObserveDuration(name string, tags map[string]string, d time.Duration)
}

// Tracer starts spans around units of work. A null object is used when no
// tracing backend is configured.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, func())
}
