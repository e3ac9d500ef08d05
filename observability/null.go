package observability

import (
	"context"
	"time"
)

// NullObserver discards every lifecycle event. It is the default observer
// in runner.DefaultConfig.
type NullObserver struct{}

func (NullObserver) PipelineStarting(context.Context, string)            {}
func (NullObserver) PipelineFinished(context.Context, string, time.Duration) {}
func (NullObserver) PipelineFailed(context.Context, string, error)       {}
func (NullObserver) NodeExecuting(context.Context, string)               {}
func (NullObserver) NodeFinished(context.Context, string, time.Duration) {}
func (NullObserver) NodeFailed(context.Context, string, error)          {}
func (NullObserver) ItemProduced(context.Context, string)                {}
func (NullObserver) ItemDropped(context.Context, string, string)        {}
func (NullObserver) RetryScheduled(context.Context, string, int, time.Duration) {}
func (NullObserver) BreakerStateChanged(context.Context, string, string, string) {}

// NullMetrics discards every measurement.
type NullMetrics struct{}

func (NullMetrics) IncCounter(string, map[string]string, int64)          {}
func (NullMetrics) ObserveDuration(string, map[string]string, time.Duration) {}

// NullTracer starts spans that do nothing and finish instantly.
type NullTracer struct{}

func (NullTracer) StartSpan(ctx context.Context, _ string) (context.Context, func()) {
	return ctx, func() {}
}
