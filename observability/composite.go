package observability

import (
	"context"
	"time"

	"github.com/npipeline/npipeline/internal/logging"
)

// Composite fans a lifecycle event out to every registered Observer,
// isolating each one: a panicking observer never affects the others, and
// none can cancel the run. A failing observer is logged at Warn and
// skipped; delivery continues to the rest. Delivery is synchronous and in
// registration order, so a slow observer delays the ones after it.
type Composite struct {
	observers []Observer
	logger    logging.Logger
}

// NewComposite builds a Composite over observers, skipping nil entries.
func NewComposite(logger logging.Logger, observers ...Observer) *Composite {
	if logger == nil {
		logger = logging.NewNoOp()
	}
	filtered := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	return &Composite{observers: filtered, logger: logger}
}

func (c *Composite) each(ctx context.Context, name string, fn func(Observer)) {
	for _, o := range c.observers {
		c.safeCall(ctx, name, o, fn)
	}
}

func (c *Composite) safeCall(ctx context.Context, name string, o Observer, fn func(Observer)) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn(ctx, "observer panicked", "hook", name, "recovered", r)
		}
	}()
	fn(o)
}

func (c *Composite) PipelineStarting(ctx context.Context, runID string) {
	c.each(ctx, "PipelineStarting", func(o Observer) { o.PipelineStarting(ctx, runID) })
}

func (c *Composite) PipelineFinished(ctx context.Context, runID string, d time.Duration) {
	c.each(ctx, "PipelineFinished", func(o Observer) { o.PipelineFinished(ctx, runID, d) })
}

func (c *Composite) PipelineFailed(ctx context.Context, runID string, err error) {
	c.each(ctx, "PipelineFailed", func(o Observer) { o.PipelineFailed(ctx, runID, err) })
}

func (c *Composite) NodeExecuting(ctx context.Context, nodeID string) {
	c.each(ctx, "NodeExecuting", func(o Observer) { o.NodeExecuting(ctx, nodeID) })
}

func (c *Composite) NodeFinished(ctx context.Context, nodeID string, d time.Duration) {
	c.each(ctx, "NodeFinished", func(o Observer) { o.NodeFinished(ctx, nodeID, d) })
}

func (c *Composite) NodeFailed(ctx context.Context, nodeID string, err error) {
	c.each(ctx, "NodeFailed", func(o Observer) { o.NodeFailed(ctx, nodeID, err) })
}

func (c *Composite) ItemProduced(ctx context.Context, nodeID string) {
	c.each(ctx, "ItemProduced", func(o Observer) { o.ItemProduced(ctx, nodeID) })
}

func (c *Composite) ItemDropped(ctx context.Context, nodeID string, reason string) {
	c.each(ctx, "ItemDropped", func(o Observer) { o.ItemDropped(ctx, nodeID, reason) })
}

func (c *Composite) RetryScheduled(ctx context.Context, nodeID string, attempt int, delay time.Duration) {
	c.each(ctx, "RetryScheduled", func(o Observer) { o.RetryScheduled(ctx, nodeID, attempt, delay) })
}

func (c *Composite) BreakerStateChanged(ctx context.Context, nodeID string, from, to string) {
	c.each(ctx, "BreakerStateChanged", func(o Observer) { o.BreakerStateChanged(ctx, nodeID, from, to) })
}
