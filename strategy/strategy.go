// Package strategy implements the per-node execution strategies: Sequential,
// Parallel, and Resilient. Each wraps a node's item-processing function
// over a combined input pipe into an output pipe, independent of how the
// inbound pipe was merged (package merge) or how its items are boxed for
// the runner's type-erased plane (package pipe's Widen/Narrow).
package strategy

import (
	"context"

	"github.com/npipeline/npipeline/pipe"
)

// ItemFunc processes a single input item into a single output item, the
// shape driven directly by Sequential and Parallel.
type ItemFunc[TIn, TOut any] func(ctx context.Context, item TIn) (TOut, error)

// Strategy wraps a node's execution over in into an output pipe.
type Strategy[TIn, TOut any] interface {
	Run(ctx context.Context, in pipe.Pipe[TIn], item ItemFunc[TIn, TOut]) (pipe.Pipe[TOut], error)
}

// Sequential is a single-consumer, single-producer strategy: it iterates in
// and calls item for each element, emitting results in input order.
// Backpressure is inherent because consumption of the output pipe drives
// the pull through in.
type Sequential[TIn, TOut any] struct{}

// Run implements Strategy.
func (Sequential[TIn, TOut]) Run(ctx context.Context, in pipe.Pipe[TIn], item ItemFunc[TIn, TOut]) (pipe.Pipe[TOut], error) {
	return pipe.NewStreamPipe(func(ctx context.Context, out chan<- TOut) error {
		items, errCh := in.Consume(ctx)
		for v := range items {
			result, err := item(ctx, v)
			if err != nil {
				return err
			}
			select {
			case out <- result:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return <-errCh
	}, 0), nil
}
