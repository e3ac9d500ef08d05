package pipe

import (
	"context"
	"fmt"

	"github.com/npipeline/npipeline/errs"
)

// Widen adapts a Pipe[T] to Pipe[any], boxing each item behind the empty
// interface. The runner uses this at every node boundary so edges of
// different concrete item types can flow through one uniform execution
// plane without depending on reflection.
func Widen[T any](p Pipe[T]) Pipe[any] {
	return NewStreamPipe(func(ctx context.Context, out chan<- any) error {
		items, errCh := p.Consume(ctx)
		for item := range items {
			select {
			case out <- item:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return <-errCh
	}, 0)
}

// Narrow adapts a Pipe[any] back down to Pipe[T], asserting each item's
// concrete type as it passes through. Builder-time type checking (spec
// §4.3 rule 3) guarantees this assertion holds on any graph that passed
// validation; a mismatch here means a caller bypassed the builder; it
// surfaces as a NodeExecution error on the pipe rather than panicking.
func Narrow[T any](p Pipe[any]) Pipe[T] {
	return NewStreamPipe(func(ctx context.Context, out chan<- T) error {
		items, errCh := p.Consume(ctx)
		for raw := range items {
			item, ok := raw.(T)
			if !ok {
				return errs.New(errs.CodeNodeExecution, fmt.Sprintf("type assertion to %T failed for %T", item, raw))
			}
			select {
			case out <- item:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return <-errCh
	}, 0)
}
