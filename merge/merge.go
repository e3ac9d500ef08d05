// Package merge combines multiple inbound pipes for a node into one,
// according to its configured Type: Interleave, Concatenate, KeyedJoin, or
// Custom.
package merge

import (
	"context"

	"github.com/npipeline/npipeline/errs"
	"github.com/npipeline/npipeline/pipe"
)

// Type selects the merge algorithm for a node with ≥2 inbound edges.
type Type string

const (
	TypeInterleave  Type = "Interleave"
	TypeConcatenate Type = "Concatenate"
	TypeKeyedJoin   Type = "KeyedJoin"
	TypeCustom      Type = "Custom"
)

// Service combines inputs according to Type. Custom delegates to the
// node's own node.CustomMerge implementation, supplied by the caller.
type Service[T any] struct{}

// NewService builds a merge Service for item type T.
func NewService[T any]() *Service[T] { return &Service[T]{} }

// Combine merges inputs into a single pipe per typ. Custom is not handled
// here — callers with a node.CustomMerge should invoke it directly and
// skip the Service entirely.
func (s *Service[T]) Combine(ctx context.Context, typ Type, inputs []pipe.Pipe[T], opts KeyedJoinOptions) (pipe.Pipe[T], error) {
	switch len(inputs) {
	case 0:
		return pipe.NewListPipe[T](nil), nil
	case 1:
		return inputs[0], nil
	}

	switch typ {
	case TypeInterleave, "":
		return interleave(ctx, inputs), nil
	case TypeConcatenate:
		return concatenate(ctx, inputs), nil
	case TypeKeyedJoin:
		return nil, errs.New(errs.CodeValidation, "KeyedJoin requires typed keys; use CombineKeyedJoin")
	default:
		return nil, errs.New(errs.CodeValidation, "merge type requires a CustomMerge node implementation")
	}
}

// interleave fans each input in on its own goroutine: whichever input has
// an item ready first is emitted first, and since each lane's goroutine
// sends sequentially from its own source channel, that input's own order
// is preserved even though the cross-input order is not.
func interleave[T any](ctx context.Context, inputs []pipe.Pipe[T]) pipe.Pipe[T] {
	return pipe.NewStreamPipe(func(ctx context.Context, out chan<- T) error {
		errCh := make(chan error, len(inputs))
		done := make(chan struct{}, len(inputs))

		for _, in := range inputs {
			go func(in pipe.Pipe[T]) {
				items, laneErrs := in.Consume(ctx)
				for item := range items {
					select {
					case out <- item:
					case <-ctx.Done():
						done <- struct{}{}
						return
					}
				}
				if err := <-laneErrs; err != nil {
					errCh <- err
				}
				done <- struct{}{}
			}(in)
		}

		for range inputs {
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		close(errCh)
		for err := range errCh {
			if err != nil {
				return err
			}
		}
		return ctx.Err()
	}, len(inputs))
}

// concatenate fully drains input i before starting input i+1, in the
// configured edge order.
func concatenate[T any](ctx context.Context, inputs []pipe.Pipe[T]) pipe.Pipe[T] {
	return pipe.NewStreamPipe(func(ctx context.Context, out chan<- T) error {
		for _, in := range inputs {
			items, errCh := in.Consume(ctx)
			for item := range items {
				select {
				case out <- item:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if err := <-errCh; err != nil {
				return err
			}
		}
		return nil
	}, 0)
}
