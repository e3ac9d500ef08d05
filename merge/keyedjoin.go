package merge

import (
	"context"
	"time"

	"github.com/npipeline/npipeline/errs"
	"github.com/npipeline/npipeline/pipe"
)

// KeyedJoinOptions configures the buffered inner join.
type KeyedJoinOptions struct {
	// JoinTimeout bounds how long a partially matched key is held before
	// being dropped; expired keys are removed when the next item arrives.
	// Zero means unbounded.
	JoinTimeout time.Duration
	// BufferCapacity bounds the number of distinct pending keys held across
	// all inputs before MergeOverflow is raised. Zero means unbounded.
	BufferCapacity int
}

// KeySelector extracts the join key from an item.
type KeySelector[T any, K comparable] func(item T) K

// CombineKeyedJoin performs a buffered inner join across inputs keyed by
// selector, emitting a joined tuple (one slot per input) once every input
// has produced a matching key.
func CombineKeyedJoin[T any, K comparable](
	ctx context.Context,
	inputs []pipe.Pipe[T],
	selector KeySelector[T, K],
	opts KeyedJoinOptions,
) (pipe.Pipe[[]T], error) {
	if len(inputs) < 2 {
		return nil, errs.New(errs.CodeValidation, "KeyedJoin requires at least two inputs")
	}

	return pipe.NewStreamPipe(func(ctx context.Context, out chan<- []T) error {
		n := len(inputs)
		pending := make(map[K][]*T) // key -> slots, nil until filled
		pendingSince := make(map[K]time.Time)

		type arrival struct {
			lane int
			item T
			key  K
			ok   bool
			err  error
		}
		arrivals := make(chan arrival)

		for i, in := range inputs {
			go func(i int, in pipe.Pipe[T]) {
				items, errCh := in.Consume(ctx)
				for item := range items {
					select {
					case arrivals <- arrival{lane: i, item: item, key: selector(item), ok: true}:
					case <-ctx.Done():
						return
					}
				}
				if err := <-errCh; err != nil {
					select {
					case arrivals <- arrival{lane: i, err: err}:
					case <-ctx.Done():
					}
					return
				}
				select {
				case arrivals <- arrival{lane: i, ok: false}:
				case <-ctx.Done():
				}
			}(i, in)
		}

		finished := make(map[int]bool)
		for len(finished) < n {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case a := <-arrivals:
				if a.err != nil {
					return a.err
				}
				if !a.ok {
					finished[a.lane] = true
					continue
				}

				if opts.JoinTimeout > 0 {
					now := time.Now()
					for k, since := range pendingSince {
						if now.Sub(since) >= opts.JoinTimeout {
							delete(pending, k)
							delete(pendingSince, k)
						}
					}
				}
				slots, exists := pending[a.key]
				if !exists {
					if opts.BufferCapacity > 0 && len(pending) >= opts.BufferCapacity {
						return errs.New(errs.CodeMergeOverflow, "keyed join buffer at capacity").
							WithContext(map[string]interface{}{"capacity": opts.BufferCapacity})
					}
					slots = make([]*T, n)
					pending[a.key] = slots
					pendingSince[a.key] = time.Now()
				}
				item := a.item
				slots[a.lane] = &item

				if allFilled(slots) {
					tuple := make([]T, n)
					for i, s := range slots {
						tuple[i] = *s
					}
					delete(pending, a.key)
					delete(pendingSince, a.key)
					select {
					case out <- tuple:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
		}
		return nil
	}, 0), nil
}

func allFilled[T any](slots []*T) bool {
	for _, s := range slots {
		if s == nil {
			return false
		}
	}
	return true
}
