package strategy

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/npipeline/npipeline/errs"
	"github.com/npipeline/npipeline/retry"

	"github.com/npipeline/npipeline/pipe"
)

// Parallel fans input out to DegreeOfParallelism workers and fans their
// results back into a single output pipe. Worker concurrency is bounded
// by golang.org/x/sync/semaphore and the group of in-flight workers is
// tracked with golang.org/x/sync/errgroup, the same pairing the rest of
// the corpus uses for bounded fan-out.
type Parallel[TIn, TOut any] struct {
	Options         ParallelOptions
	ContinueOnError bool
	NodeID          string
	DeadLetter      *errs.DeadLetterSink
	RetryPolicy     retry.Policy
}

type parallelSlot[TOut any] struct {
	idx     int
	val     TOut
	dropped bool
}

// Run implements Strategy.
func (p Parallel[TIn, TOut]) Run(ctx context.Context, in pipe.Pipe[TIn], item ItemFunc[TIn, TOut]) (pipe.Pipe[TOut], error) {
	opts := p.Options
	dop := opts.DegreeOfParallelism
	if dop < 1 {
		dop = 1
	}

	return pipe.NewStreamPipe(func(ctx context.Context, out chan<- TOut) error {
		items, inErrCh := in.Consume(ctx)
		sem := semaphore.NewWeighted(int64(dop))
		inputSem := semaphore.NewWeighted(int64(maxInt(1, opts.InputBound)))
		g, gctx := errgroup.WithContext(ctx)

		resultsCh := make(chan parallelSlot[TOut], maxInt(1, opts.OutputBound))

		idx := 0
		for v := range items {
			v := v
			i := idx
			idx++

			// inputSem (InputBound) and sem (DegreeOfParallelism) are both
			// held until the item's worker finishes, so the smaller of the two
			// caps how many items are in flight before the next read.
			if err := inputSem.Acquire(gctx, 1); err != nil {
				break
			}
			if err := sem.Acquire(gctx, 1); err != nil {
				inputSem.Release(1)
				break
			}
			g.Go(func() error {
				defer sem.Release(1)
				defer inputSem.Release(1)
				result, err := p.runItem(gctx, item, v)
				if err != nil {
					if p.ContinueOnError {
						if derr := p.dropItem(gctx, v, err); derr != nil {
							return derr
						}
						select {
						case resultsCh <- parallelSlot[TOut]{idx: i, dropped: true}:
						case <-gctx.Done():
						}
						return nil
					}
					return err
				}
				select {
				case resultsCh <- parallelSlot[TOut]{idx: i, val: result}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}

		go func() {
			_ = g.Wait()
			close(resultsCh)
		}()

		if opts.PreserveOrder {
			if err := emitInOrder(ctx, resultsCh, out); err != nil {
				_ = g.Wait()
				return err
			}
		} else {
			for s := range resultsCh {
				if s.dropped {
					continue
				}
				select {
				case out <- s.val:
				case <-ctx.Done():
					_ = g.Wait()
					return ctx.Err()
				}
			}
		}

		if err := g.Wait(); err != nil {
			return err
		}
		return <-inErrCh
	}, maxInt(1, opts.OutputBound)), nil
}

// runItem invokes item, optionally retrying up to Options.ItemRetries times
// using RetryPolicy's backoff. itemRetries and the Resilient strategy's
// maxNodeRestartAttempts are independent counters: this retry loop never
// triggers a node restart.
func (p Parallel[TIn, TOut]) runItem(ctx context.Context, item ItemFunc[TIn, TOut], v TIn) (TOut, error) {
	if p.Options.ItemRetries <= 0 {
		return item(ctx, v)
	}

	var result TOut
	err := retry.Run(ctx, p.RetryPolicy, p.Options.ItemRetries+1, func(ctx context.Context, _ int) error {
		r, err := item(ctx, v)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

func (p Parallel[TIn, TOut]) dropItem(ctx context.Context, v TIn, cause error) error {
	if p.DeadLetter == nil {
		return nil
	}
	return p.DeadLetter.Handle(ctx, p.NodeID, v, cause)
}

// emitInOrder reorders worker results back into input order. Results that
// arrive ahead of the next expected index are held in a map with no size
// limit (only the results channel is sized by OutputBound); a slow item
// stalls the emission of later, faster ones behind it.
func emitInOrder[TOut any](ctx context.Context, resultsCh <-chan parallelSlot[TOut], out chan<- TOut) error {
	pending := make(map[int]parallelSlot[TOut])
	next := 0
	for s := range resultsCh {
		pending[s.idx] = s
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if ready.dropped {
				continue
			}
			select {
			case out <- ready.val:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
