package pipe

import "context"

// Collect drains p fully and returns its items, honoring ctx cancellation
// and propagating any terminal error from the producer. It is used wherever
// a pipe must be fully materialized: lineage's materializing strategy, and
// the Resilient strategy's bounded input replay.
func Collect[T any](ctx context.Context, p Pipe[T]) ([]T, error) {
	items, errCh := p.Consume(ctx)
	out := make([]T, 0)
	for item := range items {
		out = append(out, item)
	}
	if err := <-errCh; err != nil {
		return out, err
	}
	return out, nil
}

// CollectBounded drains p like Collect but stops (without error) once max
// items have been read, leaving the producer to be cancelled by the caller;
// it then returns without waiting for the producer's terminal error.
// max <= 0 means unbounded.
func CollectBounded[T any](ctx context.Context, p Pipe[T], max int) ([]T, error) {
	if max <= 0 {
		return Collect(ctx, p)
	}
	items, errCh := p.Consume(ctx)
	out := make([]T, 0, max)
	for item := range items {
		out = append(out, item)
		if len(out) >= max {
			return out, nil
		}
	}
	if err := <-errCh; err != nil {
		return out, err
	}
	return out, nil
}
