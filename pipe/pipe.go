// Package pipe implements a lazy, single-consumer, cancellable sequence
// abstraction. A Pipe[T] is consumed exactly once via Consume; a second
// consumption attempt yields ErrPipeAlreadyConsumed.
package pipe

import (
	"context"
	"sync/atomic"

	"github.com/npipeline/npipeline/errs"
)

// Pipe is a lazy, cancellable, single-consumer sequence of T.
type Pipe[T any] interface {
	// Consume returns a channel of items and a channel that carries the
	// single terminal error (nil on success), closed when the producer is
	// fully drained or cancel is observed. Calling Consume a second time
	// returns a closed items channel and ErrPipeAlreadyConsumed.
	Consume(ctx context.Context) (<-chan T, <-chan error)

	// IsMaterialized reports whether the pipe is backed by an in-memory,
	// replayable sequence (a ListPipe) as opposed to a one-shot producer.
	IsMaterialized() bool
}

// ErrPipeAlreadyConsumed is returned through the error channel when Consume
// is invoked more than once on the same pipe instance.
var ErrPipeAlreadyConsumed = errs.New(errs.CodePipeAlreadyConsumed, "pipe already consumed")

// consumeGuard is embedded by both pipe kinds to enforce at-most-one
// consumption without duplicating the atomic bookkeeping.
type consumeGuard struct {
	consumed atomic.Bool
}

// tryConsume returns true the first time it is called and false afterward.
func (g *consumeGuard) tryConsume() bool {
	return g.consumed.CompareAndSwap(false, true)
}

func alreadyConsumedChannels[T any]() (<-chan T, <-chan error) {
	items := make(chan T)
	close(items)
	errCh := make(chan error, 1)
	errCh <- ErrPipeAlreadyConsumed
	close(errCh)
	return items, errCh
}
