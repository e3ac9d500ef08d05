package retry

import (
	"context"
	"time"

	cenkalti "github.com/cenkalti/backoff/v4"
)

// cenkaltiAdapter satisfies backoff.BackOff by delegating NextBackOff to a
// Delayer, so the retry loop itself — including context cancellation and
// the "permanent error" short-circuit — is driven by cenkalti/backoff/v4
// rather than a hand-rolled for-loop.
type cenkaltiAdapter struct {
	delayer Delayer
	attempt int
}

func (a *cenkaltiAdapter) NextBackOff() time.Duration {
	d := a.delayer.Delay(a.attempt)
	a.attempt++
	return d
}

func (a *cenkaltiAdapter) Reset() {
	a.attempt = 0
}

// Run executes op, retrying according to p's policy until op succeeds,
// maxAttempts is exhausted (0 means unbounded), or ctx is cancelled.
// Cancellation errors are returned unwrapped, never retried.
func Run(ctx context.Context, p Policy, maxAttempts int, op func(ctx context.Context, attempt int) error) error {
	delayer := NewDelayer(p)
	adapter := &cenkaltiAdapter{delayer: delayer}

	attempt := 0
	wrapped := func() error {
		err := op(ctx, attempt)
		attempt++
		if err != nil && ctx.Err() != nil {
			return cenkalti.Permanent(ctx.Err())
		}
		return err
	}

	var policy cenkalti.BackOff = adapter
	if maxAttempts > 0 {
		policy = cenkalti.WithMaxRetries(adapter, uint64(maxAttempts-1))
	}
	policy = cenkalti.WithContext(policy, ctx)

	return cenkalti.Retry(wrapped, policy)
}
