package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedBackoffIsConstant(t *testing.T) {
	d := NewDelayer(Policy{Backoff: BackoffFixed, Base: 50 * time.Millisecond})
	assert.Equal(t, 50*time.Millisecond, d.Delay(0))
	assert.Equal(t, 50*time.Millisecond, d.Delay(5))
}

func TestLinearBackoffGrowsAndSaturates(t *testing.T) {
	d := NewDelayer(Policy{
		Backoff: BackoffLinear,
		Base:    10 * time.Millisecond,
		Step:    10 * time.Millisecond,
		Max:     35 * time.Millisecond,
	})
	assert.Equal(t, 10*time.Millisecond, d.Delay(0))
	assert.Equal(t, 20*time.Millisecond, d.Delay(1))
	assert.Equal(t, 30*time.Millisecond, d.Delay(2))
	assert.Equal(t, 35*time.Millisecond, d.Delay(3)) // saturates at Max
}

func TestExponentialBackoffMonotonicUpToMax(t *testing.T) {
	p := Policy{Backoff: BackoffExponential, Base: 10 * time.Millisecond, Multiplier: 2, Max: 1 * time.Second}
	d := NewDelayer(p)

	prev := time.Duration(0)
	for n := 0; n < 20; n++ {
		cur := d.Delay(n)
		assert.GreaterOrEqual(t, cur, prev)
		assert.LessOrEqual(t, cur, p.Max)
		prev = cur
	}
}

func TestNegativeAttemptYieldsZeroDelay(t *testing.T) {
	d := NewDelayer(Policy{Backoff: BackoffExponential, Base: 10 * time.Millisecond, Multiplier: 2, Max: time.Second})
	assert.Equal(t, time.Duration(0), d.Delay(-1))
}

func TestFullJitterStaysWithinBound(t *testing.T) {
	p := Policy{Backoff: BackoffFixed, Jitter: JitterFull, Base: 100 * time.Millisecond}
	d := NewDelayer(p)
	for i := 0; i < 50; i++ {
		got := d.Delay(0)
		assert.GreaterOrEqual(t, got, time.Duration(0))
		assert.LessOrEqual(t, got, 100*time.Millisecond)
	}
}

func TestDecorrelatedJitterStaysWithinMax(t *testing.T) {
	p := Policy{Backoff: BackoffExponential, Jitter: JitterDecorrelated, Base: 10 * time.Millisecond, Multiplier: 3, Max: 200 * time.Millisecond}
	d := NewDelayer(p)
	for i := 0; i < 50; i++ {
		got := d.Delay(i)
		assert.GreaterOrEqual(t, got, time.Duration(0))
		assert.LessOrEqual(t, got, p.Max)
	}
}

func TestRunRetriesUntilSuccess(t *testing.T) {
	p := Policy{Backoff: BackoffFixed, Base: time.Millisecond}
	attempts := 0
	err := Run(context.Background(), p, 5, func(ctx context.Context, attempt int) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRunRespectsMaxAttempts(t *testing.T) {
	p := Policy{Backoff: BackoffFixed, Base: time.Millisecond}
	attempts := 0
	err := Run(context.Background(), p, 3, func(ctx context.Context, attempt int) error {
		attempts++
		return errors.New("always fails")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRunStopsOnCancellation(t *testing.T) {
	p := Policy{Backoff: BackoffFixed, Base: 50 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := Run(ctx, p, 0, func(ctx context.Context, attempt int) error {
		attempts++
		if attempts == 1 {
			cancel()
		}
		return errors.New("keeps failing")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptionsValidateRejectsBadPolicy(t *testing.T) {
	bad := Options{Policy: Policy{Backoff: BackoffFixed, Base: 0}}
	assert.Error(t, bad.Validate())
}

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	merged, err := ApplyDefaults(Options{MaxNodeRestartAttempts: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, merged.MaxNodeRestartAttempts)
	assert.Equal(t, DefaultOptions().Policy.Base, merged.Policy.Base)
}
