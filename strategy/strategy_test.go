package strategy

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npipeline/npipeline/breaker"
	"github.com/npipeline/npipeline/errs"
	"github.com/npipeline/npipeline/pipe"
	"github.com/npipeline/npipeline/retry"
)

func TestSequentialPreservesOrder(t *testing.T) {
	in := pipe.NewListPipe([]int{1, 2, 3})
	out, err := Sequential[int, int]{}.Run(context.Background(), in, func(_ context.Context, v int) (int, error) {
		return v * 2, nil
	})
	require.NoError(t, err)

	got, err := pipe.Collect(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 6}, got)
}

func TestParallelUnorderedYieldsPermutation(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	in := pipe.NewListPipe(items)
	opts, err := ApplyParallelDefaults(ParallelOptions{DegreeOfParallelism: 4})
	require.NoError(t, err)

	p := Parallel[int, int]{Options: opts}
	out, err := p.Run(context.Background(), in, func(_ context.Context, v int) (int, error) {
		return v * 10, nil
	})
	require.NoError(t, err)

	got, err := pipe.Collect(context.Background(), out)
	require.NoError(t, err)
	sort.Ints(got)
	assert.Equal(t, []int{10, 20, 30, 40, 50}, got)
}

func TestParallelPreserveOrderMatchesInput(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	in := pipe.NewListPipe(items)
	opts, err := ApplyParallelDefaults(ParallelOptions{DegreeOfParallelism: 4, PreserveOrder: true})
	require.NoError(t, err)

	p := Parallel[int, int]{Options: opts}
	out, err := p.Run(context.Background(), in, func(_ context.Context, v int) (int, error) {
		if v%2 == 0 {
			time.Sleep(2 * time.Millisecond)
		}
		return v, nil
	})
	require.NoError(t, err)

	got, err := pipe.Collect(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, items, got)
}

func TestResilientRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	item := func(_ context.Context, v int) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, fmt.Errorf("transient failure")
		}
		return v, nil
	}

	r := Resilient[int, int]{
		NodeID: "n1",
		Inner:  Sequential[int, int]{},
		Options: retry.Options{
			Policy: retry.Policy{
				Backoff:    retry.BackoffExponential,
				Jitter:     retry.JitterNone,
				Base:       10 * time.Millisecond,
				Multiplier: 2,
				Max:        time.Second,
			},
			MaxNodeRestartAttempts: 3,
			MaxMaterializedItems:   100,
		},
		ErrorHandler: errs.HandlerFunc(func(context.Context, string, error) errs.Decision {
			return errs.RestartNode
		}),
	}

	start := time.Now()
	out, err := r.Run(context.Background(), pipe.NewListPipe([]int{1}), item)
	require.NoError(t, err)
	elapsed := time.Since(start)

	got, err := pipe.Collect(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, got)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestResilientSkipsRestoreWithoutPriorSnapshot(t *testing.T) {
	seen := 0
	var restored interface{}

	attempts := 0
	item := func(_ context.Context, v int) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, fmt.Errorf("boom")
		}
		return v + seen, nil
	}

	r := Resilient[int, int]{
		NodeID: "n1",
		Inner:  Sequential[int, int]{},
		Options: retry.Options{
			Policy:                 retry.Policy{Backoff: retry.BackoffFixed, Base: time.Millisecond},
			MaxNodeRestartAttempts: 2,
			MaxMaterializedItems:   10,
		},
		ErrorHandler: errs.HandlerFunc(func(context.Context, string, error) errs.Decision {
			return errs.RestartNode
		}),
		Snapshot: func() (interface{}, error) {
			return seen, nil
		},
		RestoreState: func(v interface{}) error {
			restored = v
			return nil
		},
	}
	seen = 7

	out, err := r.Run(context.Background(), pipe.NewListPipe([]int{1}), item)
	require.NoError(t, err)

	got, err := pipe.Collect(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, []int{8}, got)
	assert.Nil(t, restored, "no snapshot existed before the first failure, so restore is never called")
}

func TestResilientCircuitBreakerOpensAfterThreshold(t *testing.T) {
	b := breaker.New(breaker.Options{
		ThresholdKind:    breaker.ThresholdConsecutiveFailures,
		FailureThreshold: 3,
		OpenDuration:     50 * time.Millisecond,
		HalfOpenMaxCalls: 1,
		SuccessThreshold: 1,
	})

	r := Resilient[int, int]{
		NodeID: "n1",
		Inner:  Sequential[int, int]{},
		Breaker: b,
		Options: retry.Options{
			Policy:                 retry.Policy{Backoff: retry.BackoffFixed, Base: time.Millisecond},
			MaxNodeRestartAttempts: 1,
			MaxMaterializedItems:   10,
		},
		ErrorHandler: errs.HandlerFunc(func(context.Context, string, error) errs.Decision {
			return errs.FailNode
		}),
	}

	alwaysFails := func(context.Context, int) (int, error) { return 0, fmt.Errorf("boom") }

	for i := 0; i < 3; i++ {
		_, err := r.Run(context.Background(), pipe.NewListPipe([]int{1}), alwaysFails)
		require.Error(t, err)
	}

	_, err := r.Run(context.Background(), pipe.NewListPipe([]int{1}), alwaysFails)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeCircuitBreakerOpen))
}
