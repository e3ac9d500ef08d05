package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npipeline/npipeline/builder"
	"github.com/npipeline/npipeline/graph"
	"github.com/npipeline/npipeline/node"
	"github.com/npipeline/npipeline/pipe"
)

type intSource struct{ values []int }

func (s intSource) Initialize(context.Context) (pipe.Pipe[int], error) {
	return pipe.NewListPipe(s.values), nil
}
func (intSource) Close(context.Context) error { return nil }

type doubler struct{ node.NoopCloser }

func (doubler) TransformItem(_ context.Context, v int) (int, error) { return v * 2, nil }

type recordingSink struct {
	mu  *sync.Mutex
	got *[]int
}

func (s recordingSink) Consume(ctx context.Context, in pipe.Pipe[int]) error {
	items, errCh := in.Consume(ctx)
	for v := range items {
		s.mu.Lock()
		*s.got = append(*s.got, v)
		s.mu.Unlock()
	}
	return <-errCh
}
func (recordingSink) Close(context.Context) error { return nil }

func TestRunnerExecutesLinearPipeline(t *testing.T) {
	got := &[]int{}
	mu := &sync.Mutex{}
	b := builder.New(builder.DefaultOptions())

	src, err := builder.AddSource[int](b, "src", func(context.Context) (node.Source[int], error) {
		return intSource{values: []int{1, 2, 3}}, nil
	})
	require.NoError(t, err)

	xform, err := builder.AddItemTransform[int, int](b, "double", func(context.Context) (node.ItemTransform[int, int], error) {
		return doubler{}, nil
	})
	require.NoError(t, err)

	sink, err := builder.AddSink[int](b, "sink", func(context.Context) (node.Sink[int], error) {
		return recordingSink{mu: mu, got: got}, nil
	})
	require.NoError(t, err)

	b.Connect(src, xform)
	b.Connect(xform, sink)

	pipeline, result, err := b.Build()
	require.NoError(t, err)
	assert.False(t, result.HasErrors())

	r := New(Config{})
	execResult, err := r.Run(context.Background(), pipeline)
	require.NoError(t, err)
	assert.True(t, execResult.Success)
	assert.Equal(t, []int{2, 4, 6}, *got)
}

type failNTimesTransform struct {
	node.NoopCloser
	mu      sync.Mutex
	calls   int
	failFor int
}

func (f *failNTimesTransform) TransformItem(_ context.Context, v int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failFor {
		return 0, fmt.Errorf("transient failure %d", f.calls)
	}
	return v, nil
}

func TestRunnerResilientNodeRestartsThenSucceeds(t *testing.T) {
	got := &[]int{}
	mu := &sync.Mutex{}
	b := builder.New(builder.DefaultOptions())
	inner := &failNTimesTransform{failFor: 2}

	src, err := builder.AddSource[int](b, "src", func(context.Context) (node.Source[int], error) {
		return intSource{values: []int{5}}, nil
	})
	require.NoError(t, err)

	xform, err := builder.AddItemTransform[int, int](b, "flaky", func(context.Context) (node.ItemTransform[int, int], error) {
		return inner, nil
	}, builder.WithStrategy(graph.StrategyResilient))
	require.NoError(t, err)

	sink, err := builder.AddSink[int](b, "sink", func(context.Context) (node.Sink[int], error) {
		return recordingSink{mu: mu, got: got}, nil
	})
	require.NoError(t, err)

	b.Connect(src, xform)
	b.Connect(xform, sink)

	pipeline, _, err := b.Build()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.RetryOptions.Policy.Base = 1
	r := New(cfg)
	execResult, err := r.Run(context.Background(), pipeline)
	require.NoError(t, err)
	assert.True(t, execResult.Success)
	assert.Equal(t, []int{5}, *got)
}

type evensAndOdds struct{ node.NoopCloser }

func (evensAndOdds) TransformItem(_ context.Context, v int) (int, error) { return v, nil }

func TestRunnerFanOutSplitsToBothConsumers(t *testing.T) {
	gotA := &[]int{}
	gotB := &[]int{}
	muA, muB := &sync.Mutex{}, &sync.Mutex{}
	b := builder.New(builder.DefaultOptions())

	src, err := builder.AddSource[int](b, "src", func(context.Context) (node.Source[int], error) {
		return intSource{values: []int{1, 2, 3}}, nil
	})
	require.NoError(t, err)

	passA, err := builder.AddItemTransform[int, int](b, "passA", func(context.Context) (node.ItemTransform[int, int], error) {
		return evensAndOdds{}, nil
	})
	require.NoError(t, err)
	passB, err := builder.AddItemTransform[int, int](b, "passB", func(context.Context) (node.ItemTransform[int, int], error) {
		return evensAndOdds{}, nil
	})
	require.NoError(t, err)

	sinkA, err := builder.AddSink[int](b, "sinkA", func(context.Context) (node.Sink[int], error) {
		return recordingSink{mu: muA, got: gotA}, nil
	})
	require.NoError(t, err)
	sinkB, err := builder.AddSink[int](b, "sinkB", func(context.Context) (node.Sink[int], error) {
		return recordingSink{mu: muB, got: gotB}, nil
	})
	require.NoError(t, err)

	b.Connect(src, passA)
	b.Connect(src, passB)
	b.Connect(passA, sinkA)
	b.Connect(passB, sinkB)

	pipeline, result, err := b.Build()
	require.NoError(t, err)
	require.False(t, result.HasErrors())

	r := New(Config{})
	execResult, err := r.Run(context.Background(), pipeline)
	require.NoError(t, err)
	assert.True(t, execResult.Success)

	sort.Ints(*gotA)
	sort.Ints(*gotB)
	assert.Equal(t, []int{1, 2, 3}, *gotA)
	assert.Equal(t, []int{1, 2, 3}, *gotB)
}
