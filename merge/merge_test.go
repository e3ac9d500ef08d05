package merge

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npipeline/npipeline/pipe"
)

func TestConcatenatePreservesEdgeOrder(t *testing.T) {
	a := pipe.NewListPipe([]int{1, 2})
	b := pipe.NewListPipe([]int{3, 4})

	svc := NewService[int]()
	out, err := svc.Combine(context.Background(), TypeConcatenate, []pipe.Pipe[int]{a, b}, KeyedJoinOptions{})
	require.NoError(t, err)

	got, err := pipe.Collect(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, got)
}

func TestInterleavePreservesPerInputOrder(t *testing.T) {
	a := pipe.NewListPipe([]int{1, 2, 3})
	b := pipe.NewListPipe([]int{10, 20, 30})

	svc := NewService[int]()
	out, err := svc.Combine(context.Background(), TypeInterleave, []pipe.Pipe[int]{a, b}, KeyedJoinOptions{})
	require.NoError(t, err)

	got, err := pipe.Collect(context.Background(), out)
	require.NoError(t, err)
	require.Len(t, got, 6)

	var fromA, fromB []int
	for _, v := range got {
		if v < 10 {
			fromA = append(fromA, v)
		} else {
			fromB = append(fromB, v)
		}
	}
	assert.Equal(t, []int{1, 2, 3}, fromA)
	assert.Equal(t, []int{10, 20, 30}, fromB)
}

func TestCombineSingleInputPassesThrough(t *testing.T) {
	a := pipe.NewListPipe([]int{1, 2})
	svc := NewService[int]()
	out, err := svc.Combine(context.Background(), TypeInterleave, []pipe.Pipe[int]{a}, KeyedJoinOptions{})
	require.NoError(t, err)
	assert.Same(t, a, out)
}

type joinRow struct {
	Key   int
	Value string
}

func TestKeyedJoinEmitsMatchedTuples(t *testing.T) {
	a := pipe.NewListPipe([]joinRow{{1, "a"}, {2, "b"}})
	b := pipe.NewListPipe([]joinRow{{1, "x"}, {2, "y"}})

	out, err := CombineKeyedJoin(context.Background(), []pipe.Pipe[joinRow]{a, b}, func(r joinRow) int { return r.Key }, KeyedJoinOptions{})
	require.NoError(t, err)

	got, err := pipe.Collect(context.Background(), out)
	require.NoError(t, err)
	require.Len(t, got, 2)

	sort.Slice(got, func(i, j int) bool { return got[i][0].Key < got[j][0].Key })
	assert.Equal(t, joinRow{1, "a"}, got[0][0])
	assert.Equal(t, joinRow{1, "x"}, got[0][1])
	assert.Equal(t, joinRow{2, "b"}, got[1][0])
	assert.Equal(t, joinRow{2, "y"}, got[1][1])
}

func TestKeyedJoinOverflowReportsMergeOverflow(t *testing.T) {
	a := pipe.NewListPipe([]joinRow{{1, "a"}, {2, "b"}})
	b := pipe.NewListPipe([]joinRow{{3, "x"}})

	out, err := CombineKeyedJoin(context.Background(), []pipe.Pipe[joinRow]{a, b}, func(r joinRow) int { return r.Key }, KeyedJoinOptions{BufferCapacity: 1})
	require.NoError(t, err)

	_, err = pipe.Collect(context.Background(), out)
	require.Error(t, err)
}
