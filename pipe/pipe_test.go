package pipe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain[T any](t *testing.T, items <-chan T, errCh <-chan error) ([]T, error) {
	t.Helper()
	out := make([]T, 0)
	for item := range items {
		out = append(out, item)
	}
	return out, <-errCh
}

func TestListPipeYieldsAllItemsInOrder(t *testing.T) {
	p := NewListPipe([]int{1, 2, 3})
	items, errCh := p.Consume(context.Background())
	got, err := drain(t, items, errCh)

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.True(t, p.IsMaterialized())
}

func TestListPipeSecondConsumeFails(t *testing.T) {
	p := NewListPipe([]int{1})
	_, _ = p.Consume(context.Background())

	items, errCh := p.Consume(context.Background())
	_, ok := <-items
	assert.False(t, ok)
	err := <-errCh
	assert.ErrorIs(t, err, ErrPipeAlreadyConsumed)
}

func TestListPipeCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewListPipe([]int{1, 2, 3, 4, 5})
	items, errCh := p.Consume(ctx)

	<-items
	cancel()

	for range items {
	}
	err := <-errCh
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStreamPipeProducerError(t *testing.T) {
	boom := errors.New("producer failed")
	p := NewStreamPipe(func(ctx context.Context, out chan<- int) error {
		out <- 1
		return boom
	}, 0)

	items, errCh := p.Consume(context.Background())
	got, err := drain(t, items, errCh)

	assert.Equal(t, []int{1}, got)
	assert.ErrorIs(t, err, boom)
}

func TestStreamPipeIsNotMaterialized(t *testing.T) {
	p := NewStreamPipe(func(ctx context.Context, out chan<- int) error { return nil }, 0)
	assert.False(t, p.IsMaterialized())
}

func TestCollectDrainsEntirePipe(t *testing.T) {
	p := NewListPipe([]string{"a", "b", "c"})
	got, err := Collect(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestCollectBoundedStopsEarly(t *testing.T) {
	p := NewStreamPipe(func(ctx context.Context, out chan<- int) error {
		for i := 0; i < 100; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- i:
			}
		}
		return nil
	}, 0)

	got, err := CollectBounded(context.Background(), p, 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestStreamPipeRespectsDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	p := NewStreamPipe(func(ctx context.Context, out chan<- int) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	}, 0)

	_, errCh := p.Consume(ctx)
	err := <-errCh
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
