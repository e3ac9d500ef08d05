package errs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeadLetterSinkRecordsEntries(t *testing.T) {
	sink := NewDeadLetterSink(2)
	ctx := context.Background()

	require.NoError(t, sink.Handle(ctx, "n1", "item-1", errors.New("boom")))
	assert.Equal(t, 1, sink.Len())

	entries := sink.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "n1", entries[0].NodeID)
	assert.Equal(t, "item-1", entries[0].Item)
}

func TestDeadLetterSinkOverflow(t *testing.T) {
	sink := NewDeadLetterSink(1)
	ctx := context.Background()

	require.NoError(t, sink.Handle(ctx, "n1", "a", errors.New("first")))
	err := sink.Handle(ctx, "n1", "b", errors.New("second"))

	require.Error(t, err)
	assert.True(t, Is(err, CodeDeadLetterFailure))
	assert.Equal(t, 1, sink.Len())
}

func TestDeadLetterSinkDefaultCapacity(t *testing.T) {
	sink := NewDeadLetterSink(0)
	assert.Equal(t, 1000, sink.capacity)
}
