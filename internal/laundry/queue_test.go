package laundry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueEnqueueIsIdempotent(t *testing.T) {
	q := NewQueue()

	pos, total, err := q.Enqueue("a")
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
	assert.Equal(t, 1, total)

	pos, total, err = q.Enqueue("b")
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
	assert.Equal(t, 2, total)

	pos, total, err = q.Enqueue("a")
	require.ErrorIs(t, err, ErrAlreadyQueued)
	assert.Equal(t, 1, pos)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, q.Len())
}

func TestQueueDequeueThenEnqueueGoesToTail(t *testing.T) {
	q := NewQueue()
	for _, id := range []string{"a", "b", "c"} {
		_, _, err := q.Enqueue(id)
		require.NoError(t, err)
	}

	require.NoError(t, q.Dequeue("a"))
	pos, total, err := q.Enqueue("a")
	require.NoError(t, err)
	assert.Equal(t, 3, pos)
	assert.Equal(t, 3, total)
	assert.Equal(t, []QueueEntry{
		{Position: 1, Identity: "b"},
		{Position: 2, Identity: "c"},
		{Position: 3, Identity: "a"},
	}, q.Snapshot())
}

func TestQueueDequeueUnknown(t *testing.T) {
	q := NewQueue()
	assert.ErrorIs(t, q.Dequeue("ghost"), ErrNotQueued)
}

func TestQueuePopFrontIsFIFO(t *testing.T) {
	q := NewQueue()
	_, ok := q.PopFront()
	assert.False(t, ok)

	for _, id := range []string{"a", "b"} {
		_, _, err := q.Enqueue(id)
		require.NoError(t, err)
	}
	head, ok := q.PopFront()
	require.True(t, ok)
	assert.Equal(t, "a", head)
	assert.Equal(t, 1, q.Position("b"))
	assert.Equal(t, 0, q.Position("a"))
}
