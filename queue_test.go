package lampnet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameQueue_FIFO(t *testing.T) {
	t.Parallel()

	q := NewFrameQueue()
	for i := range 5 {
		q.Push(Frame{Seq: byte(i)})
	}
	assert.Equal(t, 5, q.Len())

	for i := range 5 {
		f, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, byte(i), f.Seq)
	}
	_, ok := q.TryPop()
	assert.False(t, ok)
}

func TestFrameQueue_PopTimesOut(t *testing.T) {
	t.Parallel()

	q := NewFrameQueue()
	start := time.Now()
	_, ok := q.Pop(context.Background(), 20*time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestFrameQueue_PopWakesOnPush(t *testing.T) {
	t.Parallel()

	q := NewFrameQueue()
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Push(Frame{Tag: TagPollAck})
	}()

	f, ok := q.Pop(context.Background(), time.Second)
	require.True(t, ok)
	assert.Equal(t, TagPollAck, f.Tag)
}

func TestFrameQueue_PopStopsOnCancel(t *testing.T) {
	t.Parallel()

	q := NewFrameQueue()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, ok := q.Pop(ctx, 0)
	assert.False(t, ok)
}

func TestFrameQueue_Drain(t *testing.T) {
	t.Parallel()

	q := NewFrameQueue()
	q.Push(Frame{})
	q.Push(Frame{})
	assert.Equal(t, 2, q.Drain())
	assert.Equal(t, 0, q.Len())
}
