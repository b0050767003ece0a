package lampnet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRelay(t *testing.T) (*relayHandler, *MockTransport, *fakeClock) {
	t.Helper()
	sender, mock := newTestSender(testRelay)
	clock := &fakeClock{}
	timing := DefaultTiming()
	backoff := func(maxBackoff time.Duration) time.Duration { return maxBackoff / 2 }
	return newRelayHandler(sender, clock, backoff, timing), mock, clock
}

func TestRelayHandler_ForwardDelays(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		frame     Frame
		wantSleep time.Duration
	}{
		{
			name:      "broadcast waits the random backoff",
			frame:     Frame{Src: testRC, Dest: Broadcast, Seq: 2, Tag: TagLampCtrl},
			wantSleep: 1500 * time.Millisecond,
		},
		{
			name:      "unicast waits relay delay first",
			frame:     Frame{Src: testRC, Dest: testStation, Seq: 2, Tag: TagPoll},
			wantSleep: 2500 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, mock, clock := newTestRelay(t)

			require.NoError(t, h.OnFrame(context.Background(), tt.frame))

			assert.Equal(t, []time.Duration{tt.wantSleep}, clock.Sleeps())
			require.Equal(t, 1, mock.TransmitCount())
			assert.Equal(t, tt.frame.Bytes(), mock.Transmitted()[0], "forwarded unchanged")
		})
	}
}

func TestRelayHandler_NoDuplicateForwarding(t *testing.T) {
	t.Parallel()

	h, mock, _ := newTestRelay(t)
	ctx := context.Background()

	req := Frame{Src: testRC, Dest: testStation, Seq: 4, Tag: TagPoll}
	reply := Frame{Src: testStation, Dest: testRC, Seq: 5, Tag: TagPollAck}

	require.NoError(t, h.OnFrame(ctx, req))
	require.NoError(t, h.OnFrame(ctx, req))
	require.NoError(t, h.OnFrame(ctx, reply))
	require.NoError(t, h.OnFrame(ctx, reply))

	sent := decodeAll(t, mock.Transmitted())
	require.Len(t, sent, 2)
	assert.Equal(t, TagPoll, sent[0].Tag)
	assert.Equal(t, TagPollAck, sent[1].Tag)
}

func TestRelayHandler_ConsumesOwnFrames(t *testing.T) {
	t.Parallel()

	h, mock, clock := newTestRelay(t)
	require.NoError(t, h.OnFrame(context.Background(), Frame{Src: testRC, Dest: testRelay, Seq: 2, Tag: TagPoll}))

	assert.Zero(t, mock.TransmitCount())
	assert.Empty(t, clock.Sleeps())
}

func TestRelayHandler_CancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	h, mock, _ := newTestRelay(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.OnFrame(ctx, Frame{Src: testRC, Dest: Broadcast, Seq: 2, Tag: TagLampCtrl})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, mock.TransmitCount())
}
