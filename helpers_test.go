package lampnet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock records sleeps instead of waiting.
type fakeClock struct {
	sleeps []time.Duration
	mu     sync.Mutex
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// recordingActuator remembers every applied lamp state.
type recordingActuator struct {
	applied []LampState
	mu      sync.Mutex
}

func (a *recordingActuator) Apply(state LampState) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append(a.applied, state)
	return nil
}

func (a *recordingActuator) Applied() []LampState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]LampState(nil), a.applied...)
}

func newTestSender(self NodeID) (*frameSender, *MockTransport) {
	mock := NewMockTransport()
	return &frameSender{transport: mock, self: self, trace: NewTraceBuffer("mock", self.String(), 16)}, mock
}

// decodeAll decodes every frame the mock transmitted.
func decodeAll(t *testing.T, raws [][]byte) []Frame {
	t.Helper()
	frames := make([]Frame, 0, len(raws))
	for _, raw := range raws {
		res := DecodeFrame(raw)
		require.Equal(t, DecodeOK, res.Status)
		frames = append(frames, res.Frame)
	}
	return frames
}

// stationResponder answers like a station at id whose lamp follows LampCtrl.
// It replies to every request it is sent, duplicates included.
func stationResponder(id NodeID, telemetry Telemetry) Responder {
	var mu sync.Mutex
	lamp := LampStateAllOff
	return func(tx []byte) [][]byte {
		res := DecodeFrame(tx)
		if res.Status != DecodeOK || res.Frame.Dest != id {
			return nil
		}
		req := res.Frame
		mu.Lock()
		defer mu.Unlock()

		var tag Tag
		var payload [PayloadLength]byte
		switch req.Tag {
		case TagLampCtrl:
			lamp = LampStateFromPayload(req.Payload)
			tag, payload = TagPollAck, lamp.Payload()
		case TagPoll:
			tag, payload = TagPollAck, lamp.Payload()
		default:
			ack, ok := req.Tag.AckFor()
			if !ok {
				return nil
			}
			ch, _ := telemetryChannelFor(req.Tag)
			tag, payload = ack, telemetry[ch]
		}
		raw, _ := EncodeFrame(id, req.Src, req.Seq+1, tag, payload[:])
		return [][]byte{raw}
	}
}
