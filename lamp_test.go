package lampnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentToWire(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pct  int
		want byte
	}{
		{pct: -5, want: 0},
		{pct: 0, want: 0},
		{pct: 1, want: 3},
		{pct: 50, want: 128},
		{pct: 99, want: 252},
		{pct: 100, want: 255},
		{pct: 150, want: 255},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PercentToWire(tt.pct), "pct=%d", tt.pct)
	}
}

func TestWireToPercent_InvertsPercentToWire(t *testing.T) {
	t.Parallel()

	for pct := 0; pct <= 100; pct++ {
		assert.Equal(t, pct, WireToPercent(PercentToWire(pct)), "pct=%d", pct)
	}
}

func TestParseLampMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    LampMode
		wantErr bool
	}{
		{input: "AllOn", want: LampAllOn},
		{input: "on", want: LampAllOn},
		{input: " OFF ", want: LampAllOff},
		{input: "left", want: LampLeftOn},
		{input: "RightOn", want: LampRightOn},
		{input: "dim", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseLampMode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLampState_Payload(t *testing.T) {
	t.Parallel()

	state := LampState{Mode: LampLeftOn, Brightness1: 200, Brightness2: 10}
	p := state.Payload()
	assert.Equal(t, [PayloadLength]byte{1, 200, 10, 0}, p)
	assert.Equal(t, state, LampStateFromPayload(p))
	assert.True(t, state.Mode.Lit())
	assert.False(t, LampAllOff.Lit())
}

func TestTelemetryChannel_Tags(t *testing.T) {
	t.Parallel()

	for ch := TelemetryPower1; ch <= TelemetryEnv2; ch++ {
		poll := ch.pollTag()
		got, ok := telemetryChannelFor(poll)
		require.True(t, ok)
		assert.Equal(t, ch, got)

		ack, ok := poll.AckFor()
		require.True(t, ok)
		got, ok = telemetryChannelFor(ack)
		require.True(t, ok)
		assert.Equal(t, ch, got)
	}

	_, ok := telemetryChannelFor(TagPollAck)
	assert.False(t, ok)
}
