package uart

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/ZaparooProject/go-lampnet"
)

var factoryConfig = []byte{0xC0, 0x00, 0x00, 0x1C, 0x14, 0x47}

func TestDefaultModuleConfig_Encoding(t *testing.T) {
	t.Parallel()

	raw, err := DefaultModuleConfig().Bytes()
	require.NoError(t, err)
	assert.Equal(t, factoryConfig, raw)

	cfg, err := ParseModuleConfig(factoryConfig)
	require.NoError(t, err)
	assert.Equal(t, DefaultModuleConfig(), cfg)
	assert.Equal(t, 430, cfg.FrequencyMHz())
	assert.Contains(t, cfg.String(), "air=9600")
}

func TestParseModuleConfig_Fields(t *testing.T) {
	t.Parallel()

	// temporary head, address 0x1234, 8E1 at 115200, air 2.4k,
	// fixed transmission, open-drain, 1000 ms wake-up, FEC off, 20 dBm
	cfg, err := ParseModuleConfig([]byte{0xC2, 0x12, 0x34, 0xBA, 0x05, 0x98})
	require.NoError(t, err)

	assert.False(t, cfg.Persist)
	assert.Equal(t, uint16(0x1234), cfg.Address)
	assert.Equal(t, Parity8E1, cfg.Parity)
	assert.Equal(t, 115200, cfg.UARTBaud)
	assert.Equal(t, 2400, cfg.AirRate)
	assert.Equal(t, byte(5), cfg.Channel)
	assert.True(t, cfg.FixedTransmission)
	assert.False(t, cfg.PushPullIO)
	assert.Equal(t, time.Second, cfg.WakeupTime)
	assert.False(t, cfg.FEC)
	assert.Equal(t, 20, cfg.TxPowerDBm)
}

func TestParseModuleConfig_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "short", raw: []byte{0xC0, 0x00}},
		{name: "bad head", raw: []byte{0xC1, 0x00, 0x00, 0x1C, 0x14, 0x47}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseModuleConfig(tt.raw)
			require.ErrorIs(t, err, ErrModuleReply)
		})
	}
}

func TestModuleConfig_BytesRejectsUnsupported(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mutate func(*ModuleConfig)
		name   string
	}{
		{name: "baud", mutate: func(c *ModuleConfig) { c.UARTBaud = 14400 }},
		{name: "air rate", mutate: func(c *ModuleConfig) { c.AirRate = 600 }},
		{name: "wakeup", mutate: func(c *ModuleConfig) { c.WakeupTime = time.Millisecond }},
		{name: "power", mutate: func(c *ModuleConfig) { c.TxPowerDBm = 30 }},
		{name: "channel", mutate: func(c *ModuleConfig) { c.Channel = 0x20 }},
		{name: "parity", mutate: func(c *ModuleConfig) { c.Parity = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultModuleConfig()
			tt.mutate(&cfg)
			_, err := cfg.Bytes()
			require.Error(t, err)
		})
	}
}

// moduleResponder answers configuration commands the way an E32 does.
func moduleResponder(port *MockSerialPort, stored []byte) {
	port.OnWrite(func(p []byte) {
		switch {
		case bytes.Equal(p, cmdReadVersion):
			port.Inject([]byte{0xC3, 0x32, 0x0D, 0x14})
		case bytes.Equal(p, cmdReadConfig):
			port.Inject(stored)
		case len(p) == configLength && (p[0] == headSave || p[0] == headTemporary):
			copy(stored, p)
			port.Inject(stored)
		}
	})
}

func TestTransport_ReadVersionRestoresMode(t *testing.T) {
	t.Parallel()

	aux, m0, m1 := testPins()
	pins, err := NewGPIOPins(aux, m0, m1)
	require.NoError(t, err)

	port := NewMockSerialPort()
	moduleResponder(port, append([]byte(nil), factoryConfig...))
	tr := openTestTransport(t, port, WithPins(pins))
	require.NoError(t, tr.SetMode(lampnet.ModeNormal))

	version, err := tr.ReadVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModuleVersion{Model: 0x32, Version: 0x0D, Features: 0x14}, version)

	assert.Equal(t, lampnet.ModeNormal, tr.Mode())
	assert.Equal(t, gpio.Low, m0.Read())
	assert.Equal(t, gpio.Low, m1.Read())
	assert.Equal(t, [][]byte{cmdReadVersion}, port.Written())
}

func TestTransport_WriteAndReadConfig(t *testing.T) {
	t.Parallel()

	port := NewMockSerialPort()
	stored := append([]byte(nil), factoryConfig...)
	moduleResponder(port, stored)
	tr := openTestTransport(t, port)

	want := DefaultModuleConfig()
	want.Address = 0x0102
	want.Channel = 0x17
	require.NoError(t, tr.WriteConfig(context.Background(), want))

	got, err := tr.ReadConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTransport_WriteConfigDetectsMismatch(t *testing.T) {
	t.Parallel()

	port := NewMockSerialPort()
	port.OnWrite(func([]byte) { port.Inject(factoryConfig) })
	tr := openTestTransport(t, port)

	cfg := DefaultModuleConfig()
	cfg.Channel = 0x01
	require.ErrorIs(t, tr.WriteConfig(context.Background(), cfg), ErrModuleReply)
}
