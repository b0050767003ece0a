package uart

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"periph.io/x/conn/v3/gpio"

	"github.com/ZaparooProject/go-lampnet"
	virt "github.com/ZaparooProject/go-lampnet/internal/testing"
)

var (
	rcID      = lampnet.MustParseNodeID("000000000001")
	stationID = lampnet.MustParseNodeID("000000000002")
)

func openTestTransport(t *testing.T, port *MockSerialPort, opts ...Option) *Transport {
	t.Helper()
	open, _ := openerFor(port)
	tr, err := New("/dev/ttyTEST0", append([]Option{WithPortOpener(open)}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, tr.Open())
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestNew_RejectsEmptyPort(t *testing.T) {
	t.Parallel()

	_, err := New("  ")
	require.Error(t, err)
}

func TestTransport_OpenUsesE32SerialSettings(t *testing.T) {
	t.Parallel()

	port := NewMockSerialPort()
	open, opens := openerFor(port)
	tr, err := New("/dev/ttyTEST0", WithPortOpener(open))
	require.NoError(t, err)

	assert.False(t, tr.IsConnected())
	require.NoError(t, tr.Open())
	require.NoError(t, tr.Open())
	assert.Equal(t, 1, opens(), "second open is a no-op")
	assert.True(t, tr.IsConnected())
	assert.Equal(t, lampnet.TransportUART, tr.Type())
	assert.Equal(t, "/dev/ttyTEST0", tr.PortName())

	require.NotNil(t, port.mode)
	assert.Equal(t, DefaultBaudRate, port.mode.BaudRate)
	assert.Equal(t, 8, port.mode.DataBits)
	assert.Equal(t, serial.NoParity, port.mode.Parity)
	assert.Equal(t, serial.OneStopBit, port.mode.StopBits)

	require.NoError(t, tr.Close())
	assert.False(t, tr.IsConnected())
	require.NoError(t, tr.Close())
}

func TestTransport_OpenFailureIsPermanent(t *testing.T) {
	t.Parallel()

	tr, err := New("/dev/ttyMISSING", WithPortOpener(func(string, *serial.Mode) (serial.Port, error) {
		return nil, errors.New("no such file or directory")
	}))
	require.NoError(t, err)

	err = tr.Open()
	require.Error(t, err)
	assert.False(t, lampnet.IsRetryable(err))
	assert.Contains(t, err.Error(), "/dev/ttyMISSING")
}

func TestTransport_TransmitWithoutPins(t *testing.T) {
	t.Parallel()

	port := NewMockSerialPort()
	tr := openTestTransport(t, port)

	data := lampnet.Frame{Src: rcID, Dest: stationID, Seq: 2, Tag: lampnet.TagPoll}.Bytes()
	require.NoError(t, tr.Transmit(context.Background(), data))
	assert.Equal(t, [][]byte{data}, port.Written())
	assert.False(t, tr.HasCapability(lampnet.CapabilityReadyLine))
	assert.False(t, tr.HasCapability(lampnet.CapabilityModePins))
}

func TestTransport_TransmitWaitsForAux(t *testing.T) {
	t.Parallel()

	pins := &scriptedPins{busyPolls: 3}
	port := NewMockSerialPort()
	tr := openTestTransport(t, port, WithPins(pins),
		WithAuxPollInterval(2*time.Millisecond), WithAuxTimeout(time.Second))

	require.NoError(t, tr.Transmit(context.Background(), []byte{0x55, 0x55}))
	assert.Equal(t, 4, pins.Polls())
	assert.Len(t, port.Written(), 1)
	assert.True(t, tr.HasCapability(lampnet.CapabilityReadyLine))
	assert.True(t, tr.HasCapability(lampnet.CapabilityModePins))
}

func TestTransport_TransmitDropsFrameWhenAuxStaysLow(t *testing.T) {
	t.Parallel()

	pins := &scriptedPins{busyPolls: -1}
	port := NewMockSerialPort()
	tr := openTestTransport(t, port, WithPins(pins),
		WithAuxPollInterval(2*time.Millisecond), WithAuxTimeout(20*time.Millisecond))

	err := tr.Transmit(context.Background(), []byte{0x55, 0x55})
	require.ErrorIs(t, err, lampnet.ErrTransportNotReady)
	assert.True(t, lampnet.IsRetryable(err))
	assert.False(t, lampnet.IsFatal(err))
	assert.Empty(t, port.Written(), "frame must not reach the module")
}

func TestTransport_TransmitHonorsContextWhileWaiting(t *testing.T) {
	t.Parallel()

	pins := &scriptedPins{busyPolls: -1}
	tr := openTestTransport(t, NewMockSerialPort(), WithPins(pins),
		WithAuxPollInterval(2*time.Millisecond), WithAuxTimeout(time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, tr.Transmit(ctx, []byte{0x01}), context.DeadlineExceeded)
}

func TestTransport_ClosedOperations(t *testing.T) {
	t.Parallel()

	tr, err := New("/dev/ttyTEST0")
	require.NoError(t, err)

	require.ErrorIs(t, tr.Transmit(context.Background(), []byte{0x01}), lampnet.ErrTransportClosed)
	_, err = tr.Receive(context.Background(), lampnet.FrameLength, 10*time.Millisecond)
	require.ErrorIs(t, err, lampnet.ErrTransportClosed)
	assert.True(t, lampnet.IsFatal(err))
}

func TestTransport_Receive(t *testing.T) {
	t.Parallel()

	port := NewMockSerialPort()
	tr := openTestTransport(t, port)

	data, err := tr.Receive(context.Background(), lampnet.FrameLength, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, data, "timeout yields an empty slice")

	port.Inject([]byte{0x55, 0x55, 0x00})
	data, err = tr.Receive(context.Background(), lampnet.FrameLength, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x55, 0x55, 0x00}, data)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.Receive(ctx, lampnet.FrameLength, time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestTransport_SetModeDrivesPins(t *testing.T) {
	t.Parallel()

	aux, m0, m1 := testPins()
	pins, err := NewGPIOPins(aux, m0, m1)
	require.NoError(t, err)
	assert.True(t, pins.AuxReady(), "pull-up idles high")

	tr := openTestTransport(t, NewMockSerialPort(), WithPins(pins))

	require.NoError(t, tr.SetMode(lampnet.ModeNormal))
	assert.Equal(t, gpio.Low, m0.Read())
	assert.Equal(t, gpio.Low, m1.Read())

	require.NoError(t, tr.SetMode(lampnet.ModeConfiguration))
	assert.Equal(t, gpio.High, m0.Read())
	assert.Equal(t, gpio.High, m1.Read())
	assert.Equal(t, lampnet.ModeConfiguration, tr.Mode())

	require.Error(t, tr.SetMode(lampnet.Mode(7)))
	assert.Equal(t, lampnet.ModeConfiguration, tr.Mode())

	require.NoError(t, aux.Out(gpio.Low))
	assert.False(t, pins.AuxReady())
}

func TestTransport_SetModeWithoutPinsIsRecorded(t *testing.T) {
	t.Parallel()

	tr := openTestTransport(t, NewMockSerialPort())
	require.NoError(t, tr.SetMode(lampnet.ModeConfiguration))
	assert.Equal(t, lampnet.ModeConfiguration, tr.Mode())
}

// TestNode_StationOverJitteryUART drives a station node through the UART
// transport with fragmented, delayed reads and line noise ahead of the frame.
func TestNode_StationOverJitteryUART(t *testing.T) {
	t.Parallel()

	port := NewMockSerialPort()
	port.WithReader(virt.NewJitteryConnection(port.rx, virt.JitterConfig{
		MaxLatencyMs:     3,
		FragmentReads:    true,
		FragmentMinBytes: 1,
		PacketBoundary:   8,
		Seed:             42,
	}))
	open, opens := openerFor(port)
	tr, err := New("/dev/ttyTEST0", WithPortOpener(open))
	require.NoError(t, err)

	node, err := lampnet.New(tr, lampnet.Config{
		Role:   lampnet.RoleSTA,
		ID:     stationID,
		Timing: lampnet.DefaultTiming(),
	})
	require.NoError(t, err)
	require.NoError(t, node.Start(context.Background()))
	t.Cleanup(func() { _ = node.Close() })
	assert.Equal(t, 1, opens())

	req := lampnet.Frame{
		Src: rcID, Dest: stationID, Seq: 4, Tag: lampnet.TagLampCtrl,
		Payload: lampnet.LampStateAllOn.Payload(),
	}
	port.Inject(append([]byte{0x00, 0x55, 0x13}, req.Bytes()...))

	require.Eventually(t, func() bool { return len(port.Written()) == 1 }, 3*time.Second, 5*time.Millisecond)
	res := lampnet.DecodeFrame(port.Written()[0])
	require.Equal(t, lampnet.DecodeOK, res.Status)
	assert.Equal(t, lampnet.TagPollAck, res.Frame.Tag)
	assert.Equal(t, rcID, res.Frame.Dest)
	assert.Equal(t, byte(5), res.Frame.Seq)
	assert.True(t, bytes.Equal(req.Payload[:], res.Frame.Payload[:]))

	lamp, ok := node.Lamp()
	require.True(t, ok)
	assert.Equal(t, lampnet.LampStateAllOn, lamp)
}
