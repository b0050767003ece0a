package uart

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/ZaparooProject/go-lampnet"
)

var errPortClosed = errors.New("port is closed")

// lockedBuffer is the byte stream coming out of the module.
type lockedBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf.Len() == 0 {
		return 0, nil
	}
	return b.buf.Read(p)
}

// MockSerialPort implements serial.Port over an in-memory module.
type MockSerialPort struct {
	rx          *lockedBuffer
	source      io.Reader
	onWrite     func(p []byte)
	mode        *serial.Mode
	written     [][]byte
	readTimeout time.Duration
	mu          sync.Mutex
	closed      bool
}

func NewMockSerialPort() *MockSerialPort {
	rx := &lockedBuffer{}
	return &MockSerialPort{rx: rx, source: rx, readTimeout: 50 * time.Millisecond}
}

// WithReader routes reads through r, which must read from m.rx.
func (m *MockSerialPort) WithReader(r io.Reader) *MockSerialPort {
	m.source = r
	return m
}

// OnWrite installs a hook that sees every write.
func (m *MockSerialPort) OnWrite(fn func(p []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onWrite = fn
}

// Inject queues bytes as if the module had received them over the air.
func (m *MockSerialPort) Inject(p []byte) {
	_, _ = m.rx.Write(p)
}

func (m *MockSerialPort) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.written))
	copy(out, m.written)
	return out
}

func (m *MockSerialPort) SetMode(mode *serial.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = mode
	return nil
}

func (m *MockSerialPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	timeout := m.readTimeout
	m.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		if m.isClosed() {
			return 0, errPortClosed
		}
		n, err := m.source.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
		if !time.Now().Before(deadline) {
			return 0, nil
		}
		time.Sleep(time.Millisecond)
	}
}

func (m *MockSerialPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, errPortClosed
	}
	m.written = append(m.written, append([]byte(nil), p...))
	hook := m.onWrite
	m.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return len(p), nil
}

func (*MockSerialPort) Drain() error {
	return nil
}

func (*MockSerialPort) ResetInputBuffer() error {
	return nil
}

func (*MockSerialPort) ResetOutputBuffer() error {
	return nil
}

func (*MockSerialPort) SetDTR(_ bool) error {
	return nil
}

func (*MockSerialPort) SetRTS(_ bool) error {
	return nil
}

func (*MockSerialPort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return &serial.ModemStatusBits{}, nil
}

func (m *MockSerialPort) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readTimeout = t
	return nil
}

func (m *MockSerialPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (*MockSerialPort) Break(_ time.Duration) error {
	return nil
}

func (m *MockSerialPort) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Verify interface implementation
var _ serial.Port = (*MockSerialPort)(nil)

// openerFor returns a PortOpener handing out port and recording the mode.
func openerFor(port *MockSerialPort) (PortOpener, func() int) {
	var mu sync.Mutex
	opens := 0
	open := func(_ string, mode *serial.Mode) (serial.Port, error) {
		mu.Lock()
		opens++
		mu.Unlock()
		_ = port.SetMode(mode)
		return port, nil
	}
	return open, func() int {
		mu.Lock()
		defer mu.Unlock()
		return opens
	}
}

// testPins returns gpiotest-backed control lines.
func testPins() (aux, m0, m1 *gpiotest.Pin) {
	return &gpiotest.Pin{N: DefaultAuxPin, Num: 27},
		&gpiotest.Pin{N: DefaultM0Pin, Num: 17, L: gpio.High},
		&gpiotest.Pin{N: DefaultM1Pin, Num: 18, L: gpio.High}
}

// scriptedPins reports AUX low for the first busyPolls samples.
type scriptedPins struct {
	modes     []lampnet.Mode
	busyPolls int
	polls     int
	mu        sync.Mutex
}

func (p *scriptedPins) AuxReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polls++
	return p.busyPolls >= 0 && p.polls > p.busyPolls
}

func (p *scriptedPins) SetMode(mode lampnet.Mode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modes = append(p.modes, mode)
	return nil
}

func (p *scriptedPins) Polls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polls
}
