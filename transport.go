// go-lampnet
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-lampnet.
//
// go-lampnet is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-lampnet is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-lampnet; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package lampnet

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Transport is the half-duplex byte channel to the radio module.
// The E32 UART backend lives in transport/uart; tests use MockTransport or the
// simulated radio in internal/testing.
type Transport interface {
	// Open prepares the channel for use
	Open() error

	// Close releases the channel
	Close() error

	// Transmit sends exactly data once the module signals it is ready
	Transmit(ctx context.Context, data []byte) error

	// Receive reads up to maxBytes, waiting at most timeout. It returns an
	// empty slice when nothing arrived and an error only for hardware faults.
	Receive(ctx context.Context, maxBytes int, timeout time.Duration) ([]byte, error)

	// SetMode switches the module between normal and configuration mode
	SetMode(mode Mode) error

	// IsConnected returns true if the transport is open
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// Mode is the operating mode of the radio module.
type Mode int

const (
	// ModeNormal is transparent transmission (M0 and M1 low).
	ModeNormal Mode = iota
	// ModeConfiguration accepts configuration commands (M0 and M1 high).
	ModeConfiguration
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeConfiguration:
		return "configuration"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents an E32 module on a serial port.
	TransportUART TransportType = "uart"
	// TransportSimulated represents an in-process simulated radio.
	TransportSimulated TransportType = "sim"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// TransportCapability represents specific capabilities or behaviors of a transport
type TransportCapability string

const (
	// CapabilityReadyLine indicates the transport waits on the module's AUX
	// line before transmitting.
	CapabilityReadyLine TransportCapability = "ready_line"

	// CapabilityModePins indicates SetMode drives real M0/M1 pins.
	CapabilityModePins TransportCapability = "mode_pins"
)

// TransportCapabilityChecker defines an interface for querying transport capabilities
// This provides a clean, type-safe alternative to reflection-based mode detection
type TransportCapabilityChecker interface {
	// HasCapability returns true if the transport has the specified capability
	HasCapability(capability TransportCapability) bool
}

// HasCapability reports whether t declares capability.
func HasCapability(t Transport, capability TransportCapability) bool {
	if capChecker, ok := t.(TransportCapabilityChecker); ok {
		return capChecker.HasCapability(capability)
	}
	return false
}

// TransportWithRetry wraps a Transport so a transmission that failed because
// the module was busy or the write was short is tried again under a
// RetryConfig before the engine sees the failure.
type TransportWithRetry struct {
	transport Transport
	config    *RetryConfig
}

// NewTransportWithRetry creates a new transport wrapper with retry logic
func NewTransportWithRetry(transport Transport, config *RetryConfig) *TransportWithRetry {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &TransportWithRetry{
		transport: transport,
		config:    config,
	}
}

// Open opens the underlying transport once. Node.Start and the sleep
// recoverer run their own open retries around it.
func (t *TransportWithRetry) Open() error {
	if err := t.transport.Open(); err != nil {
		return fmt.Errorf("underlying transport open: %w", err)
	}
	return nil
}

// Transmit sends a frame, retrying when the module was not ready or the write
// failed transiently
func (t *TransportWithRetry) Transmit(ctx context.Context, data []byte) error {
	return RetryWithConfig(ctx, t.config, func() error {
		err := t.transport.Transmit(ctx, data)
		if err != nil {
			Debugf("transmit on %s failed: %v", t.transport.Type(), err)
			return &TransportError{
				Op:        "Transmit",
				Err:       err,
				Type:      errorTypeOf(err),
				Retryable: IsRetryable(err),
			}
		}
		return nil
	})
}

// Receive reads from the underlying transport. Reads are not retried; the
// receive loop already polls.
func (t *TransportWithRetry) Receive(ctx context.Context, maxBytes int, timeout time.Duration) ([]byte, error) {
	data, err := t.transport.Receive(ctx, maxBytes, timeout)
	if err != nil {
		return data, fmt.Errorf("underlying transport receive: %w", err)
	}
	return data, nil
}

// Close closes the transport connection
func (t *TransportWithRetry) Close() error {
	if err := t.transport.Close(); err != nil {
		return fmt.Errorf("failed to close underlying transport: %w", err)
	}
	return nil
}

// SetMode forwards to the underlying transport
func (t *TransportWithRetry) SetMode(mode Mode) error {
	if err := t.transport.SetMode(mode); err != nil {
		return fmt.Errorf("failed to set mode on underlying transport: %w", err)
	}
	return nil
}

// IsConnected returns true if the transport is connected
func (t *TransportWithRetry) IsConnected() bool {
	return t.transport.IsConnected()
}

// Type returns the transport type
func (t *TransportWithRetry) Type() TransportType {
	return t.transport.Type()
}

// HasCapability forwards capability checking to the underlying transport
func (t *TransportWithRetry) HasCapability(capability TransportCapability) bool {
	return HasCapability(t.transport, capability)
}

// SetRetryConfig updates the retry configuration
func (t *TransportWithRetry) SetRetryConfig(config *RetryConfig) {
	t.config = config
}

func errorTypeOf(err error) ErrorType {
	switch {
	case IsFatal(err):
		return ErrorTypePermanent
	case IsRetryable(err):
		return ErrorTypeTimeout
	default:
		return ErrorTypeTransient
	}
}

// Responder produces the frames a mock peer sends back after a transmission.
type Responder func(tx []byte) [][]byte

// MockTransport provides a mock implementation of Transport for testing.
// Transmitted frames are recorded; bytes to receive are injected directly or
// produced by a Responder.
type MockTransport struct {
	responder    Responder
	transmitErr  error
	receiveErr   error
	rxNotify     chan struct{}
	capabilities map[TransportCapability]bool
	transmitted  [][]byte
	transmitErrs []error
	openErrs     []error
	rx           []byte
	openCount    int
	mode         Mode
	mu           sync.Mutex
	connected    bool
}

// NewMockTransport creates a new, already open mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		connected:    true,
		rxNotify:     make(chan struct{}, 1),
		capabilities: make(map[TransportCapability]bool),
	}
}

// Open implements Transport interface
func (m *MockTransport) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openCount++
	if len(m.openErrs) > 0 {
		err := m.openErrs[0]
		m.openErrs = m.openErrs[1:]
		return err
	}
	m.connected = true
	return nil
}

// Close implements Transport interface
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	m.wake()
	return nil
}

// Transmit implements Transport interface
func (m *MockTransport) Transmit(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return NewTransportClosedError("transmit", "mock")
	}
	if m.transmitErr != nil {
		err := m.transmitErr
		m.mu.Unlock()
		return err
	}
	if len(m.transmitErrs) > 0 {
		err := m.transmitErrs[0]
		m.transmitErrs = m.transmitErrs[1:]
		m.mu.Unlock()
		return err
	}
	frameCopy := append([]byte(nil), data...)
	m.transmitted = append(m.transmitted, frameCopy)
	responder := m.responder
	m.mu.Unlock()

	if responder != nil {
		for _, reply := range responder(frameCopy) {
			m.Inject(reply)
		}
	}
	return nil
}

// Receive implements Transport interface
func (m *MockTransport) Receive(ctx context.Context, maxBytes int, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		m.mu.Lock()
		switch {
		case !m.connected:
			m.mu.Unlock()
			return nil, NewTransportClosedError("receive", "mock")
		case m.receiveErr != nil:
			err := m.receiveErr
			m.receiveErr = nil
			m.mu.Unlock()
			return nil, err
		case len(m.rx) > 0:
			n := min(maxBytes, len(m.rx))
			out := append([]byte(nil), m.rx[:n]...)
			m.rx = m.rx[n:]
			m.mu.Unlock()
			return out, nil
		}
		m.mu.Unlock()

		select {
		case <-m.rxNotify:
		case <-timer.C:
			return []byte{}, nil
		case <-ctx.Done():
			return []byte{}, nil
		}
	}
}

// SetMode implements Transport interface
func (m *MockTransport) SetMode(mode Mode) error {
	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
	return nil
}

// IsConnected implements Transport interface
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Type implements Transport interface
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// HasCapability implements TransportCapabilityChecker
func (m *MockTransport) HasCapability(capability TransportCapability) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capabilities[capability]
}

// Test helper methods

// SetCapability declares or removes a capability
func (m *MockTransport) SetCapability(capability TransportCapability, enabled bool) {
	m.mu.Lock()
	m.capabilities[capability] = enabled
	m.mu.Unlock()
}

// SetResponder installs a function that answers every transmitted frame
func (m *MockTransport) SetResponder(responder Responder) {
	m.mu.Lock()
	m.responder = responder
	m.mu.Unlock()
}

// Inject queues bytes for Receive as if they had arrived over the air
func (m *MockTransport) Inject(data []byte) {
	m.mu.Lock()
	m.rx = append(m.rx, data...)
	m.mu.Unlock()
	m.wake()
}

// SetTransmitError makes every Transmit fail with err until cleared with nil
func (m *MockTransport) SetTransmitError(err error) {
	m.mu.Lock()
	m.transmitErr = err
	m.mu.Unlock()
}

// SetTransmitErrors queues errors returned by successive Transmit calls
func (m *MockTransport) SetTransmitErrors(errs ...error) {
	m.mu.Lock()
	m.transmitErrs = append(m.transmitErrs, errs...)
	m.mu.Unlock()
}

// SetReceiveError makes the next Receive fail with err
func (m *MockTransport) SetReceiveError(err error) {
	m.mu.Lock()
	m.receiveErr = err
	m.mu.Unlock()
	m.wake()
}

// SetOpenErrors queues errors returned by successive Open calls
func (m *MockTransport) SetOpenErrors(errs ...error) {
	m.mu.Lock()
	m.openErrs = append(m.openErrs, errs...)
	m.connected = false
	m.mu.Unlock()
}

// OpenCount returns how many times Open was called
func (m *MockTransport) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openCount
}

// Transmitted returns a copy of every frame sent so far
func (m *MockTransport) Transmitted() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.transmitted))
	copy(out, m.transmitted)
	return out
}

// TransmitCount returns how many frames were sent
func (m *MockTransport) TransmitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transmitted)
}

// CurrentMode returns the last mode set
func (m *MockTransport) CurrentMode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Reset clears recorded frames and pending input and reopens the transport
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.transmitted = nil
	m.rx = nil
	m.connected = true
	m.mu.Unlock()
}

func (m *MockTransport) wake() {
	select {
	case m.rxNotify <- struct{}{}:
	default:
	}
}
