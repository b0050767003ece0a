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

// Package uart drives an EBYTE E32 LoRa module attached to a serial port.
package uart

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/ZaparooProject/go-lampnet"
	"github.com/ZaparooProject/go-lampnet/internal/syncutil"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the E32 factory UART speed (8N1).
	DefaultBaudRate = 9600

	// BoardPort is the SoC UART the module is wired to on single-board computers.
	BoardPort = "/dev/ttyS0"
	// USBPort is the usual name of a USB-serial adapter carrying the module.
	USBPort = "/dev/ttyUSB0"
)

// PortOpener opens a serial port. serial.Open satisfies it.
type PortOpener func(name string, mode *serial.Mode) (serial.Port, error)

// Option configures a Transport.
type Option func(*Transport)

// WithPins attaches the AUX/M0/M1 lines. Without pins the module is assumed
// to be strapped into normal mode and always ready.
func WithPins(pins Pins) Option {
	return func(t *Transport) {
		t.pins = pins
	}
}

// WithBaudRate overrides DefaultBaudRate.
func WithBaudRate(baud int) Option {
	return func(t *Transport) {
		if baud > 0 {
			t.baud = baud
		}
	}
}

// WithAuxTimeout bounds the wait for AUX before a transmit.
func WithAuxTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.auxTimeout = d
		}
	}
}

// WithAuxPollInterval sets how often AUX is sampled.
func WithAuxPollInterval(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.auxPoll = d
		}
	}
}

// WithPortOpener replaces serial.Open.
func WithPortOpener(open PortOpener) Option {
	return func(t *Transport) {
		if open != nil {
			t.openPort = open
		}
	}
}

// Transport implements the lampnet.Transport interface for an E32 module.
type Transport struct {
	port       serial.Port
	pins       Pins
	openPort   PortOpener
	portName   string
	baud       int
	auxTimeout time.Duration
	auxPoll    time.Duration
	mode       lampnet.Mode
	mu         syncutil.Mutex // guards port, mode and serializes writes
	readMu     syncutil.Mutex
}

// isWindows returns true if running on Windows
func isWindows() bool {
	return runtime.GOOS == "windows"
}

// readSlice is the granularity of a single blocking read, so cancellation is
// noticed promptly.
func readSlice() time.Duration {
	if isWindows() {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// windowsPostWriteDelay adds Windows-specific delay after write operations
func windowsPostWriteDelay() {
	if isWindows() {
		time.Sleep(15 * time.Millisecond)
	}
}

// DefaultPort picks the SoC UART when it exists and a USB adapter otherwise.
func DefaultPort() string {
	if _, err := os.Stat(BoardPort); err == nil {
		return BoardPort
	}
	return USBPort
}

// New creates a UART transport for portName. The port is opened by Open.
func New(portName string, opts ...Option) (*Transport, error) {
	portName = strings.TrimSpace(portName)
	if portName == "" {
		return nil, errors.New("UART port name is empty")
	}

	t := &Transport{
		portName:   portName,
		openPort:   serial.Open,
		baud:       DefaultBaudRate,
		auxTimeout: lampnet.DefaultAuxTimeout,
		auxPoll:    lampnet.DefaultAuxPollInterval,
		mode:       lampnet.ModeNormal,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// PortName returns the serial device path.
func (t *Transport) PortName() string {
	return t.portName
}

// Open opens the serial port at the configured speed, 8N1.
func (t *Transport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port != nil {
		return nil
	}

	port, err := t.openPort(t.portName, &serial.Mode{
		BaudRate: t.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return classifyOpenError(t.portName, err)
	}

	if err := port.ResetInputBuffer(); err != nil {
		lampnet.Debugf("uart %s: input flush failed: %v", t.portName, err)
	}
	t.port = port
	lampnet.Debugf("uart %s opened at %d baud", t.portName, t.baud)
	return nil
}

// classifyOpenError marks a busy port as transient so OpenWithRetry waits for
// it, and everything else as permanent.
func classifyOpenError(portName string, err error) error {
	errType := lampnet.ErrorTypePermanent
	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PortBusy {
		errType = lampnet.ErrorTypeTransient
	}
	return lampnet.NewTransportError("Open", portName,
		fmt.Errorf("failed to open UART port %s: %w", portName, err), errType)
}

// Close closes the transport connection
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

// IsConnected returns true if the transport is connected
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// Type returns the transport type
func (*Transport) Type() lampnet.TransportType {
	return lampnet.TransportUART
}

// Mode returns the last mode applied with SetMode.
func (t *Transport) Mode() lampnet.Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// SetMode drives M0/M1. Without pins the request is only recorded.
func (t *Transport) SetMode(mode lampnet.Mode) error {
	if mode != lampnet.ModeNormal && mode != lampnet.ModeConfiguration {
		return fmt.Errorf("UART set mode: unsupported %s", mode)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pins != nil {
		if err := t.pins.SetMode(mode); err != nil {
			return fmt.Errorf("UART set mode %s: %w", mode, err)
		}
	} else {
		lampnet.Debugf("uart %s: no mode pins, assuming module is in %s mode", t.portName, mode)
	}
	t.mode = mode
	return nil
}

// Transmit waits for AUX and writes data in one piece. When AUX stays low for
// the whole timeout the frame is dropped and ErrTransportNotReady returned.
func (t *Transport) Transmit(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return lampnet.NewTransportClosedError("Transmit", t.portName)
	}

	if err := t.waitAux(ctx); err != nil {
		return err
	}

	n, err := t.port.Write(data)
	if err != nil {
		if isPortClosed(err) {
			return lampnet.NewTransportClosedError("Transmit", t.portName)
		}
		return fmt.Errorf("UART write failed: %w", err)
	} else if n != len(data) {
		return lampnet.NewTransportWriteError("Transmit", t.portName)
	}

	if err := t.drainWithRetry("transmit"); err != nil {
		return err
	}
	windowsPostWriteDelay()

	lampnet.Debugf("uart %s TX % X", t.portName, data)
	return nil
}

// waitAux polls AUX until it is high. Caller holds mu.
func (t *Transport) waitAux(ctx context.Context) error {
	if t.pins == nil {
		return nil
	}

	deadline := time.Now().Add(t.auxTimeout)
	ticker := time.NewTicker(t.auxPoll)
	defer ticker.Stop()

	for {
		if t.pins.AuxReady() {
			return nil
		}
		if !time.Now().Before(deadline) {
			lampnet.Debugf("uart %s: AUX not high after %v, frame dropped", t.portName, t.auxTimeout)
			return lampnet.NewTransportNotReadyError("Transmit", t.portName)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Receive reads up to maxBytes, returning as soon as anything arrives or an
// empty slice once timeout elapses.
func (t *Transport) Receive(ctx context.Context, maxBytes int, timeout time.Duration) ([]byte, error) {
	t.readMu.Lock()
	defer t.readMu.Unlock()

	port := t.livePort()
	if port == nil {
		return nil, lampnet.NewTransportClosedError("Receive", t.portName)
	}
	if maxBytes <= 0 {
		return []byte{}, nil
	}

	buf := make([]byte, maxBytes)
	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return []byte{}, nil
		}
		if err := port.SetReadTimeout(min(remaining, readSlice())); err != nil {
			return nil, fmt.Errorf("UART set read timeout failed: %w", err)
		}

		n, err := port.Read(buf)
		if err != nil {
			switch {
			case isInterruptedSystemCall(err):
				continue
			case isPortClosed(err):
				return nil, lampnet.NewTransportClosedError("Receive", t.portName)
			default:
				return nil, fmt.Errorf("UART read failed: %w", err)
			}
		}
		if n > 0 {
			lampnet.Debugf("uart %s RX % X", t.portName, buf[:n])
			return buf[:n], nil
		}
	}
}

func (t *Transport) livePort() serial.Port {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port
}

func isPortClosed(err error) bool {
	var portErr *serial.PortError
	return errors.As(err, &portErr) && portErr.Code() == serial.PortClosed
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// drainWithRetry performs port drain with retry logic for interrupted system calls
func (t *Transport) drainWithRetry(operation string) error {
	const maxRetries = 3
	baseDelay := 2 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := t.port.Drain()
		if err == nil {
			return nil
		}

		if isInterruptedSystemCall(err) {
			if attempt < maxRetries-1 {
				delay := baseDelay * time.Duration(1<<attempt) // 2ms, 4ms, 8ms
				time.Sleep(delay)
				continue
			}
		}

		return fmt.Errorf("UART %s drain failed: %w", operation, err)
	}

	return fmt.Errorf("UART %s drain failed after %d retries", operation, maxRetries)
}

// HasCapability implements the TransportCapabilityChecker interface
func (t *Transport) HasCapability(capability lampnet.TransportCapability) bool {
	switch capability {
	case lampnet.CapabilityReadyLine, lampnet.CapabilityModePins:
		return t.pins != nil
	default:
		return false
	}
}

// Ensure Transport implements lampnet.Transport
var _ lampnet.Transport = (*Transport)(nil)
