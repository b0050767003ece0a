// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lampnet

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"syscall"
)

// Error categories for better error handling and retry logic
var (
	// Transport errors - potentially retryable
	ErrTransportTimeout  = errors.New("transport timeout")
	ErrTransportWrite    = errors.New("transport write failed")
	ErrTransportRead     = errors.New("transport read failed")
	ErrTransportClosed   = errors.New("transport is closed")
	ErrTransportNotReady = errors.New("transport not ready")

	// Exchange outcomes of a unicast command
	ErrResponseTimeout     = errors.New("no response before timeout")
	ErrResponseNack        = errors.New("station answered with NACK")
	ErrResponseTagMismatch = errors.New("response tag does not match request")
	ErrRetriesExhausted    = errors.New("retries exhausted")

	// Command errors - not retryable
	ErrAddressResolution = errors.New("station address cannot be resolved")
	ErrIllegalBroadcast  = errors.New("command cannot be broadcast")
	ErrUnknownCommand    = errors.New("unknown command kind")
	ErrNotController     = errors.New("node is not a remote controller")
	ErrNodeClosed        = errors.New("node is closed")

	// Data errors - not retryable
	ErrInvalidPayloadLength = errors.New("payload must be exactly 4 bytes")
	ErrInvalidNodeID        = errors.New("invalid node id")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ExchangeError records which station and attempt a command failed on.
type ExchangeError struct {
	Err     error
	Op      string
	Station NodeID
	Attempt int
}

func (e *ExchangeError) Error() string {
	if e.Attempt > 0 {
		return fmt.Sprintf("%s %s (attempt %d): %v", e.Op, e.Station, e.Attempt, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Station, e.Err)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	// Check for known retryable errors
	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrTransportNotReady),
		errors.Is(err, ErrResponseTimeout),
		errors.Is(err, ErrResponseTagMismatch):
		return true
	default:
		return false
	}
}

// IsTerminal reports whether a command must stop retrying immediately: the
// peer rejected it or the command itself can never succeed.
func IsTerminal(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrResponseNack),
		errors.Is(err, ErrAddressResolution),
		errors.Is(err, ErrIllegalBroadcast),
		errors.Is(err, ErrUnknownCommand),
		errors.Is(err, ErrInvalidPayloadLength),
		errors.Is(err, ErrNotController),
		errors.Is(err, ErrNodeClosed):
		return true
	default:
		return IsFatal(err)
	}
}

// IsFatal returns true if the error indicates the radio is gone and the
// receive loop should stop entirely. This is distinct from IsRetryable which
// indicates whether a single operation can be retried.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	// Check for TransportError with permanent type
	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypePermanent
	}

	// Check for OS-level errors that indicate device is gone
	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// Windows error codes for device disconnection detection.
// These are defined here because they're not available on non-Windows platforms.
const (
	errAccessDenied syscall.Errno = 5   // ERROR_ACCESS_DENIED
	errGenFailure   syscall.Errno = 31  // ERROR_GEN_FAILURE
	errNoSuchDevice syscall.Errno = 433 // ERROR_NO_SUCH_DEVICE
)

// isDeviceGoneError checks for OS-level errors indicating device disconnection.
// These errors occur when a USB serial adapter is unplugged during I/O.
func isDeviceGoneError(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		// Check for Unix device-gone errors (Linux, macOS, BSD)
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}

		// Check for Windows device-gone errors
		if runtime.GOOS == "windows" {
			//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
			switch errno {
			case errAccessDenied, errGenFailure, errNoSuchDevice:
				return true
			}
		}
	}

	return false
}

// Error constructors for consistent error creation

// NewTransportError creates a standard transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a timeout error for transport operations
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewTransportWriteError creates a write error (transient)
func NewTransportWriteError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportWrite, ErrorTypeTransient)
}

// NewTransportReadError creates a read error (transient)
func NewTransportReadError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportRead, ErrorTypeTransient)
}

// NewTransportNotReadyError creates an error for a radio whose AUX line did
// not signal ready in time (timeout)
func NewTransportNotReadyError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportNotReady, ErrorTypeTimeout)
}

// NewTransportClosedError creates an error for I/O on a closed port (permanent)
func NewTransportClosedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportClosed, ErrorTypePermanent)
}
