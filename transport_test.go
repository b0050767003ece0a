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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTransportInterface verifies that the wrappers satisfy Transport
func TestTransportInterface(t *testing.T) {
	t.Parallel()

	var _ Transport = NewMockTransport()
	var _ Transport = NewTransportWithRetry(NewMockTransport(), nil)
	var _ TransportCapabilityChecker = NewMockTransport()
	var _ TransportCapabilityChecker = NewTransportWithRetry(NewMockTransport(), nil)
}

func TestMockTransport_ReceiveTimeout(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	start := time.Now()
	data, err := mock.Receive(context.Background(), FrameLength, 30*time.Millisecond)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Empty(t, data)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestMockTransport_ReceiveContextCancellation(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	data, err := mock.Receive(ctx, FrameLength, 5*time.Second)
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.Less(t, time.Since(start), time.Second)
}

func TestMockTransport_ReceiveSlicesToMaxBytes(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.Inject(make([]byte, 30))

	first, err := mock.Receive(context.Background(), FrameLength, time.Second)
	require.NoError(t, err)
	assert.Len(t, first, FrameLength)

	rest, err := mock.Receive(context.Background(), FrameLength, time.Second)
	require.NoError(t, err)
	assert.Len(t, rest, 8)
}

func TestMockTransport_Responder(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetResponder(func(tx []byte) [][]byte {
		return [][]byte{append([]byte{0xEE}, tx...)}
	})

	require.NoError(t, mock.Transmit(context.Background(), []byte{1, 2}))
	data, err := mock.Receive(context.Background(), 10, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xEE, 1, 2}, data)
	assert.Equal(t, [][]byte{{1, 2}}, mock.Transmitted())
}

func TestMockTransport_ClosedErrors(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	require.NoError(t, mock.Close())

	err := mock.Transmit(context.Background(), []byte{1})
	require.ErrorIs(t, err, ErrTransportClosed)
	assert.True(t, IsFatal(err))

	_, err = mock.Receive(context.Background(), 1, time.Millisecond)
	require.ErrorIs(t, err, ErrTransportClosed)

	mock.Reset()
	assert.True(t, mock.IsConnected())
}

func TestMockTransport_TransmitHonoursContext(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, mock.Transmit(ctx, []byte{1}), context.Canceled)
	assert.Zero(t, mock.TransmitCount())
}

func TestMockTransport_ModeAndCapabilities(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	assert.False(t, HasCapability(mock, CapabilityReadyLine))
	mock.SetCapability(CapabilityReadyLine, true)
	assert.True(t, HasCapability(mock, CapabilityReadyLine))

	require.NoError(t, mock.SetMode(ModeConfiguration))
	assert.Equal(t, ModeConfiguration, mock.CurrentMode())
	assert.Equal(t, TransportMock, mock.Type())
}

func TestTransportWithRetry_Transmit(t *testing.T) {
	t.Parallel()

	fast := &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2,
		RetryTimeout:      time.Second,
	}

	tests := []struct {
		txErr     error
		wantErr   error
		name      string
		wantCount int
	}{
		{name: "success", wantCount: 1},
		{name: "transient failure", txErr: NewTransportWriteError("transmit", "mock"), wantErr: ErrTransportWrite},
		{name: "closed port", txErr: NewTransportClosedError("transmit", "mock"), wantErr: ErrTransportClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mock := NewMockTransport()
			mock.SetTransmitError(tt.txErr)
			tr := NewTransportWithRetry(mock, fast)

			err := tr.Transmit(context.Background(), []byte{0x55, 0x55})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				var te *TransportError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, "Transmit", te.Op)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, mock.TransmitCount())
		})
	}
}

func TestTransportWithRetry_BusyModuleRetried(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetTransmitErrors(
		NewTransportNotReadyError("Transmit", "mock"),
		NewTransportWriteError("Transmit", "mock"),
	)
	tr := NewTransportWithRetry(mock, &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
		RetryTimeout:      time.Second,
	})

	require.NoError(t, tr.Transmit(context.Background(), []byte{0x55}))
	assert.Equal(t, 1, mock.TransmitCount())

	mock.SetTransmitErrors(NewTransportNotReadyError("Transmit", "mock"))
	tr.SetRetryConfig(&RetryConfig{MaxAttempts: 1})
	err := tr.Transmit(context.Background(), []byte{0x55})
	require.ErrorIs(t, err, ErrTransportNotReady)
	assert.False(t, IsTerminal(err), "a busy module only costs the command one attempt")
}

func TestTransportWithRetry_Forwarding(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetCapability(CapabilityModePins, true)
	tr := NewTransportWithRetry(mock, nil)

	assert.True(t, tr.IsConnected())
	assert.Equal(t, TransportMock, tr.Type())
	assert.True(t, tr.HasCapability(CapabilityModePins))
	require.NoError(t, tr.SetMode(ModeConfiguration))
	assert.Equal(t, ModeConfiguration, mock.CurrentMode())

	mock.Inject([]byte{1, 2, 3})
	data, err := tr.Receive(context.Background(), 8, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	require.NoError(t, tr.Close())
	assert.False(t, mock.IsConnected())
	require.NoError(t, tr.Open())
	assert.True(t, mock.IsConnected())
}
