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

package testing

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

var testStream = func() []byte {
	out := make([]byte, 200)
	for i := range out {
		out[i] = byte(i)
	}
	return out
}()

// readAll drains the connection until want bytes arrived or the backend is empty.
func readAll(t *testing.T, conn *JitteryConnection, want int) ([]byte, int) {
	t.Helper()
	got := make([]byte, 0, want)
	buf := make([]byte, 64)
	reads := 0
	for len(got) < want && reads < 1000 {
		n, err := conn.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			t.Fatalf("Read failed: %v", err)
		}
		if n == 0 && errors.Is(err, io.EOF) {
			break
		}
		got = append(got, buf[:n]...)
		reads++
	}
	return got, reads
}

func TestJitteryConnection_BasicReadWrite(t *testing.T) {
	t.Parallel()

	var backend bytes.Buffer
	conn := NewJitteryConnection(&backend, JitterConfig{Seed: 12345})

	written, err := conn.Write(testStream[:22])
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if written != 22 {
		t.Fatalf("Write returned wrong count: got %d, want 22", written)
	}

	got, _ := readAll(t, conn, 22)
	if !bytes.Equal(got, testStream[:22]) {
		t.Errorf("got %X, want %X", got, testStream[:22])
	}
}

func TestJitteryConnection_FragmentationKeepsOrder(t *testing.T) {
	t.Parallel()

	backend := bytes.NewBuffer(append([]byte(nil), testStream...))
	conn := NewJitteryConnection(backend, JitterConfig{
		FragmentReads:    true,
		FragmentMinBytes: 1,
		Seed:             42,
	})

	got, reads := readAll(t, conn, len(testStream))
	if !bytes.Equal(got, testStream) {
		t.Fatalf("fragmented stream differs from the original")
	}
	if reads < 4 {
		t.Errorf("expected fragmented delivery, got %d reads", reads)
	}
}

func TestJitteryConnection_Latency(t *testing.T) {
	t.Parallel()

	backend := bytes.NewBuffer(append([]byte(nil), testStream[:10]...))
	conn := NewJitteryConnection(backend, JitterConfig{MaxLatencyMs: 10, Seed: 7})

	start := time.Now()
	for range 5 {
		_, _ = conn.Read(make([]byte, 2))
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("latency out of bounds: %v", elapsed)
	}
}

func TestJitteryConnection_PacketBoundary(t *testing.T) {
	t.Parallel()

	backend := bytes.NewBuffer(append([]byte(nil), testStream[:100]...))
	conn := NewJitteryConnection(backend, JitterConfig{PacketBoundary: 58})

	buf := make([]byte, 100)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != 58 {
		t.Errorf("first read = %d bytes, want 58", n)
	}
	n, _ = conn.Read(buf)
	if n != 42 {
		t.Errorf("second read = %d bytes, want 42", n)
	}
}

func TestJitteryConnection_StallAfterBytes(t *testing.T) {
	t.Parallel()

	backend := bytes.NewBuffer(append([]byte(nil), testStream[:40]...))
	conn := NewJitteryConnection(backend, JitterConfig{
		StallAfterBytes: 22,
		StallDuration:   20 * time.Millisecond,
	})

	buf := make([]byte, 40)
	n, _ := conn.Read(buf)
	if n != 22 {
		t.Fatalf("read before stall = %d bytes, want 22", n)
	}

	start := time.Now()
	n, _ = conn.Read(buf)
	if time.Since(start) < 20*time.Millisecond {
		t.Errorf("expected a stall")
	}
	if n != 18 {
		t.Errorf("read after stall = %d bytes, want 18", n)
	}

	conn.ResetStallState()
	if conn.Buffered() != 0 {
		t.Errorf("buffer should be empty, has %d bytes", conn.Buffered())
	}
}

func TestDefaultJitterConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultJitterConfig()
	if cfg.MaxLatencyMs <= 0 {
		t.Error("default config should have latency")
	}
	if !cfg.FragmentReads {
		t.Error("default config should fragment reads")
	}
}
