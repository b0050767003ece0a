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
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// Role is the part a node plays in the network. It is fixed for the life of a
// Node.
type Role int

const (
	// RoleRC is the remote controller that issues commands.
	RoleRC Role = iota
	// RoleSTA is a lamp station that executes commands and answers polls.
	RoleSTA
	// RoleRelay forwards frames to extend range.
	RoleRelay
)

func (r Role) String() string {
	switch r {
	case RoleRC:
		return "RC"
	case RoleSTA:
		return "STA"
	case RoleRelay:
		return "RELAY"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole accepts "rc", "sta" or "relay" in any case.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rc":
		return RoleRC, nil
	case "sta":
		return RoleSTA, nil
	case "relay":
		return RoleRelay, nil
	default:
		return 0, fmt.Errorf("unknown role %q (want rc, sta or relay)", s)
	}
}

// Admits reports whether a node with this role and identity queues f.
// A controller only takes frames addressed to it, a station also takes
// broadcasts and a relay takes everything so it can decide what to forward.
func (r Role) Admits(self NodeID, f Frame) bool {
	switch r {
	case RoleRC:
		return f.Dest == self
	case RoleSTA:
		return f.Dest == self || f.IsBroadcast()
	case RoleRelay:
		return true
	default:
		return false
	}
}

// RoleHandler reacts to admitted frames on behalf of one role. Handlers are
// driven by a single goroutine.
type RoleHandler interface {
	OnFrame(ctx context.Context, f Frame) error
	Role() Role
}

// Clock sleeps. Tests swap it out to avoid real relay and settle delays.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BackoffFunc draws a random delay in [0, maxBackoff].
type BackoffFunc func(maxBackoff time.Duration) time.Duration

// LampActuator drives the physical lamp, or an indicator standing in for it.
type LampActuator interface {
	Apply(state LampState) error
}

// TelemetrySource supplies the cached values a station reports when polled.
type TelemetrySource interface {
	Telemetry() Telemetry
}

// StaticTelemetry is a TelemetrySource that always reports the same values.
type StaticTelemetry Telemetry

// Telemetry implements TelemetrySource.
func (s StaticTelemetry) Telemetry() Telemetry {
	return Telemetry(s)
}

// frameSender encodes and transmits the frames a node originates. It is used
// by one goroutine only.
type frameSender struct {
	transport Transport
	trace     *TraceBuffer
	self      NodeID
	testing   bool
	count     uint16
}

// send transmits one frame and returns its wire bytes. With the testing flag
// set the last two payload bytes carry a running frame counter.
func (s *frameSender) send(ctx context.Context, dest NodeID, seq byte, tag Tag, payload [PayloadLength]byte) ([]byte, error) {
	if s.testing {
		binary.BigEndian.PutUint16(payload[PayloadLength-2:], s.count)
		s.count++
	}

	raw, err := EncodeFrame(s.self, dest, seq, tag, payload[:])
	if err != nil {
		return nil, err
	}
	Debugf("tx: %s %s->%s seq=%d [% X]", tag, s.self, dest, seq, raw)
	if s.trace != nil {
		s.trace.RecordTX(Frame{Src: s.self, Dest: dest, Seq: seq, Tag: tag, Payload: payload})
	}

	if err := s.transport.Transmit(ctx, raw); err != nil {
		Debugf("tx: %s to %s failed: %v", tag, dest, err)
		return raw, fmt.Errorf("transmit %s: %w", tag, err)
	}
	return raw, nil
}

// forward retransmits a received frame unchanged.
func (s *frameSender) forward(ctx context.Context, f Frame) error {
	raw := f.Bytes()
	Debugf("relay: forwarding %s", f)
	if err := s.transport.Transmit(ctx, raw); err != nil {
		return fmt.Errorf("forward %s: %w", f.Tag, err)
	}
	return nil
}

// newRoleHandler builds the frame handler for a station or relay. The
// controller has no handler of its own; its Engine consumes the queue.
func newRoleHandler(role Role, sender *frameSender, opts *nodeOptions, timing Timing) (RoleHandler, error) {
	switch role {
	case RoleSTA:
		return newStationHandler(sender, opts.actuator, opts.telemetry), nil
	case RoleRelay:
		return newRelayHandler(sender, opts.clock, opts.backoff, timing), nil
	default:
		return nil, fmt.Errorf("no frame handler for role %s", role)
	}
}
