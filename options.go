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
	"time"
)

// Timing holds the protocol's retry and delay parameters.
type Timing struct {
	// BaseTimeout is the per-attempt response wait before relay allowance.
	// Zero means twice E32Delay.
	BaseTimeout        time.Duration
	E32Delay           time.Duration
	RelayDelay         time.Duration
	RelayRandomBackoff time.Duration
	// Hop is the worst-case number of relays between controller and station.
	Hop int
	// Retry is the number of transmissions per unicast command.
	Retry int
}

// DefaultTiming returns the timing of a single-tier network.
func DefaultTiming() Timing {
	return Timing{
		Hop:                DefaultHop,
		Retry:              DefaultRetry,
		E32Delay:           DefaultE32Delay,
		RelayDelay:         DefaultRelayDelay,
		RelayRandomBackoff: DefaultRelayRandomBackoff,
	}
}

// relayAllowance is the worst-case time for a frame to cross every relay tier.
func (t Timing) relayAllowance() time.Duration {
	return time.Duration(t.Hop) * (t.RelayDelay + t.RelayRandomBackoff)
}

// ResponseTimeout is how long one unicast attempt waits for its answer.
func (t Timing) ResponseTimeout() time.Duration {
	base := t.BaseTimeout
	if base <= 0 {
		base = 2 * t.E32Delay
	}
	return base + t.relayAllowance()
}

// SettleDelay is the pause after a broadcast so that relay fan-out finishes
// before the next transmission.
func (t Timing) SettleDelay() time.Duration {
	return t.relayAllowance() + t.E32Delay
}

// Validate rejects timing that cannot work.
func (t Timing) Validate() error {
	switch {
	case t.Hop < 0:
		return fmt.Errorf("hop must not be negative, got %d", t.Hop)
	case t.Retry < 1:
		return fmt.Errorf("retry must be at least 1, got %d", t.Retry)
	case t.E32Delay < 0, t.RelayDelay < 0, t.RelayRandomBackoff < 0, t.BaseTimeout < 0:
		return errors.New("delays must not be negative")
	case t.ResponseTimeout() <= 0:
		return errors.New("response timeout must be positive")
	default:
		return nil
	}
}

// Config describes one node.
type Config struct {
	Stations []StationConfig
	Timing   Timing
	Role     Role
	ID       NodeID
	// Testing stamps a running counter into the last two payload bytes of
	// every originated frame so captures can be correlated.
	Testing bool
}

// Validate checks the configuration before a node is built.
func (c *Config) Validate() error {
	if c.ID.IsBroadcast() {
		return fmt.Errorf("%w: node id must not be the broadcast address", ErrInvalidNodeID)
	}
	if c.Role != RoleRC && c.Role != RoleSTA && c.Role != RoleRelay {
		return fmt.Errorf("invalid role %s", c.Role)
	}
	if err := c.Timing.Validate(); err != nil {
		return fmt.Errorf("timing: %w", err)
	}
	return nil
}

// Option configures a Node
type Option func(*nodeOptions) error

type nodeOptions struct {
	clock     Clock
	backoff   BackoffFunc
	actuator  LampActuator
	telemetry TelemetrySource
	queue     *FrameQueue
	traceSize int
}

func defaultNodeOptions() *nodeOptions {
	return &nodeOptions{
		clock:     realClock{},
		backoff:   RandomBackoff,
		traceSize: 32,
	}
}

// WithClock replaces the clock used for relay, settle and backoff sleeps.
func WithClock(clock Clock) Option {
	return func(o *nodeOptions) error {
		if clock == nil {
			return errors.New("clock must not be nil")
		}
		o.clock = clock
		return nil
	}
}

// WithBackoff replaces the random backoff draw used by relays.
func WithBackoff(backoff BackoffFunc) Option {
	return func(o *nodeOptions) error {
		if backoff == nil {
			return errors.New("backoff must not be nil")
		}
		o.backoff = backoff
		return nil
	}
}

// WithLampActuator sets what a station drives when it applies a lamp command.
func WithLampActuator(actuator LampActuator) Option {
	return func(o *nodeOptions) error {
		o.actuator = actuator
		return nil
	}
}

// WithTelemetrySource sets where a station reads its telemetry from.
func WithTelemetrySource(source TelemetrySource) Option {
	return func(o *nodeOptions) error {
		o.telemetry = source
		return nil
	}
}

// WithQueue shares a frame queue with the caller, mostly for inspection in tests.
func WithQueue(queue *FrameQueue) Option {
	return func(o *nodeOptions) error {
		if queue == nil {
			return errors.New("queue must not be nil")
		}
		o.queue = queue
		return nil
	}
}

// WithTraceSize sets how many wire entries a failed command's trace keeps.
func WithTraceSize(entries int) Option {
	return func(o *nodeOptions) error {
		if entries < 1 {
			return fmt.Errorf("trace size must be at least 1, got %d", entries)
		}
		o.traceSize = entries
		return nil
	}
}
