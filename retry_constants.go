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

import "time"

// Connection retry constants control how the radio's serial port is opened.
const (
	// DefaultConnectionRetries is the number of attempts to open the transport.
	DefaultConnectionRetries = 3
	// ConnectionInitialBackoff is the initial delay between open attempts.
	ConnectionInitialBackoff = 100 * time.Millisecond
	// ConnectionMaxBackoff is the maximum delay between open attempts.
	ConnectionMaxBackoff = 500 * time.Millisecond
	// ConnectionBackoffMultiplier is the exponential backoff multiplier.
	ConnectionBackoffMultiplier = 2.0
	// ConnectionJitter is the random jitter factor (0.0-1.0) to prevent thundering herd.
	ConnectionJitter = 0.1
	// ConnectionRetryTimeout is the overall timeout for all open attempts.
	ConnectionRetryTimeout = 10 * time.Second
)

// Command retry defaults. A unicast command is sent at most DefaultRetry times.
const (
	// DefaultRetry is the number of transmissions per unicast command.
	DefaultRetry = 3
	// DefaultHop is the relay depth assumed when none is configured.
	DefaultHop = 0
)

// Radio timing defaults. The E32 needs a wake-up period before it puts a
// frame on the air and relays wait before forwarding so that the addressed
// station answers first.
const (
	// DefaultE32Delay is the module wake and air time allowance.
	DefaultE32Delay = 2 * time.Second
	// DefaultRelayDelay is the fixed wait before a relay forwards a unicast frame.
	DefaultRelayDelay = 1 * time.Second
	// DefaultRelayRandomBackoff is the upper bound of a relay's random backoff.
	DefaultRelayRandomBackoff = 3 * time.Second
)

// Transport timing constants.
const (
	// MaxReceiveSlice bounds a single transport read so loop timeouts and
	// cancellation stay accurate.
	MaxReceiveSlice = 1 * time.Second
	// ReceiveErrorBackoff is the pause after a transient receive error.
	ReceiveErrorBackoff = 100 * time.Millisecond
	// DefaultAuxTimeout bounds the wait for the E32 AUX line before a transmit.
	DefaultAuxTimeout = 3 * time.Second
	// DefaultAuxPollInterval is how often the AUX line is sampled.
	DefaultAuxPollInterval = 100 * time.Millisecond
)
