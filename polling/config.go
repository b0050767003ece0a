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

package polling

import "time"

// SleepRecoveryConfig configures automatic recovery after host sleep/wake
type SleepRecoveryConfig struct {
	// Enabled enables sleep detection and recovery attempts
	Enabled bool

	// TimeDiscontinuityThreshold is the minimum elapsed time beyond the expected
	// sweep interval that indicates a sleep occurred. Default: 2 seconds
	TimeDiscontinuityThreshold time.Duration

	// MaxRecoveryAttempts is the number of recovery attempts before giving up
	// until the next sweep. Default: 3
	MaxRecoveryAttempts int

	// RecoveryBackoff is the delay between recovery attempts
	RecoveryBackoff time.Duration
}

// DefaultSleepRecoveryConfig returns sensible defaults for sleep recovery
func DefaultSleepRecoveryConfig() SleepRecoveryConfig {
	return SleepRecoveryConfig{
		Enabled:                    true,
		TimeDiscontinuityThreshold: 2 * time.Second,
		MaxRecoveryAttempts:        3,
		RecoveryBackoff:            500 * time.Millisecond,
	}
}

// DetectSleep checks if the elapsed time since the last sweep indicates a system sleep.
// Returns true if elapsed time exceeds (interval + TimeDiscontinuityThreshold).
func (cfg SleepRecoveryConfig) DetectSleep(elapsed, interval time.Duration) bool {
	if !cfg.Enabled {
		return false
	}
	expectedMax := interval + cfg.TimeDiscontinuityThreshold
	return elapsed > expectedMax
}

// Config holds sweeper configuration options
type Config struct {
	// Interval is the time between the start of two sweeps.
	Interval time.Duration
	// UnreachableAfter is the number of consecutive failed sweeps after which
	// a station is reported unreachable.
	UnreachableAfter int
	// MaxSkip caps how many sweeps an unreachable station sits out between
	// attempts. The skip count doubles after every further failure.
	MaxSkip int
	// Telemetry also polls both power and both environment channels of every
	// station that answered its lamp poll.
	Telemetry bool
	// Toggle broadcasts AllOn and AllOff on alternate sweeps before polling,
	// which exercises every lamp on the network.
	Toggle bool
	// SleepRecovery configures automatic recovery after host sleep/wake cycles
	SleepRecovery SleepRecoveryConfig
}

// DefaultConfig returns the default sweeper configuration
func DefaultConfig() *Config {
	return &Config{
		Interval:         time.Minute,
		UnreachableAfter: 3,
		MaxSkip:          8,
		SleepRecovery:    DefaultSleepRecoveryConfig(),
	}
}
