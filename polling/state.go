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

// Reachability is the sweeper's finite state machine for one station
type Reachability int

const (
	StateUnknown Reachability = iota
	StateReachable
	StateDegraded
	StateUnreachable
)

func (r Reachability) String() string {
	switch r {
	case StateUnknown:
		return "unknown"
	case StateReachable:
		return "reachable"
	case StateDegraded:
		return "degraded"
	case StateUnreachable:
		return "unreachable"
	default:
		return "invalid"
	}
}

// StationState tracks how a station has answered recent sweeps
type StationState struct {
	LastSeen time.Time
	State    Reachability
	// Failures is the number of consecutive sweeps without an answer.
	Failures int
	// skip is the number of sweeps still to sit out; backoff is the value it
	// was last reset to.
	skip    int
	backoff int
}

// TransitionToReachable records an answer and clears any backoff
func (s *StationState) TransitionToReachable(now time.Time) {
	s.State = StateReachable
	s.LastSeen = now
	s.Failures = 0
	s.skip = 0
	s.backoff = 0
}

// RecordFailure records a missed answer. It returns true when this failure
// made the station unreachable.
func (s *StationState) RecordFailure(cfg *Config) bool {
	s.Failures++
	if s.Failures < cfg.UnreachableAfter {
		s.State = StateDegraded
		return false
	}

	wasUnreachable := s.State == StateUnreachable
	s.State = StateUnreachable
	switch {
	case s.backoff == 0:
		s.backoff = 1
	case s.backoff*2 > cfg.MaxSkip:
		s.backoff = cfg.MaxSkip
	default:
		s.backoff *= 2
	}
	s.skip = s.backoff
	return !wasUnreachable
}

// ShouldSkip reports whether the station sits out this sweep, consuming one
// skip when it does
func (s *StationState) ShouldSkip() bool {
	if s.State != StateUnreachable || s.skip <= 0 {
		return false
	}
	s.skip--
	return true
}

// TransitionToUnknown forgets everything learned about the station, which is
// used after the host wakes from sleep
func (s *StationState) TransitionToUnknown() {
	*s = StationState{}
}
