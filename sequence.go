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

// SequenceCeiling is the value the controller's counter may never reach;
// crossing it triggers a network-wide sequence reset.
const SequenceCeiling = 25

// SequenceGuard suppresses duplicate and relayed copies of frames.
//
// A sequence number is admitted when it is newer than the last one seen, or
// when it is 0 and the last one seen was not 0. The second rule honours a
// broadcast reset exactly once. Before anything is seen every value is
// admitted.
//
// A SequenceGuard is not safe for concurrent use; each role loop owns one.
type SequenceGuard struct {
	lastSeen byte
	seen     bool
}

// Admit reports whether seq is fresh and, if so, records it.
func (g *SequenceGuard) Admit(seq byte) bool {
	if g.seen && seq <= g.lastSeen && (seq != 0 || g.lastSeen == 0) {
		return false
	}
	g.lastSeen = seq
	g.seen = true
	return true
}

// LastSeen returns the newest admitted value and whether there is one.
func (g *SequenceGuard) LastSeen() (byte, bool) {
	return g.lastSeen, g.seen
}

// Prime records seq as seen without checking it.
func (g *SequenceGuard) Prime(seq byte) {
	g.lastSeen = seq
	g.seen = true
}

// Reply returns the sequence number for a frame answering the last admitted
// one. The reply value becomes the new last seen value, so a reply is always
// newer than the request it answers and a retransmitted request with the
// same number is still suppressed.
func (g *SequenceGuard) Reply() byte {
	g.lastSeen++
	g.seen = true
	return g.lastSeen
}

// SendCounter numbers the frames a remote controller originates.
//
// The counter steps by 2 so the odd value in between stays free for the
// station's reply. Accepted replies move the counter forward as well.
type SendCounter struct {
	last         int
	pendingReset bool
}

// NewSendCounter returns a counter whose first value is 0.
func NewSendCounter() *SendCounter {
	return &SendCounter{last: -2}
}

// Next returns the sequence number for the next frame. When the counter would
// reach SequenceCeiling it wraps: a broadcast frame is sent as 0, while a
// unicast frame needs a broadcast SnReset with seq 0 sent first (needReset)
// and then goes out as 1.
//
// A wrap stays pending until ResetSent is called. Every unicast frame until
// then is numbered 1 and asks for the reset again.
func (c *SendCounter) Next(broadcast bool) (seq byte, needReset bool) {
	if c.pendingReset {
		if broadcast {
			c.last = 0
			return 0, false
		}
		c.last = 1
		return 1, true
	}

	c.last += 2
	if c.last >= SequenceCeiling {
		if broadcast {
			c.last = 0
		} else {
			c.last = 1
			c.pendingReset = true
		}
	}
	return byte(c.last), c.pendingReset
}

// ResetSent records that the broadcast SnReset reached the radio.
func (c *SendCounter) ResetSent() {
	c.pendingReset = false
}

// ResetPending reports whether a wrap is still waiting for its SnReset.
func (c *SendCounter) ResetPending() bool {
	return c.pendingReset
}

// Current returns the last value sent or accepted.
func (c *SendCounter) Current() int {
	return c.last
}

// Accept reports whether a response carrying seq is newer than everything
// sent or accepted so far, and records it if so. Relayed copies of a reply
// that was already accepted fail this check.
func (c *SendCounter) Accept(seq byte) bool {
	if int(seq) <= c.last {
		return false
	}
	c.last = int(seq)
	return true
}
