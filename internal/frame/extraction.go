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

package frame

import "bytes"

// Status is the outcome of scanning a receive buffer for a frame.
type Status int

const (
	// StatusNeedMore means no complete candidate frame is buffered yet.
	StatusNeedMore Status = iota
	// StatusResync means a candidate frame failed its CRC check.
	StatusResync
	// StatusOK means a valid frame starts at the returned offset.
	StatusOK
)

// String returns a short name for the status
func (s Status) String() string {
	switch s {
	case StatusNeedMore:
		return "need-more"
	case StatusResync:
		return "resync"
	case StatusOK:
		return "ok"
	default:
		return "unknown"
	}
}

// FindSync returns the offset of the first sync pattern in buf, or -1.
func FindSync(buf []byte) int {
	return bytes.Index(buf, Header)
}

// Scan looks for the next frame in buf.
//
// The returned offset depends on the status:
//   - StatusNeedMore: number of leading bytes that can be discarded because no
//     frame can start inside them. A lone trailing sync byte is kept since it
//     may be the first half of a header still in flight.
//   - StatusResync: number of bytes to drop, which is the sync offset plus the
//     header length. Only the bad header is skipped so that a genuine header
//     buried inside the corrupted candidate is found on the next scan.
//   - StatusOK: offset of the first byte of the valid frame.
func Scan(buf []byte) (Status, int) {
	idx := FindSync(buf)
	if idx < 0 {
		discard := len(buf)
		if discard > 0 && buf[discard-1] == SyncByte {
			discard--
		}
		return StatusNeedMore, discard
	}

	if len(buf)-idx < Length {
		return StatusNeedMore, idx
	}

	if !ValidateCRC(buf[idx : idx+Length]) {
		return StatusResync, idx + HeaderLength
	}

	return StatusOK, idx
}
