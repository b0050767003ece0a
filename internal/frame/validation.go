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

import (
	"bytes"
	"encoding/binary"
)

// ValidateCRC reports whether buf holds exactly one frame whose trailing CRC
// matches the CRC of the preceding bytes.
func ValidateCRC(buf []byte) bool {
	if len(buf) != Length {
		return false
	}
	want := binary.BigEndian.Uint16(buf[CRCOffset:])
	return CalculateCRC(buf[:CRCOffset]) == want
}

// HasHeader reports whether buf starts with the sync pattern.
func HasHeader(buf []byte) bool {
	return len(buf) >= HeaderLength && bytes.Equal(buf[:HeaderLength], Header)
}
