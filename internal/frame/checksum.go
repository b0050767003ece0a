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
	"encoding/binary"

	"github.com/sigurn/crc16"
)

// crcTable is CRC-16/CCITT-FALSE: poly 0x1021, init 0xFFFF, no reflection, no xorout.
var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// CalculateCRC returns the frame CRC over data.
func CalculateCRC(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}

// AppendCRC appends the big-endian CRC of data to data.
func AppendCRC(data []byte) []byte {
	return binary.BigEndian.AppendUint16(data, CalculateCRC(data))
}
