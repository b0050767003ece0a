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

// Package frame holds the byte-level layout of the 22-byte lamp control frame:
// offsets, the sync pattern, CRC computation and the sync/CRC scan used to
// recover frame boundaries in a noisy serial stream. It deliberately knows
// nothing about tags, roles or node identity.
package frame

// Sync pattern
const (
	SyncByte = 0x55
)

// Field offsets within a frame
const (
	HeaderOffset  = 0
	SrcOffset     = 2
	DestOffset    = 8
	SeqOffset     = 14
	TagOffset     = 15
	PayloadOffset = 16
	CRCOffset     = 20
)

// Field and frame sizes
const (
	HeaderLength  = 2
	IDLength      = 6
	PayloadLength = 4
	CRCLength     = 2
	Length        = CRCOffset + CRCLength // 22
)

// Header is the fixed two-byte sync pattern that starts every frame.
var Header = []byte{SyncByte, SyncByte}
