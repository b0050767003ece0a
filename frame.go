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
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-lampnet/internal/frame"
)

// FrameLength is the fixed size of every frame on the air.
const FrameLength = frame.Length

// PayloadLength is the size of the tag-dependent value field.
const PayloadLength = frame.PayloadLength

// NodeID is the 6-byte radio identity of a node.
type NodeID [frame.IDLength]byte

// Broadcast addresses every node.
var Broadcast NodeID

// ParseNodeID parses a 12 digit hex string such as "000000000002".
func ParseNodeID(s string) (NodeID, error) {
	var id NodeID
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != 2*len(id) {
		return id, fmt.Errorf("%w: %q must be %d hex digits", ErrInvalidNodeID, s, 2*len(id))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("%w: %q: %w", ErrInvalidNodeID, s, err)
	}
	return id, nil
}

// MustParseNodeID is ParseNodeID for constants; it panics on bad input.
func MustParseNodeID(s string) NodeID {
	id, err := ParseNodeID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// IsBroadcast reports whether id is the all-zero broadcast address.
func (id NodeID) IsBroadcast() bool {
	return id == Broadcast
}

// Tag identifies the message kind carried by a frame.
type Tag byte

// Wire values for every tag the protocol defines.
const (
	TagSnReset    Tag = 0x00
	TagAck        Tag = 0x01
	TagNack       Tag = 0x02
	TagPoll       Tag = 0x03
	TagPollAck    Tag = 0x04
	TagLampCtrl   Tag = 0x05
	TagPower1Poll Tag = 0x06
	TagPower1Ack  Tag = 0x07
	TagPower2Poll Tag = 0x08
	TagPower2Ack  Tag = 0x09
	TagEnv1Poll   Tag = 0x0A
	TagEnv1Ack    Tag = 0x0B
	TagEnv2Poll   Tag = 0x0C
	TagEnv2Ack    Tag = 0x0D
)

var tagNames = map[Tag]string{
	TagSnReset:    "SnReset",
	TagAck:        "Ack",
	TagNack:       "Nack",
	TagPoll:       "Poll",
	TagPollAck:    "PollAck",
	TagLampCtrl:   "LampCtrl",
	TagPower1Poll: "Power1Poll",
	TagPower1Ack:  "Power1Ack",
	TagPower2Poll: "Power2Poll",
	TagPower2Ack:  "Power2Ack",
	TagEnv1Poll:   "Env1Poll",
	TagEnv1Ack:    "Env1Ack",
	TagEnv2Poll:   "Env2Poll",
	TagEnv2Ack:    "Env2Ack",
}

// Known reports whether t is one of the defined tags.
func (t Tag) Known() bool {
	_, ok := tagNames[t]
	return ok
}

// AckFor returns the tag a station answers t with. LampCtrl is answered with
// PollAck carrying the applied lamp state.
func (t Tag) AckFor() (Tag, bool) {
	switch t {
	case TagPoll, TagLampCtrl:
		return TagPollAck, true
	case TagPower1Poll:
		return TagPower1Ack, true
	case TagPower2Poll:
		return TagPower2Ack, true
	case TagEnv1Poll:
		return TagEnv1Ack, true
	case TagEnv2Poll:
		return TagEnv2Ack, true
	default:
		return 0, false
	}
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tag(0x%02X)", byte(t))
}

// Frame is a decoded radio frame.
type Frame struct {
	Src     NodeID
	Dest    NodeID
	Payload [PayloadLength]byte
	Seq     byte
	Tag     Tag
}

// EncodeFrame builds the wire bytes for one frame, CRC included.
func EncodeFrame(src, dest NodeID, seq byte, tag Tag, payload []byte) ([]byte, error) {
	if len(payload) != PayloadLength {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPayloadLength, len(payload))
	}

	buf := make([]byte, 0, FrameLength)
	buf = append(buf, frame.Header...)
	buf = append(buf, src[:]...)
	buf = append(buf, dest[:]...)
	buf = append(buf, seq, byte(tag))
	buf = append(buf, payload...)
	return frame.AppendCRC(buf), nil
}

// Bytes re-encodes the frame.
func (f Frame) Bytes() []byte {
	// payload length is fixed by the array type so encoding cannot fail
	buf, _ := EncodeFrame(f.Src, f.Dest, f.Seq, f.Tag, f.Payload[:])
	return buf
}

// IsBroadcast reports whether the frame is addressed to every node.
func (f Frame) IsBroadcast() bool {
	return f.Dest.IsBroadcast()
}

func (f Frame) String() string {
	return fmt.Sprintf("%s %s->%s seq=%d payload=%s",
		f.Tag, f.Src, f.Dest, f.Seq, hex.EncodeToString(f.Payload[:]))
}

// parseFrame reads fields out of exactly FrameLength CRC-checked bytes.
func parseFrame(buf []byte) Frame {
	var f Frame
	copy(f.Src[:], buf[frame.SrcOffset:frame.DestOffset])
	copy(f.Dest[:], buf[frame.DestOffset:frame.SeqOffset])
	f.Seq = buf[frame.SeqOffset]
	f.Tag = Tag(buf[frame.TagOffset])
	copy(f.Payload[:], buf[frame.PayloadOffset:frame.CRCOffset])
	return f
}

// DecodeStatus is the outcome of DecodeFrame.
type DecodeStatus int

const (
	// DecodeNeedMoreBytes means no complete frame is buffered yet.
	DecodeNeedMoreBytes DecodeStatus = iota
	// DecodeResync means a candidate frame failed its CRC.
	DecodeResync
	// DecodeOK means Frame holds a valid frame.
	DecodeOK
)

func (s DecodeStatus) String() string {
	switch s {
	case DecodeNeedMoreBytes:
		return "need-more-bytes"
	case DecodeResync:
		return "resync"
	case DecodeOK:
		return "ok"
	default:
		return "unknown"
	}
}

// DecodeResult describes what DecodeFrame found at the front of a buffer.
type DecodeResult struct {
	Frame  Frame
	Status DecodeStatus
	// Skip is the number of leading bytes the caller can drop: garbage ahead
	// of the sync pattern, or for DecodeResync the bad header as well.
	Skip int
	// Consumed is the number of bytes up to the end of a decoded frame.
	Consumed int
}

// DecodeFrame scans buf for the next frame.
//
// A CRC mismatch drops only the two header bytes so a genuine sync pattern
// inside the rejected candidate is still found on the next call.
func DecodeFrame(buf []byte) DecodeResult {
	status, off := frame.Scan(buf)
	switch status {
	case frame.StatusOK:
		return DecodeResult{
			Status:   DecodeOK,
			Frame:    parseFrame(buf[off : off+FrameLength]),
			Skip:     off,
			Consumed: off + FrameLength,
		}
	case frame.StatusResync:
		return DecodeResult{Status: DecodeResync, Skip: off}
	default:
		return DecodeResult{Status: DecodeNeedMoreBytes, Skip: off}
	}
}

// ScannerStats counts what a FrameScanner recovered from.
type ScannerStats struct {
	Frames    uint64
	Resyncs   uint64
	Discarded uint64
}

// FrameScanner accumulates received bytes and yields complete frames.
// Framing errors are handled internally; they only show up in Stats.
// A FrameScanner is owned by one goroutine.
type FrameScanner struct {
	buf   []byte
	stats ScannerStats
}

// Feed appends received bytes.
func (s *FrameScanner) Feed(data []byte) {
	s.buf = append(s.buf, data...)
}

// Next returns the next complete frame, if one is buffered.
func (s *FrameScanner) Next() (Frame, bool) {
	for {
		res := DecodeFrame(s.buf)
		switch res.Status {
		case DecodeOK:
			s.stats.Frames++
			s.stats.Discarded += uint64(res.Skip)
			s.drop(res.Consumed)
			return res.Frame, true
		case DecodeResync:
			Debugf("rx: crc mismatch, dropping %d bytes", res.Skip)
			s.stats.Resyncs++
			s.stats.Discarded += uint64(res.Skip)
			s.drop(res.Skip)
		default:
			s.stats.Discarded += uint64(res.Skip)
			s.drop(res.Skip)
			return Frame{}, false
		}
	}
}

// Buffered returns the number of bytes waiting for more input.
func (s *FrameScanner) Buffered() int {
	return len(s.buf)
}

// Stats returns the scanner counters.
func (s *FrameScanner) Stats() ScannerStats {
	return s.stats
}

func (s *FrameScanner) drop(n int) {
	if n <= 0 {
		return
	}
	rest := copy(s.buf, s.buf[n:])
	s.buf = s.buf[:rest]
}
