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
	"fmt"
	"strings"
)

// LampMode selects which lamp heads are lit.
type LampMode byte

// Lamp modes as carried in byte 0 of a LampCtrl or PollAck payload.
const (
	LampAllOff  LampMode = 0x00
	LampLeftOn  LampMode = 0x01
	LampRightOn LampMode = 0x02
	LampAllOn   LampMode = 0x03
)

func (m LampMode) String() string {
	switch m {
	case LampAllOff:
		return "AllOff"
	case LampLeftOn:
		return "LeftOn"
	case LampRightOn:
		return "RightOn"
	case LampAllOn:
		return "AllOn"
	default:
		return fmt.Sprintf("LampMode(0x%02X)", byte(m))
	}
}

// ParseLampMode accepts the names printed by LampMode.String, case-insensitively,
// plus the short forms "on" and "off".
func ParseLampMode(s string) (LampMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "alloff", "off":
		return LampAllOff, nil
	case "lefton", "left":
		return LampLeftOn, nil
	case "righton", "right":
		return LampRightOn, nil
	case "allon", "on":
		return LampAllOn, nil
	default:
		return 0, fmt.Errorf("unknown lamp mode %q", s)
	}
}

// Lit reports whether any lamp head is on.
func (m LampMode) Lit() bool {
	return m == LampLeftOn || m == LampRightOn || m == LampAllOn
}

// LampState is the lamp part of a LampCtrl or PollAck payload.
type LampState struct {
	Mode        LampMode
	Brightness1 byte
	Brightness2 byte
}

// Canonical lamp states used by the all-lamps commands.
var (
	LampStateAllOn  = LampState{Mode: LampAllOn, Brightness1: 0xFF, Brightness2: 0xFF}
	LampStateAllOff = LampState{Mode: LampAllOff}
)

// Payload encodes the state; the fourth byte is reserved and always zero.
func (s LampState) Payload() [PayloadLength]byte {
	return [PayloadLength]byte{byte(s.Mode), s.Brightness1, s.Brightness2, 0}
}

func (s LampState) String() string {
	return fmt.Sprintf("%s ch1=%d ch2=%d", s.Mode, s.Brightness1, s.Brightness2)
}

// LampStateFromPayload decodes the first three payload bytes.
func LampStateFromPayload(p [PayloadLength]byte) LampState {
	return LampState{Mode: LampMode(p[0]), Brightness1: p[1], Brightness2: p[2]}
}

// PercentToWire scales a 0-100 brightness to the 0-255 wire byte, rounding
// half up. Negative input maps to 0 and anything above 100 to 255.
func PercentToWire(pct int) byte {
	switch {
	case pct <= 0:
		return 0
	case pct >= 100:
		return 0xFF
	default:
		return byte((pct*255 + 50) / 100)
	}
}

// WireToPercent is the inverse of PercentToWire, rounded to the nearest percent.
func WireToPercent(b byte) int {
	return (int(b)*100 + 127) / 255
}

// TelemetryChannel names one of the four telemetry values a station reports.
type TelemetryChannel int

// Telemetry channels, in poll tag order.
const (
	TelemetryPower1 TelemetryChannel = iota
	TelemetryPower2
	TelemetryEnv1
	TelemetryEnv2
	telemetryChannels
)

func (c TelemetryChannel) String() string {
	switch c {
	case TelemetryPower1:
		return "power1"
	case TelemetryPower2:
		return "power2"
	case TelemetryEnv1:
		return "env1"
	case TelemetryEnv2:
		return "env2"
	default:
		return fmt.Sprintf("TelemetryChannel(%d)", int(c))
	}
}

// pollTag returns the poll tag that requests channel c.
func (c TelemetryChannel) pollTag() Tag {
	switch c {
	case TelemetryPower2:
		return TagPower2Poll
	case TelemetryEnv1:
		return TagEnv1Poll
	case TelemetryEnv2:
		return TagEnv2Poll
	default:
		return TagPower1Poll
	}
}

// telemetryChannelFor maps a poll or ack tag to its channel.
func telemetryChannelFor(t Tag) (TelemetryChannel, bool) {
	switch t {
	case TagPower1Poll, TagPower1Ack:
		return TelemetryPower1, true
	case TagPower2Poll, TagPower2Ack:
		return TelemetryPower2, true
	case TagEnv1Poll, TagEnv1Ack:
		return TelemetryEnv1, true
	case TagEnv2Poll, TagEnv2Ack:
		return TelemetryEnv2, true
	default:
		return 0, false
	}
}

// Telemetry holds the raw 4-byte value last reported on each channel.
type Telemetry [telemetryChannels][PayloadLength]byte

