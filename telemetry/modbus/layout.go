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

package modbus

import (
	"time"

	"github.com/ZaparooProject/go-lampnet"
)

// Station block layout constants.
// These values define the register map and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerStation is the fixed number of holding registers per station.
// Station i (registry order) starts at base_address + i*SlotsPerStation.
const SlotsPerStation = 20

// ---- SLOT INDICES ----

const (
	SlotAddr = iota
	SlotHealthCode
	SlotCommQuality
	SlotCommOkay
	SlotCommFail
	SlotObservedMode
	SlotObservedBrightness1
	SlotObservedBrightness2
	SlotCommandedMode
	SlotCommandedBrightness1
	SlotCommandedBrightness2
	SlotSecondsSinceContact
	// SlotTelemetryStart holds the four telemetry channels, two registers
	// each, high word first.
	SlotTelemetryStart
)

// SlotTelemetrySlots is the number of registers used by telemetry.
const SlotTelemetrySlots = 8

// ---- HEALTH CODES ----

// HealthUnknown represents a station never polled.
const HealthUnknown uint16 = 0

// HealthOK represents a station whose last exchange succeeded.
const HealthOK uint16 = 1

// HealthError represents a station whose last exchange failed.
const HealthError uint16 = 2

// NeverContacted is written to SlotSecondsSinceContact before the first
// answer.
const NeverContacted uint16 = 0xFFFF

// Encode converts a registry row into a full station block.
// No IO. No side effects.
func Encode(rec lampnet.StationRecord, now time.Time) []uint16 {
	regs := make([]uint16, SlotsPerStation)

	regs[SlotAddr] = clamp(rec.Addr)
	regs[SlotHealthCode] = health(rec)
	regs[SlotCommQuality] = clamp(rec.CommQuality)
	regs[SlotCommOkay] = clamp(rec.CommOkay)
	regs[SlotCommFail] = clamp(rec.CommFail)

	regs[SlotObservedMode] = uint16(rec.Observed.Mode)
	regs[SlotObservedBrightness1] = uint16(rec.Observed.Brightness1)
	regs[SlotObservedBrightness2] = uint16(rec.Observed.Brightness2)
	regs[SlotCommandedMode] = uint16(rec.Commanded.Mode)
	regs[SlotCommandedBrightness1] = uint16(rec.Commanded.Brightness1)
	regs[SlotCommandedBrightness2] = uint16(rec.Commanded.Brightness2)

	regs[SlotSecondsSinceContact] = NeverContacted
	if !rec.LastContact.IsZero() {
		regs[SlotSecondsSinceContact] = clamp(int(now.Sub(rec.LastContact) / time.Second))
	}

	for ch := range rec.Telemetry {
		v := rec.Telemetry[ch]
		slot := SlotTelemetryStart + 2*ch
		regs[slot] = uint16(v[0])<<8 | uint16(v[1])
		regs[slot+1] = uint16(v[2])<<8 | uint16(v[3])
	}

	return regs
}

func health(rec lampnet.StationRecord) uint16 {
	switch {
	case rec.CommQuality > 0:
		return HealthError
	case rec.LastContact.IsZero():
		return HealthUnknown
	default:
		return HealthOK
	}
}

// clamp saturates v into a register.
func clamp(v int) uint16 {
	switch {
	case v < 0:
		return 0
	case v > 0xFFFF:
		return 0xFFFF
	default:
		return uint16(v)
	}
}
