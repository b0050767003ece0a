package modbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ZaparooProject/go-lampnet"
)

var lamp1 = lampnet.MustParseNodeID("000000000002")

func TestEncode_FullRow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := lampnet.StationRecord{
		ID:          lamp1,
		Addr:        7,
		CommOkay:    70000,
		CommFail:    2,
		Commanded:   lampnet.LampState{Mode: lampnet.LampLeftOn, Brightness1: 0xCC},
		Observed:    lampnet.LampStateAllOn,
		LastContact: now.Add(-90 * time.Second),
	}
	rec.Telemetry[lampnet.TelemetryEnv1] = [lampnet.PayloadLength]byte{0x12, 0x34, 0x56, 0x78}

	regs := Encode(rec, now)
	assert.Len(t, regs, SlotsPerStation)
	assert.Equal(t, uint16(7), regs[SlotAddr])
	assert.Equal(t, HealthOK, regs[SlotHealthCode])
	assert.Equal(t, uint16(0xFFFF), regs[SlotCommOkay], "counters saturate")
	assert.Equal(t, uint16(2), regs[SlotCommFail])
	assert.Equal(t, uint16(lampnet.LampAllOn), regs[SlotObservedMode])
	assert.Equal(t, uint16(0xFF), regs[SlotObservedBrightness2])
	assert.Equal(t, uint16(lampnet.LampLeftOn), regs[SlotCommandedMode])
	assert.Equal(t, uint16(0xCC), regs[SlotCommandedBrightness1])
	assert.Equal(t, uint16(90), regs[SlotSecondsSinceContact])

	env1 := SlotTelemetryStart + 2*int(lampnet.TelemetryEnv1)
	assert.Equal(t, []uint16{0x1234, 0x5678}, regs[env1:env1+2])
	assert.Zero(t, regs[SlotTelemetryStart])
}

func TestEncode_Health(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tests := []struct {
		name     string
		rec      lampnet.StationRecord
		expected uint16
	}{
		{name: "never polled", rec: lampnet.StationRecord{}, expected: HealthUnknown},
		{name: "answered", rec: lampnet.StationRecord{LastContact: now}, expected: HealthOK},
		{name: "failing", rec: lampnet.StationRecord{LastContact: now, CommQuality: 3}, expected: HealthError},
		{name: "never answered", rec: lampnet.StationRecord{CommQuality: 1}, expected: HealthError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			regs := Encode(tt.rec, now)
			assert.Equal(t, tt.expected, regs[SlotHealthCode])
		})
	}

	assert.Equal(t, NeverContacted, Encode(lampnet.StationRecord{}, now)[SlotSecondsSinceContact])
}

func TestLayout_FitsBlock(t *testing.T) {
	t.Parallel()
	assert.Equal(t, SlotsPerStation, SlotTelemetryStart+SlotTelemetrySlots)
}
