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

package uart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-lampnet"
)

// E32 configuration-mode commands.
var (
	cmdReadConfig  = []byte{0xC1, 0xC1, 0xC1}
	cmdReadVersion = []byte{0xC3, 0xC3, 0xC3}
)

const (
	headSave      = 0xC0 // parameters survive power-down
	headTemporary = 0xC2

	configLength  = 6
	versionLength = 4

	// ModuleReplyTimeout bounds the wait for a configuration reply.
	ModuleReplyTimeout = 3 * time.Second
)

// ErrModuleReply is returned when the module answers a configuration command
// with something unexpected.
var ErrModuleReply = errors.New("unexpected E32 reply")

// UARTParity is the SPED parity field.
type UARTParity byte

// Parity values.
const (
	Parity8N1 UARTParity = 0
	Parity8O1 UARTParity = 1
	Parity8E1 UARTParity = 2
)

var uartBauds = []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200}

// air data rates in bit/s; codes 6 and 7 alias 19200
var airRates = []int{300, 1200, 2400, 4800, 9600, 19200, 19200, 19200}

// txPowers for the 20 dBm E32 variants
var txPowers = []int{20, 17, 14, 10}

var wakeupTimes = []time.Duration{
	250 * time.Millisecond, 500 * time.Millisecond, 750 * time.Millisecond,
	1000 * time.Millisecond, 1250 * time.Millisecond, 1500 * time.Millisecond,
	1750 * time.Millisecond, 2000 * time.Millisecond,
}

// ModuleConfig is the 6-byte parameter block of an E32 module.
type ModuleConfig struct {
	Address  uint16
	Channel  byte // frequency = 410 MHz + Channel MHz on 433 MHz parts
	Parity   UARTParity
	UARTBaud int
	AirRate  int
	// WakeupTime only matters in power-saving mode.
	WakeupTime time.Duration
	TxPowerDBm int
	// Persist writes with the C0 head instead of the temporary C2.
	Persist           bool
	FixedTransmission bool
	PushPullIO        bool
	FEC               bool
}

// DefaultModuleConfig is 9600 bps on UART and air, address 0, channel 0x14,
// 10 dBm, FEC on, transparent transmission, push-pull IO, 250 ms wake-up.
func DefaultModuleConfig() ModuleConfig {
	return ModuleConfig{
		Persist:    true,
		Address:    0x0000,
		Parity:     Parity8N1,
		UARTBaud:   9600,
		AirRate:    9600,
		Channel:    0x14,
		PushPullIO: true,
		WakeupTime: 250 * time.Millisecond,
		FEC:        true,
		TxPowerDBm: 10,
	}
}

// FrequencyMHz is the carrier frequency on 433 MHz parts.
func (c ModuleConfig) FrequencyMHz() int {
	return 410 + int(c.Channel)
}

func (c ModuleConfig) String() string {
	return fmt.Sprintf("addr=%04X ch=%d (%d MHz) uart=%d air=%d power=%ddBm fec=%t fixed=%t",
		c.Address, c.Channel, c.FrequencyMHz(), c.UARTBaud, c.AirRate, c.TxPowerDBm,
		c.FEC, c.FixedTransmission)
}

// ParseModuleConfig decodes a C1 reply.
func ParseModuleConfig(raw []byte) (ModuleConfig, error) {
	if len(raw) != configLength {
		return ModuleConfig{}, fmt.Errorf("%w: config is %d bytes, want %d", ErrModuleReply, len(raw), configLength)
	}
	if raw[0] != headSave && raw[0] != headTemporary {
		return ModuleConfig{}, fmt.Errorf("%w: config head %02X", ErrModuleReply, raw[0])
	}

	sped, opt := raw[3], raw[5]
	return ModuleConfig{
		Persist:           raw[0] == headSave,
		Address:           uint16(raw[1])<<8 | uint16(raw[2]),
		Parity:            UARTParity((sped >> 6) & 0x03),
		UARTBaud:          uartBauds[(sped>>3)&0x07],
		AirRate:           airRates[sped&0x07],
		Channel:           raw[4] & 0x1F,
		FixedTransmission: opt&0x80 != 0,
		PushPullIO:        opt&0x40 != 0,
		WakeupTime:        wakeupTimes[(opt>>3)&0x07],
		FEC:               opt&0x04 != 0,
		TxPowerDBm:        txPowers[opt&0x03],
	}, nil
}

// Bytes encodes the parameter block for a write.
func (c ModuleConfig) Bytes() ([]byte, error) {
	baud, ok := indexOf(uartBauds, c.UARTBaud)
	if !ok {
		return nil, fmt.Errorf("unsupported UART baud rate %d", c.UARTBaud)
	}
	air, ok := indexOf(airRates, c.AirRate)
	if !ok {
		return nil, fmt.Errorf("unsupported air data rate %d", c.AirRate)
	}
	wake, ok := indexOf(wakeupTimes, c.WakeupTime)
	if !ok {
		return nil, fmt.Errorf("unsupported wake-up time %v", c.WakeupTime)
	}
	power, ok := indexOf(txPowers, c.TxPowerDBm)
	if !ok {
		return nil, fmt.Errorf("unsupported transmit power %d dBm", c.TxPowerDBm)
	}
	if c.Parity > Parity8E1 {
		return nil, fmt.Errorf("unsupported parity %d", c.Parity)
	}
	if c.Channel > 0x1F {
		return nil, fmt.Errorf("channel %d out of range", c.Channel)
	}

	head := byte(headTemporary)
	if c.Persist {
		head = headSave
	}
	sped := byte(c.Parity)<<6 | byte(baud)<<3 | byte(air)
	opt := byte(wake)<<3 | byte(power)
	if c.FixedTransmission {
		opt |= 0x80
	}
	if c.PushPullIO {
		opt |= 0x40
	}
	if c.FEC {
		opt |= 0x04
	}
	return []byte{head, byte(c.Address >> 8), byte(c.Address), sped, c.Channel, opt}, nil
}

func indexOf[T comparable](values []T, v T) (int, bool) {
	for i, candidate := range values {
		if candidate == v {
			return i, true
		}
	}
	return 0, false
}

// ModuleVersion is the C3 reply: model, firmware version and feature byte.
type ModuleVersion struct {
	Model    byte
	Version  byte
	Features byte
}

func (v ModuleVersion) String() string {
	return fmt.Sprintf("model=%02X version=%02X features=%02X", v.Model, v.Version, v.Features)
}

// ReadVersion queries the module version. The module is switched into
// configuration mode for the query and back to the previous mode afterwards.
// The configuration calls share the port with Receive, so they must run
// before the transport is handed to a node.
func (t *Transport) ReadVersion(ctx context.Context) (ModuleVersion, error) {
	var reply []byte
	err := t.inConfigMode(func() error {
		var err error
		reply, err = t.query(ctx, cmdReadVersion, versionLength)
		return err
	})
	if err != nil {
		return ModuleVersion{}, err
	}
	if reply[0] != 0xC3 {
		return ModuleVersion{}, fmt.Errorf("%w: version head %02X", ErrModuleReply, reply[0])
	}
	return ModuleVersion{Model: reply[1], Version: reply[2], Features: reply[3]}, nil
}

// ReadConfig reads the module parameter block.
func (t *Transport) ReadConfig(ctx context.Context) (ModuleConfig, error) {
	var reply []byte
	err := t.inConfigMode(func() error {
		var err error
		reply, err = t.query(ctx, cmdReadConfig, configLength)
		return err
	})
	if err != nil {
		return ModuleConfig{}, err
	}
	return ParseModuleConfig(reply)
}

// WriteConfig writes cfg and verifies the module echoes it back.
func (t *Transport) WriteConfig(ctx context.Context, cfg ModuleConfig) error {
	raw, err := cfg.Bytes()
	if err != nil {
		return err
	}
	return t.inConfigMode(func() error {
		echo, err := t.query(ctx, raw, configLength)
		if err != nil {
			return err
		}
		if !bytes.Equal(echo, raw) {
			return fmt.Errorf("%w: wrote % X, module answered % X", ErrModuleReply, raw, echo)
		}
		lampnet.Debugf("e32 config written: %s", cfg)
		return nil
	})
}

func (t *Transport) inConfigMode(fn func() error) error {
	previous := t.Mode()
	if err := t.SetMode(lampnet.ModeConfiguration); err != nil {
		return err
	}
	err := fn()
	if restoreErr := t.SetMode(previous); restoreErr != nil {
		return errors.Join(err, restoreErr)
	}
	return err
}

// query sends cmd and collects exactly n reply bytes.
func (t *Transport) query(ctx context.Context, cmd []byte, n int) ([]byte, error) {
	if err := t.Transmit(ctx, cmd); err != nil {
		return nil, err
	}

	reply := make([]byte, 0, n)
	deadline := time.Now().Add(ModuleReplyTimeout)
	for len(reply) < n {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, lampnet.NewTimeoutError("query", t.portName)
		}
		chunk, err := t.Receive(ctx, n-len(reply), remaining)
		if err != nil {
			return nil, err
		}
		reply = append(reply, chunk...)
	}
	return reply, nil
}
