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

package config

import (
	"fmt"
	"time"

	"github.com/ZaparooProject/go-lampnet"
)

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// NodeConfig converts a validated configuration into lampnet.Config.
func (c *Config) NodeConfig() (lampnet.Config, error) {
	role, err := lampnet.ParseRole(c.Node.Role)
	if err != nil {
		return lampnet.Config{}, err
	}
	id, err := lampnet.ParseNodeID(c.Node.ID)
	if err != nil {
		return lampnet.Config{}, err
	}

	stations := make([]lampnet.StationConfig, 0, len(c.Stations))
	for _, e := range c.Stations {
		sid, err := lampnet.ParseNodeID(e.ID)
		if err != nil {
			return lampnet.Config{}, fmt.Errorf("station %q: %w", e.Name, err)
		}
		stations = append(stations, lampnet.StationConfig{ID: sid, Addr: e.Addr, Name: e.Name})
	}

	timing := lampnet.Timing{
		Hop:         c.Protocol.Hop,
		Retry:       c.Protocol.Retry,
		BaseTimeout: ms(c.Protocol.BaseTimeoutMs),
		E32Delay:    ms(c.Protocol.E32DelayMs),
	}
	if c.Protocol.RelayDelayMs != nil {
		timing.RelayDelay = ms(*c.Protocol.RelayDelayMs)
	}
	if c.Protocol.RelayRandomBackoffMs != nil {
		timing.RelayRandomBackoff = ms(*c.Protocol.RelayRandomBackoffMs)
	}

	return lampnet.Config{
		Role:     role,
		ID:       id,
		Stations: stations,
		Timing:   timing,
		Testing:  c.Protocol.Testing,
	}, nil
}

// AuxTimeout is the radio AUX wait as a duration.
func (c *Config) AuxTimeout() time.Duration {
	return ms(c.Radio.AuxTimeoutMs)
}

// SweepInterval is zero when the sweeper is disabled.
func (c *Config) SweepInterval() time.Duration {
	return ms(c.Sweep.IntervalMs)
}

// ModbusInterval is the mirror refresh period.
func (c *Config) ModbusInterval() time.Duration {
	return ms(c.Modbus.IntervalMs)
}

// ModbusTimeout bounds one register write.
func (c *Config) ModbusTimeout() time.Duration {
	return ms(c.Modbus.TimeoutMs)
}
