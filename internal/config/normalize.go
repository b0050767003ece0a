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
	"strings"
	"time"

	"github.com/ZaparooProject/go-lampnet"
)

// Defaults for keys left out of the file.
const (
	DefaultPort         = "auto"
	DefaultBaudRate     = 9600
	DefaultAuxPin       = "GPIO27"
	DefaultM0Pin        = "GPIO17"
	DefaultM1Pin        = "GPIO18"
	DefaultLEDPin       = "GPIO21"
	DefaultTopicPrefix  = "lampnet"
	DefaultModbusUnitID = 1
	DefaultModbusPollMs = 5000
	DefaultModbusTimeMs = 1000
)

// Normalize fills in defaults. It mutates cfg and must run before Validate,
// which checks the filled-in values.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	cfg.Node.Role = strings.ToLower(strings.TrimSpace(cfg.Node.Role))
	cfg.Node.ID = strings.TrimSpace(cfg.Node.ID)

	// ---- radio ----
	r := &cfg.Radio
	r.Port = strings.TrimSpace(r.Port)
	if r.Port == "" {
		r.Port = DefaultPort
	}
	if r.BaudRate == 0 {
		r.BaudRate = DefaultBaudRate
	}
	if r.AuxPin == "" {
		r.AuxPin = DefaultAuxPin
	}
	if r.M0Pin == "" {
		r.M0Pin = DefaultM0Pin
	}
	if r.M1Pin == "" {
		r.M1Pin = DefaultM1Pin
	}
	if r.AuxTimeoutMs == 0 {
		r.AuxTimeoutMs = int(lampnet.DefaultAuxTimeout / time.Millisecond)
	}

	// ---- protocol ----
	p := &cfg.Protocol
	if p.Retry == 0 {
		p.Retry = lampnet.DefaultRetry
	}
	if p.E32DelayMs == 0 {
		p.E32DelayMs = int(lampnet.DefaultE32Delay / time.Millisecond)
	}
	if p.RelayDelayMs == nil {
		v := int(lampnet.DefaultRelayDelay / time.Millisecond)
		p.RelayDelayMs = &v
	}
	if p.RelayRandomBackoffMs == nil {
		v := int(lampnet.DefaultRelayRandomBackoff / time.Millisecond)
		p.RelayRandomBackoffMs = &v
	}

	if cfg.Station.LEDPin == "" {
		cfg.Station.LEDPin = DefaultLEDPin
	}

	for i := range cfg.Stations {
		cfg.Stations[i].ID = strings.TrimSpace(cfg.Stations[i].ID)
		if cfg.Stations[i].Name == "" {
			cfg.Stations[i].Name = cfg.Stations[i].ID
		}
	}

	// ---- outputs ----
	cfg.MQTT.Broker = strings.TrimSpace(cfg.MQTT.Broker)
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = DefaultTopicPrefix
	}
	cfg.MQTT.TopicPrefix = strings.TrimRight(cfg.MQTT.TopicPrefix, "/")

	cfg.Modbus.Endpoint = strings.TrimSpace(cfg.Modbus.Endpoint)
	if cfg.Modbus.UnitID == 0 {
		cfg.Modbus.UnitID = DefaultModbusUnitID
	}
	if cfg.Modbus.IntervalMs == 0 {
		cfg.Modbus.IntervalMs = DefaultModbusPollMs
	}
	if cfg.Modbus.TimeoutMs == 0 {
		cfg.Modbus.TimeoutMs = DefaultModbusTimeMs
	}
}
