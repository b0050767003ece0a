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
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Node     NodeConfig     `yaml:"node"`
	Radio    RadioConfig    `yaml:"radio"`
	Protocol ProtocolConfig `yaml:"protocol"`
	Station  StationConfig  `yaml:"station"`
	Stations []StationEntry `yaml:"stations"`
	Sweep    SweepConfig    `yaml:"sweep"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Modbus   ModbusConfig   `yaml:"modbus"`
}

// ---- NODE ----

type NodeConfig struct {
	Role string `yaml:"role"` // rc | sta | relay
	ID   string `yaml:"id"`   // 12 hex digits
}

// ---- RADIO ----

type RadioConfig struct {
	Port         string `yaml:"port"` // "auto" enumerates serial ports
	BaudRate     int    `yaml:"baudrate"`
	AuxPin       string `yaml:"aux_pin"`
	M0Pin        string `yaml:"m0_pin"`
	M1Pin        string `yaml:"m1_pin"`
	AuxTimeoutMs int    `yaml:"aux_timeout_ms"`

	// NoPins runs without GPIO: module strapped to normal mode, AUX unused.
	NoPins bool `yaml:"no_pins"`
}

// ---- PROTOCOL ----

type ProtocolConfig struct {
	Hop           int `yaml:"hop"`
	Retry         int `yaml:"retry"`
	BaseTimeoutMs int `yaml:"base_timeout_ms"` // 0 => 2 x e32_delay
	E32DelayMs    int `yaml:"e32_delay_ms"`

	// nil => default; an explicit 0 disables the delay
	RelayDelayMs         *int `yaml:"relay_delay_ms"`
	RelayRandomBackoffMs *int `yaml:"relay_random_backoff_ms"`

	Testing bool `yaml:"testing"`
}

// ---- STATION ----

type StationConfig struct {
	LEDPin        string `yaml:"led_pin"`
	LEDActiveHigh bool   `yaml:"led_active_high"`
}

// ---- STATION TABLE (RC) ----

type StationEntry struct {
	ID   string `yaml:"id"`
	Addr int    `yaml:"addr"`
	Name string `yaml:"name"`
}

// ---- SWEEP ----

type SweepConfig struct {
	IntervalMs int  `yaml:"interval_ms"` // 0 => disabled
	Telemetry  bool `yaml:"telemetry"`   // also poll power and environment
	Toggle     bool `yaml:"toggle"`      // broadcast alternating on/off before polling
}

// ---- MQTT ----

type MQTTConfig struct {
	Broker      string `yaml:"broker"` // empty => disabled
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

// ---- MODBUS ----

type ModbusConfig struct {
	Endpoint    string `yaml:"endpoint"` // host:port, empty => disabled
	UnitID      uint8  `yaml:"unit_id"`
	BaseAddress uint16 `yaml:"base_address"`
	IntervalMs  int    `yaml:"interval_ms"`
	TimeoutMs   int    `yaml:"timeout_ms"`
}

// Load reads and decodes a YAML file. Unknown keys are rejected.
// Call Normalize and then Validate on the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes. An empty document yields a zero Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
