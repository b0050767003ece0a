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
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/ZaparooProject/go-lampnet"
)

// Validate checks a normalized configuration. It does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	role, err := lampnet.ParseRole(cfg.Node.Role)
	if err != nil {
		return fmt.Errorf("node.role: %w", err)
	}
	id, err := lampnet.ParseNodeID(cfg.Node.ID)
	if err != nil {
		return fmt.Errorf("node.id: %w", err)
	}
	if id.IsBroadcast() {
		return fmt.Errorf("node.id: %w: broadcast address", lampnet.ErrInvalidNodeID)
	}

	if err := validateRadio(&cfg.Radio); err != nil {
		return err
	}
	if err := validateProtocol(&cfg.Protocol); err != nil {
		return err
	}
	if err := validateStations(cfg.Stations, id); err != nil {
		return err
	}

	if cfg.Sweep.IntervalMs < 0 {
		return fmt.Errorf("sweep.interval_ms must not be negative, got %d", cfg.Sweep.IntervalMs)
	}
	if role != lampnet.RoleRC {
		switch {
		case cfg.Sweep.IntervalMs > 0:
			return fmt.Errorf("sweep requires role rc, node is %s", role)
		case cfg.MQTT.Broker != "":
			return fmt.Errorf("mqtt bridge requires role rc, node is %s", role)
		case cfg.Modbus.Endpoint != "":
			return fmt.Errorf("modbus mirror requires role rc, node is %s", role)
		}
	}

	if err := validateMQTT(&cfg.MQTT); err != nil {
		return err
	}
	return validateModbus(&cfg.Modbus)
}

func validateRadio(r *RadioConfig) error {
	switch {
	case r.Port == "":
		return errors.New("radio.port is empty")
	case r.BaudRate <= 0:
		return fmt.Errorf("radio.baudrate must be positive, got %d", r.BaudRate)
	case r.AuxTimeoutMs < 0:
		return fmt.Errorf("radio.aux_timeout_ms must not be negative, got %d", r.AuxTimeoutMs)
	case !r.NoPins && (r.AuxPin == r.M0Pin || r.AuxPin == r.M1Pin || r.M0Pin == r.M1Pin):
		return fmt.Errorf("radio pins must be distinct: aux=%s m0=%s m1=%s", r.AuxPin, r.M0Pin, r.M1Pin)
	default:
		return nil
	}
}

func validateProtocol(p *ProtocolConfig) error {
	switch {
	case p.Hop < 0:
		return fmt.Errorf("protocol.hop must not be negative, got %d", p.Hop)
	case p.Retry < 1:
		return fmt.Errorf("protocol.retry must be at least 1, got %d", p.Retry)
	case p.BaseTimeoutMs < 0, p.E32DelayMs < 0:
		return errors.New("protocol timeouts must not be negative")
	case p.RelayDelayMs != nil && *p.RelayDelayMs < 0,
		p.RelayRandomBackoffMs != nil && *p.RelayRandomBackoffMs < 0:
		return errors.New("protocol relay delays must not be negative")
	default:
		return nil
	}
}

func validateStations(entries []StationEntry, self lampnet.NodeID) error {
	ids := make(map[lampnet.NodeID]int, len(entries))
	addrs := make(map[int]string, len(entries))

	for i, e := range entries {
		id, err := lampnet.ParseNodeID(e.ID)
		if err != nil {
			return fmt.Errorf("stations[%d].id: %w", i, err)
		}
		switch {
		case id.IsBroadcast():
			return fmt.Errorf("stations[%d].id: %w: broadcast address", i, lampnet.ErrInvalidNodeID)
		case id == self:
			return fmt.Errorf("stations[%d].id: %s is this node", i, id)
		case e.Addr < 1:
			return fmt.Errorf("stations[%d].addr must be at least 1 (0 is broadcast), got %d", i, e.Addr)
		}
		if prev, dup := ids[id]; dup {
			return fmt.Errorf("stations[%d].id: %s already listed at stations[%d]", i, id, prev)
		}
		if prev, dup := addrs[e.Addr]; dup {
			return fmt.Errorf("stations[%d].addr: %d already used by %s", i, e.Addr, prev)
		}
		ids[id] = i
		addrs[e.Addr] = e.ID
	}
	return nil
}

func validateMQTT(m *MQTTConfig) error {
	if m.Broker == "" {
		return nil
	}
	u, err := url.Parse(m.Broker)
	if err != nil {
		return fmt.Errorf("mqtt.broker: %w", err)
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "mqtt", "mqtts", "ws", "wss":
	default:
		return fmt.Errorf("mqtt.broker: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("mqtt.broker: missing host in %q", m.Broker)
	}
	if m.TopicPrefix == "" || strings.ContainsAny(m.TopicPrefix, "#+") {
		return fmt.Errorf("mqtt.topic_prefix %q must be non-empty and free of wildcards", m.TopicPrefix)
	}
	return nil
}

func validateModbus(m *ModbusConfig) error {
	if m.Endpoint == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(m.Endpoint); err != nil {
		return fmt.Errorf("modbus.endpoint: %w", err)
	}
	switch {
	case m.UnitID > 247:
		return fmt.Errorf("modbus.unit_id must be 1..247, got %d", m.UnitID)
	case m.IntervalMs <= 0:
		return fmt.Errorf("modbus.interval_ms must be positive, got %d", m.IntervalMs)
	case m.TimeoutMs <= 0:
		return fmt.Errorf("modbus.timeout_ms must be positive, got %d", m.TimeoutMs)
	default:
		return nil
	}
}
