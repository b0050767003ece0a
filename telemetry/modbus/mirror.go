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

// Package modbus mirrors a controller's station registry into the holding
// registers of a Modbus TCP server, one fixed-size block per station.
package modbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/go-lampnet"
)

// registerWriter is the exact contract the mirror uses.
type registerWriter interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// StationSource lists the rows to mirror. *lampnet.Registry satisfies it.
type StationSource interface {
	Snapshot() []lampnet.StationRecord
}

var (
	_ registerWriter = (*EndpointClient)(nil)
	_ StationSource  = (*lampnet.Registry)(nil)
)

type MirrorConfig struct {
	UnitID      uint8
	BaseAddress uint16
	Interval    time.Duration
}

type Mirror struct {
	client   registerWriter
	stations StationSource
	now      func() time.Time
	cfg      MirrorConfig
}

func NewMirror(client registerWriter, stations StationSource, cfg MirrorConfig) (*Mirror, error) {
	if client == nil || stations == nil {
		return nil, errors.New("modbus mirror: client and stations required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("modbus mirror: interval must be positive, got %v", cfg.Interval)
	}
	return &Mirror{client: client, stations: stations, cfg: cfg, now: time.Now}, nil
}

// Run starts the ticker loop and writes the registry on every tick.
// One goroutine. No overlap. No retries.
func (m *Mirror) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.WriteOnce(); err != nil {
				lampnet.Debugf("%v", err)
			}
		}
	}
}

// WriteOnce writes one block per station. Every station is attempted; the
// failures are reported together.
func (m *Mirror) WriteOnce() error {
	var errs []string
	now := m.now()

	for i, rec := range m.stations.Snapshot() {
		addr := int(m.cfg.BaseAddress) + i*SlotsPerStation
		if addr+SlotsPerStation-1 > 0xFFFF {
			errs = append(errs, fmt.Sprintf(
				"modbus mirror: station %s block at %d exceeds the register space",
				rec.ID, addr,
			))
			continue
		}

		if err := m.client.WriteRegisters(m.cfg.UnitID, uint16(addr), Encode(rec, now)); err != nil {
			errs = append(errs, fmt.Sprintf(
				"modbus mirror: unit=%d addr=%d station=%s err=%v",
				m.cfg.UnitID, addr, rec.ID, err,
			))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, " | "))
	}

	return nil
}
