// go-lampnet
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-lampnet.
//
// go-lampnet is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-lampnet is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-lampnet; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/ZaparooProject/go-lampnet"
	"github.com/ZaparooProject/go-lampnet/internal/config"
	"github.com/ZaparooProject/go-lampnet/polling"
	"github.com/ZaparooProject/go-lampnet/telemetry/modbus"
	"github.com/ZaparooProject/go-lampnet/telemetry/mqtt"
)

// dialBroker is swapped out in tests.
var dialBroker = mqtt.Dial

// startController launches the controller's optional outputs: the periodic
// sweeper, the MQTT bridge and the Modbus mirror. Outputs that cannot reach
// their server are reported and skipped; the radio keeps running. The
// returned function stops everything that was started.
func startController(
	ctx context.Context,
	node *lampnet.Node,
	tr lampnet.Transport,
	cfg *config.Config,
) (func(), error) {
	client, err := node.Client()
	if err != nil {
		return nil, err
	}
	registry := node.Registry()

	ctx, cancel := context.WithCancel(ctx)
	var (
		wg    sync.WaitGroup
		stops []func()
	)

	var bridge *mqtt.Bridge
	if cfg.MQTT.Broker != "" {
		broker, err := dialBroker(mqtt.BrokerConfig{
			URL:      cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		})
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Warning: MQTT disabled: %v\n", err)
		} else {
			bridge = mqtt.NewBridge(broker, client, registry, cfg.MQTT.TopicPrefix)
			if err := bridge.Start(ctx); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "Warning: MQTT commands disabled: %v\n", err)
			}
			bridge.PublishAll()
			stops = append(stops, bridge.Stop, broker.Close)
			_, _ = fmt.Printf("MQTT bridge on %s under %s/\n", cfg.MQTT.Broker, cfg.MQTT.TopicPrefix)
		}
	}

	if cfg.Modbus.Endpoint != "" {
		if err := startMirror(ctx, &wg, cfg, registry, &stops); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Warning: Modbus mirror disabled: %v\n", err)
		}
	}

	if interval := cfg.SweepInterval(); interval > 0 {
		pcfg := polling.DefaultConfig()
		pcfg.Interval = interval
		pcfg.Telemetry = cfg.Sweep.Telemetry
		pcfg.Toggle = cfg.Sweep.Toggle

		sweeper := polling.NewSweeper(client, registry, pcfg, polling.SweepCallbacks{
			OnUnreachable: func(rec lampnet.StationRecord, failures int) {
				_, _ = fmt.Printf("Station %s (%s) unreachable after %d sweeps\n", rec.Name, rec.ID, failures)
			},
			OnSweepDone: func(reached, total int) {
				_, _ = fmt.Printf("Sweep: %d/%d stations answered\n", reached, total)
				if bridge != nil {
					bridge.PublishAll()
				}
			},
		})
		sweeper.SetRecoverer(polling.NewDefaultRecoverer(tr, tr.Open,
			pcfg.SleepRecovery.RecoveryBackoff, pcfg.SleepRecovery.MaxRecoveryAttempts))
		if err := sweeper.Start(ctx); err != nil {
			cancel()
			return nil, err
		}
		stops = append(stops, func() { _ = sweeper.Stop(context.Background()) })
	}

	return func() {
		cancel()
		wg.Wait()
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}, nil
}

func startMirror(
	ctx context.Context,
	wg *sync.WaitGroup,
	cfg *config.Config,
	registry *lampnet.Registry,
	stops *[]func(),
) error {
	endpoint, err := modbus.NewEndpointClient(modbus.Config{
		Endpoint: cfg.Modbus.Endpoint,
		Timeout:  cfg.ModbusTimeout(),
	})
	if err != nil {
		return err
	}
	mirror, err := modbus.NewMirror(endpoint, registry, modbus.MirrorConfig{
		UnitID:      cfg.Modbus.UnitID,
		BaseAddress: cfg.Modbus.BaseAddress,
		Interval:    cfg.ModbusInterval(),
	})
	if err != nil {
		_ = endpoint.Close()
		return err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		mirror.Run(ctx)
	}()
	*stops = append(*stops, func() { _ = endpoint.Close() })
	_, _ = fmt.Printf("Modbus mirror to %s unit %d from register %d\n",
		cfg.Modbus.Endpoint, cfg.Modbus.UnitID, cfg.Modbus.BaseAddress)
	return nil
}
