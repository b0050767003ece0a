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

package mqtt

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-lampnet"
)

// Commander is the part of lampnet.Client that remote commands reach.
type Commander interface {
	AllLampsOn(ctx context.Context) lampnet.CommandResult
	AllLampsOff(ctx context.Context) lampnet.CommandResult
	SetLamp(ctx context.Context, addr int, mode lampnet.LampMode, pct1, pct2 int) lampnet.CommandResult
	PollStation(ctx context.Context, addr int) lampnet.CommandResult
	PollPower(ctx context.Context, addr, channel int) lampnet.CommandResult
	PollEnv(ctx context.Context, addr, channel int) lampnet.CommandResult
}

// Stations is the registry view the bridge publishes.
type Stations interface {
	Snapshot() []lampnet.StationRecord
	Get(id lampnet.NodeID) (lampnet.StationRecord, bool)
	ResolveAddress(addr int) (lampnet.NodeID, error)
}

var (
	_ Commander = (*lampnet.Client)(nil)
	_ Stations  = (*lampnet.Registry)(nil)
)

// commandQueueSize bounds remote commands waiting behind the one in flight.
const commandQueueSize = 16

// LampMessage is a lamp state in a published station row.
type LampMessage struct {
	Mode        string `json:"mode"`
	Brightness1 int    `json:"brightness1_pct"`
	Brightness2 int    `json:"brightness2_pct"`
}

// StationMessage is published retained-free to <prefix>/station/<id>.
type StationMessage struct {
	LastContact *time.Time        `json:"last_contact,omitempty"`
	Telemetry   map[string]string `json:"telemetry,omitempty"`
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Commanded   LampMessage       `json:"commanded"`
	Observed    LampMessage       `json:"observed"`
	Addr        int               `json:"addr"`
	CommOkay    int               `json:"comm_okay"`
	CommFail    int               `json:"comm_fail"`
	CommQuality int               `json:"comm_quality"`
}

// CommandMessage is accepted on <prefix>/cmd.
//
//	{"action":"on"}
//	{"action":"set","addr":1,"mode":"LeftOn","brightness1_pct":80}
//	{"action":"power","addr":1,"channel":2}
type CommandMessage struct {
	RequestID   string `json:"request_id,omitempty"`
	Action      string `json:"action"`
	Mode        string `json:"mode,omitempty"`
	Addr        int    `json:"addr,omitempty"`
	Channel     int    `json:"channel,omitempty"`
	Brightness1 int    `json:"brightness1_pct,omitempty"`
	Brightness2 int    `json:"brightness2_pct,omitempty"`
}

// ResultMessage is published to <prefix>/result after every command.
type ResultMessage struct {
	RequestID string `json:"request_id,omitempty"`
	Action    string `json:"action"`
	Error     string `json:"error,omitempty"`
	Payload   string `json:"payload,omitempty"`
	Attempts  int    `json:"attempts"`
	Success   bool   `json:"success"`
}

// BridgeMetrics tracks bridge activity.
type BridgeMetrics struct {
	Published        int64
	PublishErrors    int64
	CommandsHandled  int64
	CommandsRejected int64
}

// Bridge mirrors the station registry to MQTT and executes remote commands
// one at a time through the controller's client.
type Bridge struct {
	broker    Broker
	commander Commander
	stations  Stations
	queue     chan CommandMessage
	stopChan  chan struct{}
	prefix    string
	wg        sync.WaitGroup
	stopOnce  sync.Once
	// Atomic counters for metrics
	published        int64
	publishErrors    int64
	commandsHandled  int64
	commandsRejected int64
	running          int64
}

// NewBridge creates a bridge publishing under prefix.
func NewBridge(broker Broker, commander Commander, stations Stations, prefix string) *Bridge {
	return &Bridge{
		broker:    broker,
		commander: commander,
		stations:  stations,
		prefix:    strings.TrimSuffix(prefix, "/"),
		queue:     make(chan CommandMessage, commandQueueSize),
		stopChan:  make(chan struct{}),
	}
}

// CommandTopic is where remote commands are accepted.
func (b *Bridge) CommandTopic() string { return b.prefix + "/cmd" }

// ResultTopic is where command results are published.
func (b *Bridge) ResultTopic() string { return b.prefix + "/result" }

// StationTopic is where the row for id is published.
func (b *Bridge) StationTopic(id lampnet.NodeID) string {
	return b.prefix + "/station/" + id.String()
}

// Start subscribes to the command topic and launches the command worker.
func (b *Bridge) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt64(&b.running, 0, 1) {
		return nil
	}
	if err := b.broker.Subscribe(b.CommandTopic(), b.onMessage); err != nil {
		atomic.StoreInt64(&b.running, 0)
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.wg.Add(1)
	go b.worker(ctx)
	return nil
}

// onMessage runs on the paho callback goroutine and must not block.
func (b *Bridge) onMessage(topic string, payload []byte) {
	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		atomic.AddInt64(&b.commandsRejected, 1)
		lampnet.Debugf("mqtt: cannot decode command on %s: %v", topic, err)
		return
	}
	select {
	case b.queue <- msg:
	default:
		atomic.AddInt64(&b.commandsRejected, 1)
		b.publishResult(ResultMessage{RequestID: msg.RequestID, Action: msg.Action, Error: "command queue full"})
	}
}

func (b *Bridge) worker(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case msg := <-b.queue:
			b.handle(ctx, msg)
		case <-b.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// handle executes one remote command and publishes its result along with
// the rows it touched.
func (b *Bridge) handle(ctx context.Context, msg CommandMessage) {
	res, err := b.execute(ctx, msg)
	out := ResultMessage{RequestID: msg.RequestID, Action: msg.Action}
	if err != nil {
		atomic.AddInt64(&b.commandsRejected, 1)
		out.Error = err.Error()
		b.publishResult(out)
		return
	}

	atomic.AddInt64(&b.commandsHandled, 1)
	out.Success = res.Success
	out.Attempts = res.Attempts
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	if len(res.Payload) > 0 {
		out.Payload = hex.EncodeToString(res.Payload)
	}
	b.publishResult(out)

	if msg.Addr > 0 {
		if id, err := b.stations.ResolveAddress(msg.Addr); err == nil {
			b.PublishStation(id)
		}
	} else {
		b.PublishAll()
	}
}

func (b *Bridge) execute(ctx context.Context, msg CommandMessage) (lampnet.CommandResult, error) {
	action := strings.ToLower(strings.TrimSpace(msg.Action))
	needsAddr := action != "on" && action != "off"
	if needsAddr && msg.Addr <= 0 {
		return lampnet.CommandResult{}, fmt.Errorf("action %q needs a station address", msg.Action)
	}

	switch action {
	case "on":
		return b.commander.AllLampsOn(ctx), nil
	case "off":
		return b.commander.AllLampsOff(ctx), nil
	case "set":
		mode, err := lampnet.ParseLampMode(msg.Mode)
		if err != nil {
			return lampnet.CommandResult{}, err
		}
		return b.commander.SetLamp(ctx, msg.Addr, mode, msg.Brightness1, msg.Brightness2), nil
	case "poll":
		return b.commander.PollStation(ctx, msg.Addr), nil
	case "power":
		return b.commander.PollPower(ctx, msg.Addr, msg.Channel), nil
	case "env":
		return b.commander.PollEnv(ctx, msg.Addr, msg.Channel), nil
	default:
		return lampnet.CommandResult{}, fmt.Errorf("unknown action %q", msg.Action)
	}
}

// PublishAll publishes every station row.
func (b *Bridge) PublishAll() {
	for _, rec := range b.stations.Snapshot() {
		b.publishRecord(rec)
	}
}

// PublishStation publishes the current row for id.
func (b *Bridge) PublishStation(id lampnet.NodeID) {
	if rec, ok := b.stations.Get(id); ok {
		b.publishRecord(rec)
	}
}

func (b *Bridge) publishRecord(rec lampnet.StationRecord) {
	b.publish(b.StationTopic(rec.ID), NewStationMessage(rec))
}

func (b *Bridge) publishResult(msg ResultMessage) {
	b.publish(b.ResultTopic(), msg)
}

func (b *Bridge) publish(topic string, v any) {
	payload, err := json.Marshal(v)
	if err == nil {
		err = b.broker.Publish(topic, payload)
	}
	if err != nil {
		atomic.AddInt64(&b.publishErrors, 1)
		lampnet.Debugf("mqtt: publish %s: %v", topic, err)
		return
	}
	atomic.AddInt64(&b.published, 1)
}

// Stop halts the command worker. Queued commands are dropped.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()
}

// GetMetrics returns current counters.
func (b *Bridge) GetMetrics() BridgeMetrics {
	return BridgeMetrics{
		Published:        atomic.LoadInt64(&b.published),
		PublishErrors:    atomic.LoadInt64(&b.publishErrors),
		CommandsHandled:  atomic.LoadInt64(&b.commandsHandled),
		CommandsRejected: atomic.LoadInt64(&b.commandsRejected),
	}
}

// NewStationMessage renders a registry row for publishing. Telemetry
// channels that never reported are left out.
func NewStationMessage(rec lampnet.StationRecord) StationMessage {
	msg := StationMessage{
		ID:          rec.ID.String(),
		Name:        rec.Name,
		Addr:        rec.Addr,
		Commanded:   lampMessage(rec.Commanded),
		Observed:    lampMessage(rec.Observed),
		CommOkay:    rec.CommOkay,
		CommFail:    rec.CommFail,
		CommQuality: rec.CommQuality,
	}
	if !rec.LastContact.IsZero() {
		last := rec.LastContact
		msg.LastContact = &last
	}
	if !rec.TelemetryUpdated.IsZero() {
		msg.Telemetry = make(map[string]string)
		for ch := lampnet.TelemetryPower1; ch <= lampnet.TelemetryEnv2; ch++ {
			if value := rec.Telemetry[ch]; value != ([lampnet.PayloadLength]byte{}) {
				msg.Telemetry[ch.String()] = hex.EncodeToString(value[:])
			}
		}
	}
	return msg
}

func lampMessage(s lampnet.LampState) LampMessage {
	return LampMessage{
		Mode:        s.Mode.String(),
		Brightness1: lampnet.WireToPercent(s.Brightness1),
		Brightness2: lampnet.WireToPercent(s.Brightness2),
	}
}
