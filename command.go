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

package lampnet

import (
	"context"
	"fmt"

	"github.com/ZaparooProject/go-lampnet/internal/syncutil"
)

// CommandKind is what a Command asks the network to do.
type CommandKind int

const (
	// KindNone does nothing and always succeeds.
	KindNone CommandKind = iota
	// KindLampCtrl sets lamp mode and brightness.
	KindLampCtrl
	// KindPoll reads back a station's lamp state.
	KindPoll
	// KindPowerPoll reads power telemetry channel 1 or 2.
	KindPowerPoll
	// KindEnvPoll reads environment telemetry channel 1 or 2.
	KindEnvPoll
)

func (k CommandKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindLampCtrl:
		return "lamp-ctrl"
	case KindPoll:
		return "poll"
	case KindPowerPoll:
		return "power-poll"
	case KindEnvPoll:
		return "env-poll"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Destination names a command's target either by radio ID or by the
// station's logical address. Address 0 means broadcast.
type Destination struct {
	Addr int
	ID   NodeID
	ByID bool
}

// ToStation addresses a station by its radio ID.
func ToStation(id NodeID) Destination {
	return Destination{ID: id, ByID: true}
}

// ToAddress addresses a station by logical address.
func ToAddress(addr int) Destination {
	return Destination{Addr: addr}
}

// ToAll addresses every station.
func ToAll() Destination {
	return Destination{ID: Broadcast, ByID: true}
}

func (d Destination) String() string {
	if d.ByID {
		return d.ID.String()
	}
	return fmt.Sprintf("addr %d", d.Addr)
}

// Command is one request to the command engine.
type Command struct {
	result  chan CommandResult
	Dest    Destination
	Kind    CommandKind
	ID      uint64
	Channel int
	Payload [PayloadLength]byte
}

// CommandResult is the outcome of a Command. Payload holds the matched
// response's payload for unicast commands.
type CommandResult struct {
	Err      error
	Payload  []byte
	Attempts int
	Station  NodeID
	Success  bool
}

// NewLampCommand builds a LampCtrl command.
func NewLampCommand(dest Destination, state LampState) *Command {
	return &Command{Kind: KindLampCtrl, Dest: dest, Payload: state.Payload()}
}

// NewPollCommand builds a lamp status poll.
func NewPollCommand(dest Destination) *Command {
	return &Command{Kind: KindPoll, Dest: dest}
}

// NewPowerPollCommand builds a poll of power channel 1 or 2.
func NewPowerPollCommand(dest Destination, channel int) *Command {
	return &Command{Kind: KindPowerPoll, Dest: dest, Channel: channel}
}

// NewEnvPollCommand builds a poll of environment channel 1 or 2.
func NewEnvPollCommand(dest Destination, channel int) *Command {
	return &Command{Kind: KindEnvPoll, Dest: dest, Channel: channel}
}

// tags returns the wire tag for the request and the tag that answers it.
func (c *Command) tags() (request, response Tag, err error) {
	switch c.Kind {
	case KindLampCtrl:
		return TagLampCtrl, TagPollAck, nil
	case KindPoll:
		return TagPoll, TagPollAck, nil
	case KindPowerPoll, KindEnvPoll:
		ch, err := c.telemetryChannel()
		if err != nil {
			return 0, 0, err
		}
		request = ch.pollTag()
		response, _ = request.AckFor()
		return request, response, nil
	default:
		return 0, 0, fmt.Errorf("%w: %s", ErrUnknownCommand, c.Kind)
	}
}

func (c *Command) telemetryChannel() (TelemetryChannel, error) {
	switch {
	case c.Kind == KindPowerPoll && c.Channel == 1:
		return TelemetryPower1, nil
	case c.Kind == KindPowerPoll && c.Channel == 2:
		return TelemetryPower2, nil
	case c.Kind == KindEnvPoll && c.Channel == 1:
		return TelemetryEnv1, nil
	case c.Kind == KindEnvPoll && c.Channel == 2:
		return TelemetryEnv2, nil
	default:
		return 0, fmt.Errorf("%w: %s channel %d", ErrUnknownCommand, c.Kind, c.Channel)
	}
}

func (c *Command) complete(res CommandResult) {
	if c.result != nil {
		c.result <- res
	}
}

// Client submits commands to a controller's engine, one at a time.
type Client struct {
	commands chan<- *Command
	done     <-chan struct{}
	nextID   uint64
	mu       syncutil.Mutex
}

// Submit hands cmd to the engine and waits for its result. Submissions are
// serialized so at most one command is ever in flight.
func (c *Client) Submit(ctx context.Context, cmd *Command) CommandResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	cmd.ID = c.nextID
	cmd.result = make(chan CommandResult, 1)

	select {
	case c.commands <- cmd:
	case <-c.done:
		return CommandResult{Err: ErrNodeClosed}
	case <-ctx.Done():
		return CommandResult{Err: ctx.Err()}
	}

	select {
	case res := <-cmd.result:
		return res
	case <-c.done:
		return CommandResult{Err: ErrNodeClosed}
	case <-ctx.Done():
		return CommandResult{Err: ctx.Err()}
	}
}

// AllLampsOn broadcasts LampCtrl(AllOn) at full brightness.
func (c *Client) AllLampsOn(ctx context.Context) CommandResult {
	return c.Submit(ctx, NewLampCommand(ToAll(), LampStateAllOn))
}

// AllLampsOff broadcasts LampCtrl(AllOff).
func (c *Client) AllLampsOff(ctx context.Context) CommandResult {
	return c.Submit(ctx, NewLampCommand(ToAll(), LampStateAllOff))
}

// SetLamp sets one station's lamp. Brightness is given in percent for each
// channel and sent on the 0-255 wire scale.
func (c *Client) SetLamp(ctx context.Context, addr int, mode LampMode, pct1, pct2 int) CommandResult {
	state := LampState{Mode: mode, Brightness1: PercentToWire(pct1), Brightness2: PercentToWire(pct2)}
	return c.Submit(ctx, NewLampCommand(ToAddress(addr), state))
}

// PollStation reads back a station's lamp state.
func (c *Client) PollStation(ctx context.Context, addr int) CommandResult {
	return c.Submit(ctx, NewPollCommand(ToAddress(addr)))
}

// PollPower reads power telemetry channel 1 or 2.
func (c *Client) PollPower(ctx context.Context, addr, channel int) CommandResult {
	return c.Submit(ctx, NewPowerPollCommand(ToAddress(addr), channel))
}

// PollEnv reads environment telemetry channel 1 or 2.
func (c *Client) PollEnv(ctx context.Context, addr, channel int) CommandResult {
	return c.Submit(ctx, NewEnvPollCommand(ToAddress(addr), channel))
}
