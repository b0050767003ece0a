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
	"errors"
	"fmt"
	"time"
)

// Engine is the remote controller's command loop. It owns the send counter,
// the transmit path and the station registry's write side, and it runs one
// command at a time.
type Engine struct {
	sender   *frameSender
	registry *Registry
	queue    *FrameQueue
	counter  *SendCounter
	clock    Clock
	trace    *TraceBuffer
	commands chan *Command
	timing   Timing
}

func newEngine(sender *frameSender, registry *Registry, queue *FrameQueue, clock Clock, timing Timing) *Engine {
	return &Engine{
		sender:   sender,
		registry: registry,
		queue:    queue,
		counter:  NewSendCounter(),
		clock:    clock,
		trace:    sender.trace,
		commands: make(chan *Command),
		timing:   timing,
	}
}

// Role implements RoleHandler.
func (*Engine) Role() Role {
	return RoleRC
}

// OnFrame implements RoleHandler. Frames that arrive while no command is
// waiting are unsolicited and only logged.
func (*Engine) OnFrame(_ context.Context, f Frame) error {
	Debugf("rc: unsolicited %s discarded", f)
	return nil
}

// Startup broadcasts a sequence reset so every station and relay accepts the
// counter from zero, then waits for the reset to settle.
func (e *Engine) Startup(ctx context.Context) error {
	seq, _ := e.counter.Next(true)
	if err := e.sendReset(ctx, seq); err != nil {
		return fmt.Errorf("startup reset: %w", err)
	}
	return nil
}

// Run executes submitted commands until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-e.commands:
			e.flushUnsolicited(ctx)
			res := e.execute(ctx, cmd)
			if res.Success {
				Debugf("rc: command %d (%s to %s) done after %d attempt(s)", cmd.ID, cmd.Kind, cmd.Dest, res.Attempts)
			} else {
				Debugf("rc: command %d (%s to %s) failed: %v", cmd.ID, cmd.Kind, cmd.Dest, res.Err)
			}
			cmd.complete(res)
		}
	}
}

func (e *Engine) flushUnsolicited(ctx context.Context) {
	for {
		f, ok := e.queue.TryPop()
		if !ok {
			return
		}
		_ = e.OnFrame(ctx, f)
	}
}

func (e *Engine) execute(ctx context.Context, cmd *Command) CommandResult {
	if cmd.Kind == KindNone {
		return CommandResult{Success: true}
	}

	dest, err := e.resolve(cmd.Dest)
	if err != nil {
		return CommandResult{Err: err}
	}

	request, response, err := cmd.tags()
	if err != nil {
		return CommandResult{Err: err, Station: dest}
	}

	e.trace.Clear()
	if dest.IsBroadcast() {
		if request != TagLampCtrl {
			return CommandResult{Err: fmt.Errorf("%w: %s", ErrIllegalBroadcast, request), Station: dest}
		}
		return e.broadcast(ctx, cmd)
	}

	if request == TagLampCtrl {
		state := LampStateFromPayload(cmd.Payload)
		e.registry.Update(dest, func(rec *StationRecord) {
			rec.Commanded = state
		})
	}
	return e.unicast(ctx, cmd, dest, request, response)
}

// resolve turns a Destination into a radio ID. An explicit ID must be the
// broadcast address or a registered station.
func (e *Engine) resolve(d Destination) (NodeID, error) {
	if !d.ByID {
		return e.registry.ResolveAddress(d.Addr)
	}
	if d.ID.IsBroadcast() || e.registry.Contains(d.ID) {
		return d.ID, nil
	}
	return NodeID{}, fmt.Errorf("%w: %s is not a registered station", ErrAddressResolution, d.ID)
}

func (e *Engine) broadcast(ctx context.Context, cmd *Command) CommandResult {
	seq, _ := e.counter.Next(true)
	_, sendErr := e.sender.send(ctx, Broadcast, seq, TagLampCtrl, cmd.Payload)

	// the settle delay applies even when the transmission failed
	if err := e.clock.Sleep(ctx, e.timing.SettleDelay()); err != nil && sendErr == nil {
		Debugf("rc: settle delay interrupted: %v", err)
	}
	if sendErr != nil {
		return CommandResult{Err: e.trace.WrapError(sendErr), Attempts: 1, Station: Broadcast}
	}

	state := LampStateFromPayload(cmd.Payload)
	e.registry.UpdateAll(func(rec *StationRecord) {
		rec.Commanded = state
	})
	return CommandResult{Success: true, Attempts: 1, Station: Broadcast}
}

func (e *Engine) unicast(ctx context.Context, cmd *Command, dest NodeID, request, response Tag) CommandResult {
	var lastErr error
	for attempt := 1; attempt <= e.timing.Retry; attempt++ {
		if attempt > 1 {
			if err := ctx.Err(); err != nil {
				lastErr = errors.Join(lastErr, err)
				break
			}
			Debugf("rc: retrying %s to %s (attempt %d/%d)", request, dest, attempt, e.timing.Retry)
		}

		reply, err := e.attempt(ctx, cmd, dest, request, response)
		if err == nil {
			e.recordSuccess(dest, reply)
			return CommandResult{
				Success:  true,
				Attempts: attempt,
				Station:  dest,
				Payload:  append([]byte(nil), reply.Payload[:]...),
			}
		}

		e.recordFailure(dest)
		lastErr = &ExchangeError{Op: request.String(), Station: dest, Attempt: attempt, Err: err}
		if IsTerminal(err) {
			return CommandResult{Err: e.trace.WrapError(lastErr), Attempts: attempt, Station: dest}
		}
	}

	err := fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
	return CommandResult{Err: e.trace.WrapError(err), Attempts: e.timing.Retry, Station: dest}
}

// attempt transmits the request once and waits for its answer.
func (e *Engine) attempt(ctx context.Context, cmd *Command, dest NodeID, request, response Tag) (Frame, error) {
	seq, needReset := e.counter.Next(false)
	if needReset {
		if err := e.sendReset(ctx, 0); err != nil {
			return Frame{}, err
		}
	}

	if _, err := e.sender.send(ctx, dest, seq, request, cmd.Payload); err != nil {
		return Frame{}, err
	}
	return e.awaitResponse(ctx, dest, response)
}

// awaitResponse waits one response timeout for the expected tag from dest.
// The wait is not cut short by ctx; cancellation is seen between attempts.
func (e *Engine) awaitResponse(ctx context.Context, dest NodeID, want Tag) (Frame, error) {
	waitCtx := context.WithoutCancel(ctx)
	timeout := e.timing.ResponseTimeout()
	deadline := time.Now().Add(timeout)
	var mismatch error

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		f, ok := e.queue.Pop(waitCtx, remaining)
		if !ok {
			break
		}
		e.trace.RecordRX(f)

		switch {
		case f.Src != dest:
			Debugf("rc: %s from %s while waiting on %s, ignored", f.Tag, f.Src, dest)
			continue
		case !e.counter.Accept(f.Seq):
			Debugf("rc: stale %s seq=%d from %s (counter at %d), dropped", f.Tag, f.Seq, f.Src, e.counter.Current())
			continue
		}

		switch f.Tag {
		case want:
			Debugf("rc: %s from %s seq=%d", f.Tag, f.Src, f.Seq)
			return f, nil
		case TagNack:
			return f, ErrResponseNack
		default:
			mismatch = fmt.Errorf("%w: got %s, want %s", ErrResponseTagMismatch, f.Tag, want)
			Debugf("rc: %v", mismatch)
		}
	}

	e.trace.RecordTimeout(fmt.Sprintf("%s from %s after %v", want, dest, timeout))
	if mismatch != nil {
		return Frame{}, errors.Join(ErrResponseTimeout, mismatch)
	}
	return Frame{}, ErrResponseTimeout
}

func (e *Engine) sendReset(ctx context.Context, seq byte) error {
	Debugf("rc: broadcasting sequence reset")
	_, sendErr := e.sender.send(ctx, Broadcast, seq, TagSnReset, [PayloadLength]byte{})
	if sendErr == nil {
		e.counter.ResetSent()
	}
	if err := e.clock.Sleep(ctx, e.timing.SettleDelay()); err != nil && sendErr == nil {
		return err
	}
	return sendErr
}

func (e *Engine) recordSuccess(id NodeID, reply Frame) {
	now := time.Now()
	e.registry.Update(id, func(rec *StationRecord) {
		if ch, ok := telemetryChannelFor(reply.Tag); ok {
			rec.Telemetry[ch] = reply.Payload
			rec.TelemetryUpdated = now
		} else {
			rec.Observed = LampStateFromPayload(reply.Payload)
		}
		rec.LastContact = now
		rec.CommOkay++
		rec.CommQuality = 0
	})
}

func (e *Engine) recordFailure(id NodeID) {
	e.registry.Update(id, func(rec *StationRecord) {
		rec.CommFail++
		rec.CommQuality++
	})
}
