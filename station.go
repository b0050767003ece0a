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

	"github.com/ZaparooProject/go-lampnet/internal/syncutil"
)

// stationHandler is the STA state machine: apply lamp commands, answer polls
// and stay silent on duplicates and broadcasts.
type stationHandler struct {
	sender    *frameSender
	actuator  LampActuator
	telemetry TelemetrySource
	guard     SequenceGuard
	lamp      LampState
	mu        syncutil.Mutex
}

func newStationHandler(sender *frameSender, actuator LampActuator, telemetry TelemetrySource) *stationHandler {
	return &stationHandler{
		sender:    sender,
		actuator:  actuator,
		telemetry: telemetry,
	}
}

func (*stationHandler) Role() Role {
	return RoleSTA
}

// Lamp returns the last applied lamp state.
func (h *stationHandler) Lamp() LampState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lamp
}

func (h *stationHandler) OnFrame(ctx context.Context, f Frame) error {
	if f.Dest != h.sender.self && !f.IsBroadcast() {
		return nil
	}
	if !h.guard.Admit(f.Seq) {
		last, _ := h.guard.LastSeen()
		Debugf("sta: duplicate %s seq=%d (last %d), ignored", f.Tag, f.Seq, last)
		return nil
	}

	unicast := !f.IsBroadcast()

	switch f.Tag {
	case TagLampCtrl:
		h.applyLamp(LampStateFromPayload(f.Payload))
		if !unicast {
			Debugf("sta: broadcast lamp control, no reply")
			return nil
		}
		return h.reply(ctx, f, TagPollAck, h.Lamp().Payload())

	case TagPoll:
		return h.reply(ctx, f, TagPollAck, h.Lamp().Payload())

	case TagPower1Poll, TagPower2Poll, TagEnv1Poll, TagEnv2Poll:
		ack, _ := f.Tag.AckFor()
		ch, _ := telemetryChannelFor(f.Tag)
		var value [PayloadLength]byte
		if h.telemetry != nil {
			value = h.telemetry.Telemetry()[ch]
		}
		return h.reply(ctx, f, ack, value)

	case TagSnReset:
		Debugf("sta: sequence reset to %d", f.Seq)
		return nil

	case TagAck, TagNack, TagPollAck, TagPower1Ack, TagPower2Ack, TagEnv1Ack, TagEnv2Ack:
		return nil

	default:
		if !unicast {
			return nil
		}
		Debugf("sta: unknown tag %s, answering NACK", f.Tag)
		return h.reply(ctx, f, TagNack, [PayloadLength]byte{})
	}
}

func (h *stationHandler) applyLamp(state LampState) {
	Debugf("sta: lamp %s", state)
	if h.actuator != nil {
		if err := h.actuator.Apply(state); err != nil {
			// the commanded state is still reported; the actuator is best effort
			Debugf("sta: actuator: %v", err)
		}
	}
	h.mu.Lock()
	h.lamp = state
	h.mu.Unlock()
}

func (h *stationHandler) reply(ctx context.Context, req Frame, tag Tag, payload [PayloadLength]byte) error {
	_, err := h.sender.send(ctx, req.Src, h.guard.Reply(), tag, payload)
	return err
}
