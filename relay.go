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
)

// relayHandler forwards every fresh frame not addressed to the relay itself.
// Broadcasts go out after a random backoff; unicast frames wait RelayDelay
// first so the addressed station gets to answer before the copy.
type relayHandler struct {
	sender  *frameSender
	clock   Clock
	backoff BackoffFunc
	timing  Timing
	guard   SequenceGuard
}

func newRelayHandler(sender *frameSender, clock Clock, backoff BackoffFunc, timing Timing) *relayHandler {
	return &relayHandler{
		sender:  sender,
		clock:   clock,
		backoff: backoff,
		timing:  timing,
	}
}

func (*relayHandler) Role() Role {
	return RoleRelay
}

func (h *relayHandler) OnFrame(ctx context.Context, f Frame) error {
	if f.Dest == h.sender.self {
		Debugf("relay: %s addressed to relay consumed", f.Tag)
		return nil
	}
	if !h.guard.Admit(f.Seq) {
		Debugf("relay: duplicate %s seq=%d, not forwarded", f.Tag, f.Seq)
		return nil
	}

	delay := h.backoff(h.timing.RelayRandomBackoff)
	if !f.IsBroadcast() {
		delay += h.timing.RelayDelay
	}
	if err := h.clock.Sleep(ctx, delay); err != nil {
		return fmt.Errorf("relay backoff: %w", err)
	}
	return h.sender.forward(ctx, f)
}
