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

package polling

import (
	"context"
	"errors"
	"time"

	"github.com/ZaparooProject/go-lampnet"
	"github.com/ZaparooProject/go-lampnet/internal/syncutil"
)

// Recoverer brings the radio back after sleep/wake or errors
type Recoverer interface {
	// AttemptRecovery tries to recover the radio.
	// Returns nil if recovery was successful, error otherwise.
	AttemptRecovery(ctx context.Context) error
}

// ReopenFunc is a function that attempts to reopen the radio's port
type ReopenFunc func() error

var errRadioDisconnected = errors.New("radio transport is not connected")

// DefaultRecoverer implements a tiered recovery strategy:
// 1. Drive the E32 back into normal mode (the pins may have floated while the host slept)
// 2. Reopen the port via the user-provided reopen function
type DefaultRecoverer struct {
	transport   lampnet.Transport
	reopenFunc  ReopenFunc
	backoff     time.Duration
	maxAttempts int
	mu          syncutil.Mutex
}

// NewDefaultRecoverer creates a recoverer with tiered recovery strategy.
// If reopenFunc is nil, only the mode reset will be attempted.
func NewDefaultRecoverer(
	transport lampnet.Transport,
	reopenFunc ReopenFunc,
	backoff time.Duration,
	maxAttempts int,
) *DefaultRecoverer {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &DefaultRecoverer{
		transport:   transport,
		reopenFunc:  reopenFunc,
		backoff:     backoff,
		maxAttempts: maxAttempts,
	}
}

// AttemptRecovery implements tiered recovery:
// 1. Reset the module mode - works if the port is still open
// 2. If that fails and reopenFunc is provided, reopen the port
func (r *DefaultRecoverer) AttemptRecovery(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error

	for attempt := range r.maxAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff):
			}
		}

		// Tier 1: mode reset
		if r.transport.IsConnected() {
			err := r.transport.SetMode(lampnet.ModeNormal)
			if err == nil {
				return nil
			}
			lastErr = err
		} else {
			lastErr = errRadioDisconnected
		}

		// Tier 2: reopen
		if r.reopenFunc != nil {
			reopenErr := r.reopenFunc()
			if reopenErr == nil {
				lampnet.Debugf("sweep: radio reopened on attempt %d", attempt+1)
				return nil
			}
			lastErr = reopenErr
		}
	}

	return lastErr
}
