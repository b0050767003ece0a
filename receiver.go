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
	"sync"
	"sync/atomic"

	"github.com/ZaparooProject/go-lampnet/internal/syncutil"
)

// ReceiverMetrics tracks what the receive loop has seen.
type ReceiverMetrics struct {
	FramesReceived int64 // Frames that passed framing and CRC checks
	FramesAdmitted int64 // Frames queued for the protocol loop
	FramesRejected int64 // Frames filtered out by the role's admission rule
	Resyncs        int64 // Header hits whose CRC did not match
	ReceiveErrors  int64 // Transport receive failures
}

// Receiver turns the transport's byte stream into admitted frames on a
// FrameQueue. It runs one goroutine for the life of a node.
type Receiver struct {
	transport Transport
	queue     *FrameQueue
	clock     Clock
	err       error
	done      chan struct{}
	scanner   FrameScanner
	wg        sync.WaitGroup
	errMu     syncutil.Mutex
	// Atomic counters for metrics
	received      int64
	admitted      int64
	rejected      int64
	resyncs       int64
	receiveErrors int64
	role          Role
	self          NodeID
	// Running state to prevent multiple goroutines
	running int64 // 0 = stopped, 1 = running
}

// NewReceiver creates a receive loop for a node with the given role and ID.
func NewReceiver(transport Transport, queue *FrameQueue, role Role, self NodeID, clock Clock) *Receiver {
	if clock == nil {
		clock = realClock{}
	}
	return &Receiver{
		transport: transport,
		queue:     queue,
		clock:     clock,
		role:      role,
		self:      self,
		done:      make(chan struct{}),
	}
}

// Start launches the loop. It returns without effect if the loop already ran.
func (r *Receiver) Start(ctx context.Context) {
	if !atomic.CompareAndSwapInt64(&r.running, 0, 1) {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(r.done)
		if err := r.run(ctx); err != nil {
			r.errMu.Lock()
			r.err = err
			r.errMu.Unlock()
		}
	}()
}

// run reads until ctx is done or the transport reports a fatal error.
func (r *Receiver) run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		data, err := r.transport.Receive(ctx, FrameLength, MaxReceiveSlice)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			atomic.AddInt64(&r.receiveErrors, 1)
			if IsFatal(err) {
				Debugf("rx: fatal receive error, stopping: %v", err)
				return fmt.Errorf("receive loop: %w", err)
			}
			Debugf("rx: receive error: %v", err)
			if sleepErr := r.clock.Sleep(ctx, ReceiveErrorBackoff); sleepErr != nil {
				return nil
			}
			continue
		}
		if len(data) == 0 {
			continue
		}

		r.scanner.Feed(data)
		r.drainScanner()
	}
}

func (r *Receiver) drainScanner() {
	before := r.scanner.Stats().Resyncs
	for {
		f, ok := r.scanner.Next()
		if !ok {
			break
		}
		atomic.AddInt64(&r.received, 1)
		if !r.role.Admits(r.self, f) {
			atomic.AddInt64(&r.rejected, 1)
			Debugf("rx: %s not for %s %s, dropped", f, r.role, r.self)
			continue
		}
		atomic.AddInt64(&r.admitted, 1)
		Debugf("rx: %s", f)
		r.queue.Push(f)
	}
	if after := r.scanner.Stats().Resyncs; after > before {
		atomic.AddInt64(&r.resyncs, int64(after-before))
		Debugf("rx: %d resync(s) after checksum mismatch", after-before)
	}
}

// Done is closed when the loop has exited.
func (r *Receiver) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the loop has exited.
func (r *Receiver) Wait() {
	r.wg.Wait()
}

// Err returns the fatal error that stopped the loop, if any.
func (r *Receiver) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

// Metrics returns current counters.
func (r *Receiver) Metrics() ReceiverMetrics {
	return ReceiverMetrics{
		FramesReceived: atomic.LoadInt64(&r.received),
		FramesAdmitted: atomic.LoadInt64(&r.admitted),
		FramesRejected: atomic.LoadInt64(&r.rejected),
		Resyncs:        atomic.LoadInt64(&r.resyncs),
		ReceiveErrors:  atomic.LoadInt64(&r.receiveErrors),
	}
}
