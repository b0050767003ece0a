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
	"time"

	"github.com/ZaparooProject/go-lampnet/internal/syncutil"
)

// FrameQueue is the unbounded FIFO between the receive loop and the protocol
// loop. Push never blocks. Traffic on the channel is low, so frames are
// allowed to pile up when the consumer is busy.
type FrameQueue struct {
	notify chan struct{}
	frames []Frame
	mu     syncutil.Mutex
}

// NewFrameQueue creates an empty queue.
func NewFrameQueue() *FrameQueue {
	return &FrameQueue{notify: make(chan struct{}, 1)}
}

// Push appends a frame and wakes a waiting Pop.
func (q *FrameQueue) Push(f Frame) {
	q.mu.Lock()
	q.frames = append(q.frames, f)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// TryPop removes the oldest frame without waiting.
func (q *FrameQueue) TryPop() (Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) == 0 {
		return Frame{}, false
	}
	f := q.frames[0]
	q.frames[0] = Frame{}
	q.frames = q.frames[1:]
	if len(q.frames) == 0 {
		q.frames = nil
	}
	return f, true
}

// Pop waits up to timeout for a frame. A timeout of zero or less waits until
// ctx is done.
func (q *FrameQueue) Pop(ctx context.Context, timeout time.Duration) (Frame, bool) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		if f, ok := q.TryPop(); ok {
			return f, true
		}
		select {
		case <-q.notify:
		case <-expired:
			// a frame pushed right at the deadline still counts
			return q.TryPop()
		case <-ctx.Done():
			return Frame{}, false
		}
	}
}

// Len returns the number of queued frames.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Drain discards every queued frame and returns how many there were.
func (q *FrameQueue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.frames)
	q.frames = nil
	return n
}
