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
	"errors"
	"fmt"
	"strings"
	"time"
)

// TraceDirection tells what a trace entry records.
type TraceDirection string

const (
	// TraceTX is a frame handed to the radio.
	TraceTX TraceDirection = "TX"
	// TraceRX is a frame taken off the receive queue.
	TraceRX TraceDirection = "RX"
	// TraceTimeout is a response window that closed without the wanted frame.
	TraceTimeout TraceDirection = "--"
)

// TraceEntry is one line of a command's radio history.
type TraceEntry struct {
	Timestamp time.Time
	Direction TraceDirection
	Note      string
	Frame     Frame
}

func (e TraceEntry) String() string {
	ts := e.Timestamp.Format("15:04:05.000")
	if e.Direction == TraceTimeout {
		return fmt.Sprintf("[%s] timeout: %s", ts, e.Note)
	}
	return fmt.Sprintf("[%s] %s %s", ts, e.Direction, e.Frame)
}

// TraceableError carries the frames exchanged while a command failed.
//
//	var te *lampnet.TraceableError
//	if errors.As(res.Err, &te) {
//	    log.Printf("radio history:\n%s", te.FormatTrace())
//	}
type TraceableError struct {
	Err       error
	Transport string
	Node      string
	Trace     []TraceEntry
}

func (e *TraceableError) Error() string {
	return e.Err.Error()
}

func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace renders the history one entry per line, oldest first.
func (e *TraceableError) FormatTrace() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "[%s node %s] ", e.Transport, e.Node)
	if len(e.Trace) == 0 {
		_, _ = sb.WriteString("no frames recorded")
		return sb.String()
	}
	_, _ = fmt.Fprintf(&sb, "%d entries:\n", len(e.Trace))
	for _, entry := range e.Trace {
		_, _ = sb.WriteString("  ")
		_, _ = sb.WriteString(entry.String())
		_ = sb.WriteByte('\n')
	}
	return sb.String()
}

// TraceBuffer keeps the last frames of the command in flight in a ring.
// It belongs to the protocol goroutine and is not safe for concurrent use.
type TraceBuffer struct {
	transport string
	node      string
	ring      []TraceEntry
	next      int
	full      bool
}

// NewTraceBuffer creates a ring holding size entries (16 when size <= 0).
func NewTraceBuffer(transport, node string, size int) *TraceBuffer {
	if size <= 0 {
		size = 16
	}
	return &TraceBuffer{
		transport: transport,
		node:      node,
		ring:      make([]TraceEntry, size),
	}
}

// RecordTX records a frame about to be transmitted.
func (tb *TraceBuffer) RecordTX(f Frame) {
	tb.add(TraceEntry{Direction: TraceTX, Frame: f})
}

// RecordRX records a frame the engine looked at.
func (tb *TraceBuffer) RecordRX(f Frame) {
	tb.add(TraceEntry{Direction: TraceRX, Frame: f})
}

// RecordTimeout records an empty response window.
func (tb *TraceBuffer) RecordTimeout(note string) {
	tb.add(TraceEntry{Direction: TraceTimeout, Note: note})
}

func (tb *TraceBuffer) add(entry TraceEntry) {
	entry.Timestamp = time.Now()
	tb.ring[tb.next] = entry
	tb.next = (tb.next + 1) % len(tb.ring)
	if tb.next == 0 {
		tb.full = true
	}
}

// Entries returns the recorded entries, oldest first.
func (tb *TraceBuffer) Entries() []TraceEntry {
	if !tb.full {
		return append([]TraceEntry(nil), tb.ring[:tb.next]...)
	}
	out := make([]TraceEntry, 0, len(tb.ring))
	out = append(out, tb.ring[tb.next:]...)
	return append(out, tb.ring[:tb.next]...)
}

// WrapError attaches the current history to err. A nil err stays nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &TraceableError{
		Err:       err,
		Transport: tb.transport,
		Node:      tb.node,
		Trace:     tb.Entries(),
	}
}

// Clear forgets every entry. The engine calls it when a command starts.
func (tb *TraceBuffer) Clear() {
	tb.next = 0
	tb.full = false
}

// HasTrace reports whether err carries a radio history.
func HasTrace(err error) bool {
	return GetTrace(err) != nil
}

// GetTrace extracts the radio history from err, or nil.
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}
