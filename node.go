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

package lampnet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ZaparooProject/go-lampnet/internal/syncutil"
)

// Node is one radio node: a receive loop feeding a frame queue, and a
// protocol loop for its role. A remote controller's protocol loop is the
// command Engine; stations and relays run a RoleHandler over the queue.
//
// Thread Safety: Start and Close may be called from any goroutine. Commands
// go through the Client, which serializes them.
type Node struct {
	transport Transport
	handler   RoleHandler
	opts      *nodeOptions
	queue     *FrameQueue
	receiver  *Receiver
	registry  *Registry
	engine    *Engine
	client    *Client
	cancel    context.CancelFunc
	err       error
	stopped   chan struct{}
	cfg       Config
	wg        sync.WaitGroup
	closeOnce sync.Once
	errMu     syncutil.Mutex
	started   int64
}

// New builds a node for cfg on top of transport. The transport is opened by
// Start if it is not connected yet.
func New(transport Transport, cfg Config, opts ...Option) (*Node, error) {
	if transport == nil {
		return nil, errors.New("transport must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid node config: %w", err)
	}

	options := defaultNodeOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, fmt.Errorf("failed to apply node option: %w", err)
		}
	}
	if options.queue == nil {
		options.queue = NewFrameQueue()
	}

	registry, err := NewRegistry(cfg.Stations)
	if err != nil {
		return nil, fmt.Errorf("station registry: %w", err)
	}

	sender := &frameSender{
		transport: transport,
		self:      cfg.ID,
		testing:   cfg.Testing,
		trace:     NewTraceBuffer(string(transport.Type()), cfg.ID.String(), options.traceSize),
	}

	n := &Node{
		transport: transport,
		opts:      options,
		queue:     options.queue,
		registry:  registry,
		cfg:       cfg,
		stopped:   make(chan struct{}),
		receiver:  NewReceiver(transport, options.queue, cfg.Role, cfg.ID, options.clock),
	}

	if cfg.Role == RoleRC {
		n.engine = newEngine(sender, registry, options.queue, options.clock, cfg.Timing)
		n.handler = n.engine
		n.client = &Client{commands: n.engine.commands, done: n.stopped}
		return n, nil
	}

	n.handler, err = newRoleHandler(cfg.Role, sender, options, cfg.Timing)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Start opens the transport if needed and launches the node's goroutines.
// A transport that cannot be opened is the only error Start reports.
func (n *Node) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt64(&n.started, 0, 1) {
		return errors.New("node already started")
	}

	if !n.transport.IsConnected() {
		if err := OpenWithRetry(ctx, n.transport, nil); err != nil {
			atomic.StoreInt64(&n.started, 0)
			return fmt.Errorf("failed to open %s transport: %w", n.transport.Type(), err)
		}
	}
	if err := n.transport.SetMode(ModeNormal); err != nil {
		Debugf("node: set normal mode: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	Debugf("node: starting %s %s", n.cfg.Role, n.cfg.ID)
	n.receiver.Start(runCtx)

	n.wg.Add(2)
	go func() {
		defer n.wg.Done()
		// a dead radio ends the node
		select {
		case <-n.receiver.Done():
			if err := n.receiver.Err(); err != nil {
				n.setErr(err)
			}
			cancel()
		case <-runCtx.Done():
		}
	}()
	go func() {
		defer n.wg.Done()
		defer close(n.stopped)
		n.runProtocol(runCtx)
	}()
	return nil
}

func (n *Node) runProtocol(ctx context.Context) {
	if n.engine != nil {
		if err := n.engine.Startup(ctx); err != nil {
			Debugf("node: %v", err)
		}
		_ = n.engine.Run(ctx)
		return
	}

	for {
		f, ok := n.queue.Pop(ctx, 0)
		if !ok {
			return
		}
		if err := n.handler.OnFrame(ctx, f); err != nil {
			Debugf("node: %s handling %s: %v", n.cfg.Role, f.Tag, err)
			if IsFatal(err) {
				n.setErr(err)
				return
			}
		}
	}
}

// Close stops both loops and closes the transport.
func (n *Node) Close() error {
	var err error
	n.closeOnce.Do(func() {
		if n.cancel != nil {
			n.cancel()
		}
		n.wg.Wait()
		n.receiver.Wait()
		if atomic.LoadInt64(&n.started) == 0 {
			close(n.stopped)
		}
		err = n.transport.Close()
	})
	return err
}

// Client returns the command client of a remote controller.
func (n *Node) Client() (*Client, error) {
	if n.client == nil {
		return nil, fmt.Errorf("%w: role is %s", ErrNotController, n.cfg.Role)
	}
	return n.client, nil
}

// Registry returns the station table. It is only populated on a remote
// controller.
func (n *Node) Registry() *Registry {
	return n.registry
}

// Role returns the node's role.
func (n *Node) Role() Role {
	return n.cfg.Role
}

// ID returns the node's radio ID.
func (n *Node) ID() NodeID {
	return n.cfg.ID
}

// Timing returns the node's protocol timing.
func (n *Node) Timing() Timing {
	return n.cfg.Timing
}

// Metrics returns the receive loop's counters.
func (n *Node) Metrics() ReceiverMetrics {
	return n.receiver.Metrics()
}

// Lamp returns the lamp state a station last applied. It reports false on
// other roles.
func (n *Node) Lamp() (LampState, bool) {
	sta, ok := n.handler.(*stationHandler)
	if !ok {
		return LampState{}, false
	}
	return sta.Lamp(), true
}

// Done is closed once the protocol loop has exited.
func (n *Node) Done() <-chan struct{} {
	return n.stopped
}

// Err returns the error that stopped the node, if any.
func (n *Node) Err() error {
	n.errMu.Lock()
	defer n.errMu.Unlock()
	return n.err
}

func (n *Node) setErr(err error) {
	n.errMu.Lock()
	defer n.errMu.Unlock()
	if n.err == nil {
		n.err = err
	}
}
