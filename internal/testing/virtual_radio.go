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

// Package testing provides a simulated radio medium and a jittery serial
// connection for exercising lampnet nodes without hardware.
package testing

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	lampnet "github.com/ZaparooProject/go-lampnet"
)

// RadioConfig configures the behavior of a VirtualRadio.
type RadioConfig struct {
	// Latency delays delivery of every transmission. Zero delivers inline.
	Latency time.Duration
	// DropRate is the chance that one receiver misses a transmission.
	DropRate float64
	// CorruptRate is the chance that one receiver gets a transmission with a
	// flipped byte.
	CorruptRate float64
	Seed        uint64
}

// Transmission is one entry in the radio's on-air log.
type Transmission struct {
	At        time.Time
	From      string
	Data      []byte
	Delivered []string
}

// VirtualRadio is a shared broadcast medium. Every byte one attached port
// transmits reaches every other port in range, which is how E32 modules in
// transparent mode behave.
type VirtualRadio struct {
	rng     *rand.Rand
	blocked map[[2]string]bool
	ports   []*RadioPort
	log     []Transmission
	config  RadioConfig
	mu      sync.Mutex
}

// NewVirtualRadio creates an empty medium.
func NewVirtualRadio(config RadioConfig) *VirtualRadio {
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64() //nolint:gosec // Test code, not crypto
	}
	return &VirtualRadio{
		rng:     rand.New(rand.NewPCG(seed, seed^0xDEADBEEF)), //nolint:gosec // Test code, not crypto
		blocked: make(map[[2]string]bool),
		config:  config,
	}
}

// Attach adds a node's radio to the medium.
func (r *VirtualRadio) Attach(name string) *RadioPort {
	port := &RadioPort{
		radio:     r,
		name:      name,
		notify:    make(chan struct{}, 1),
		connected: true,
	}
	r.mu.Lock()
	r.ports = append(r.ports, port)
	r.mu.Unlock()
	return port
}

// Cut takes two ports out of range of each other.
func (r *VirtualRadio) Cut(a, b string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocked[[2]string{a, b}] = true
	r.blocked[[2]string{b, a}] = true
}

// Restore puts two ports back in range.
func (r *VirtualRadio) Restore(a, b string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.blocked, [2]string{a, b})
	delete(r.blocked, [2]string{b, a})
}

// Transmissions returns a copy of the on-air log.
func (r *VirtualRadio) Transmissions() []Transmission {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Transmission, len(r.log))
	copy(out, r.log)
	return out
}

// TransmissionsFrom returns the log entries sent by one port.
func (r *VirtualRadio) TransmissionsFrom(name string) []Transmission {
	var out []Transmission
	for _, tx := range r.Transmissions() {
		if tx.From == name {
			out = append(out, tx)
		}
	}
	return out
}

type delivery struct {
	port *RadioPort
	data []byte
}

func (r *VirtualRadio) transmit(from *RadioPort, data []byte) {
	r.mu.Lock()
	entry := Transmission{At: time.Now(), From: from.name, Data: append([]byte(nil), data...)}
	var deliveries []delivery
	for _, port := range r.ports {
		if port == from || r.blocked[[2]string{from.name, port.name}] {
			continue
		}
		if r.config.DropRate > 0 && r.rng.Float64() < r.config.DropRate {
			continue
		}
		payload := append([]byte(nil), data...)
		if r.config.CorruptRate > 0 && len(payload) > 0 && r.rng.Float64() < r.config.CorruptRate {
			payload[r.rng.IntN(len(payload))] ^= 0xFF
		}
		deliveries = append(deliveries, delivery{port: port, data: payload})
		entry.Delivered = append(entry.Delivered, port.name)
	}
	r.log = append(r.log, entry)
	latency := r.config.Latency
	r.mu.Unlock()

	deliver := func() {
		for _, d := range deliveries {
			d.port.inject(d.data)
		}
	}
	if latency > 0 {
		time.AfterFunc(latency, deliver)
		return
	}
	deliver()
}

// RadioPort is one node's view of the medium. It implements
// lampnet.Transport.
type RadioPort struct {
	radio     *VirtualRadio
	notify    chan struct{}
	name      string
	rx        []byte
	txCount   int
	mode      lampnet.Mode
	mu        sync.Mutex
	connected bool
}

// Name returns the name the port was attached under.
func (p *RadioPort) Name() string {
	return p.name
}

// Open implements lampnet.Transport.
func (p *RadioPort) Open() error {
	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()
	return nil
}

// Close implements lampnet.Transport.
func (p *RadioPort) Close() error {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	p.wake()
	return nil
}

// Transmit implements lampnet.Transport. A module in configuration mode
// does not transmit.
func (p *RadioPort) Transmit(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	switch {
	case !p.connected:
		p.mu.Unlock()
		return lampnet.NewTransportClosedError("transmit", p.name)
	case p.mode != lampnet.ModeNormal:
		p.mu.Unlock()
		return lampnet.NewTransportNotReadyError("transmit", p.name)
	}
	p.txCount++
	p.mu.Unlock()

	p.radio.transmit(p, data)
	return nil
}

// Receive implements lampnet.Transport.
func (p *RadioPort) Receive(ctx context.Context, maxBytes int, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		p.mu.Lock()
		if !p.connected {
			p.mu.Unlock()
			return nil, lampnet.NewTransportClosedError("receive", p.name)
		}
		if len(p.rx) > 0 {
			n := min(maxBytes, len(p.rx))
			out := append([]byte(nil), p.rx[:n]...)
			p.rx = p.rx[n:]
			p.mu.Unlock()
			return out, nil
		}
		p.mu.Unlock()

		select {
		case <-p.notify:
		case <-timer.C:
			return []byte{}, nil
		case <-ctx.Done():
			return []byte{}, nil
		}
	}
}

// SetMode implements lampnet.Transport.
func (p *RadioPort) SetMode(mode lampnet.Mode) error {
	p.mu.Lock()
	p.mode = mode
	p.mu.Unlock()
	return nil
}

// IsConnected implements lampnet.Transport.
func (p *RadioPort) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Type implements lampnet.Transport.
func (*RadioPort) Type() lampnet.TransportType {
	return lampnet.TransportSimulated
}

// HasCapability implements lampnet.TransportCapabilityChecker. A simulated
// module is always ready and has no mode pins.
func (*RadioPort) HasCapability(capability lampnet.TransportCapability) bool {
	return capability == lampnet.CapabilityReadyLine
}

// TransmitCount returns how many frames the port has sent.
func (p *RadioPort) TransmitCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.txCount
}

// Pending returns the number of received bytes not yet read.
func (p *RadioPort) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rx)
}

func (p *RadioPort) inject(data []byte) {
	p.mu.Lock()
	if !p.connected {
		p.mu.Unlock()
		return
	}
	p.rx = append(p.rx, data...)
	p.mu.Unlock()
	p.wake()
}

func (p *RadioPort) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}
