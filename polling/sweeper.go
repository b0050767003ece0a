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

// Package polling runs periodic sweeps over a controller's station registry.
package polling

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-lampnet"
	"github.com/ZaparooProject/go-lampnet/internal/syncutil"
)

// Poller is the part of lampnet.Client the sweeper drives.
type Poller interface {
	AllLampsOn(ctx context.Context) lampnet.CommandResult
	AllLampsOff(ctx context.Context) lampnet.CommandResult
	PollStation(ctx context.Context, addr int) lampnet.CommandResult
	PollPower(ctx context.Context, addr, channel int) lampnet.CommandResult
	PollEnv(ctx context.Context, addr, channel int) lampnet.CommandResult
}

// StationSource lists the stations to sweep. *lampnet.Registry satisfies it.
type StationSource interface {
	Snapshot() []lampnet.StationRecord
}

var (
	_ Poller        = (*lampnet.Client)(nil)
	_ StationSource = (*lampnet.Registry)(nil)
)

// SweepCallbacks defines callback functions for sweep events
type SweepCallbacks struct {
	OnStation     func(rec lampnet.StationRecord, res lampnet.CommandResult)
	OnUnreachable func(rec lampnet.StationRecord, failures int)
	OnSweepDone   func(reached, total int)
}

// SweepMetrics tracks operational metrics for the Sweeper
type SweepMetrics struct {
	SweepCycles      int64         // Total number of sweeps
	PollErrors       int64         // Polls that did not succeed
	StationsReached  int64         // Successful lamp polls
	StationsSkipped  int64         // Polls skipped because of unreachable backoff
	SleepsDetected   int64         // Host sleep/wake cycles noticed between sweeps
	RecoveryErrors   int64         // Failed recovery attempts after a sleep
	LastSweepLatency time.Duration // Duration of the last sweep
}

// Sweeper polls every registered station on a fixed interval.
type Sweeper struct {
	poller    Poller
	stations  StationSource
	recoverer Recoverer
	config    *Config
	callbacks SweepCallbacks
	states    map[lampnet.NodeID]*StationState
	stopChan  chan struct{}
	wg        sync.WaitGroup // Tracks sweep goroutine lifecycle
	mu        syncutil.Mutex
	// Atomic counters for metrics
	sweepCycles      int64
	pollErrors       int64
	stationsReached  int64
	stationsSkipped  int64
	sleepsDetected   int64
	recoveryErrors   int64
	lastSweepLatency int64 // in nanoseconds
	lastSweepEnd     int64 // UnixNano, 0 before the first sweep
	toggles          int64
	// Running state to prevent multiple goroutines
	running int64 // 0 = stopped, 1 = running
}

// NewSweeper creates a sweeper. A nil config selects DefaultConfig.
func NewSweeper(poller Poller, stations StationSource, config *Config, callbacks SweepCallbacks) *Sweeper {
	if config == nil {
		config = DefaultConfig()
	}
	return &Sweeper{
		poller:    poller,
		stations:  stations,
		config:    config,
		callbacks: callbacks,
		states:    make(map[lampnet.NodeID]*StationState),
		stopChan:  make(chan struct{}, 1), // Buffered to prevent deadlock in Stop()
	}
}

// SetRecoverer installs the recoverer used after a detected host sleep.
func (s *Sweeper) SetRecoverer(r Recoverer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recoverer = r
}

// Start launches the sweep loop. Calling it again while running is a no-op.
func (s *Sweeper) Start(ctx context.Context) error {
	if atomic.CompareAndSwapInt64(&s.running, 0, 1) {
		s.wg.Add(1)
		go s.sweepLoop(ctx)
	}
	return nil
}

// sweepLoop runs sweeps until stopped or ctx is done
func (s *Sweeper) sweepLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.config.Interval)
	defer func() {
		ticker.Stop()
		atomic.StoreInt64(&s.running, 0)
	}()

	// Sweep once right away so the registry fills in at startup
	s.performSweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.performSweep(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// performSweep executes a single sweep over the registry
func (s *Sweeper) performSweep(ctx context.Context) {
	start := time.Now()
	s.checkSleep(ctx, start)

	if s.config.Toggle {
		s.toggle(ctx)
	}

	stations := s.stations.Snapshot()
	reached := 0
	for i := range stations {
		if ctx.Err() != nil {
			return
		}
		if s.pollStation(ctx, stations[i]) {
			reached++
		}
	}

	elapsed := time.Since(start)
	atomic.AddInt64(&s.sweepCycles, 1)
	atomic.StoreInt64(&s.lastSweepLatency, elapsed.Nanoseconds())
	atomic.StoreInt64(&s.lastSweepEnd, time.Now().UnixNano())
	lampnet.Debugf("sweep: %d/%d stations answered in %v", reached, len(stations), elapsed)

	if s.callbacks.OnSweepDone != nil {
		s.callbacks.OnSweepDone(reached, len(stations))
	}
}

// checkSleep compares the idle gap since the previous sweep with the
// interval. A longer gap means the host slept, so learned state is dropped
// and the radio recovered.
func (s *Sweeper) checkSleep(ctx context.Context, now time.Time) {
	last := atomic.LoadInt64(&s.lastSweepEnd)
	if last == 0 {
		return
	}
	gap := time.Duration(now.UnixNano() - last)
	if !s.config.SleepRecovery.DetectSleep(gap, s.config.Interval) {
		return
	}

	atomic.AddInt64(&s.sleepsDetected, 1)
	lampnet.Debugf("sweep: %v since last sweep, host probably slept", gap)

	s.mu.Lock()
	for _, st := range s.states {
		st.TransitionToUnknown()
	}
	recoverer := s.recoverer
	s.mu.Unlock()

	if recoverer == nil {
		return
	}
	if err := recoverer.AttemptRecovery(ctx); err != nil {
		atomic.AddInt64(&s.recoveryErrors, 1)
		lampnet.Debugf("sweep: radio recovery failed: %v", err)
	}
}

func (s *Sweeper) toggle(ctx context.Context) {
	var res lampnet.CommandResult
	if atomic.AddInt64(&s.toggles, 1)%2 == 1 {
		res = s.poller.AllLampsOn(ctx)
	} else {
		res = s.poller.AllLampsOff(ctx)
	}
	if !res.Success {
		atomic.AddInt64(&s.pollErrors, 1)
		lampnet.Debugf("sweep: toggle broadcast failed: %v", res.Err)
	}
}

// pollStation polls one station and reports whether it answered.
func (s *Sweeper) pollStation(ctx context.Context, rec lampnet.StationRecord) bool {
	s.mu.Lock()
	state := s.stateLocked(rec.ID)
	skip := state.ShouldSkip()
	s.mu.Unlock()
	if skip {
		atomic.AddInt64(&s.stationsSkipped, 1)
		return false
	}

	res := s.poller.PollStation(ctx, rec.Addr)
	if ctx.Err() != nil {
		return false
	}

	if !res.Success {
		atomic.AddInt64(&s.pollErrors, 1)
		s.mu.Lock()
		becameUnreachable := state.RecordFailure(s.config)
		failures := state.Failures
		s.mu.Unlock()
		if becameUnreachable {
			lampnet.Debugf("sweep: %s (%s) unreachable after %d sweeps", rec.Name, rec.ID, failures)
			if s.callbacks.OnUnreachable != nil {
				s.callbacks.OnUnreachable(rec, failures)
			}
		}
		return false
	}

	s.mu.Lock()
	state.TransitionToReachable(time.Now())
	s.mu.Unlock()
	atomic.AddInt64(&s.stationsReached, 1)

	if s.config.Telemetry {
		s.pollTelemetry(ctx, rec)
	}
	if s.callbacks.OnStation != nil {
		s.callbacks.OnStation(rec, res)
	}
	return true
}

func (s *Sweeper) pollTelemetry(ctx context.Context, rec lampnet.StationRecord) {
	for _, channel := range []int{1, 2} {
		for _, poll := range []func(context.Context, int, int) lampnet.CommandResult{
			s.poller.PollPower, s.poller.PollEnv,
		} {
			if ctx.Err() != nil {
				return
			}
			if res := poll(ctx, rec.Addr, channel); !res.Success {
				atomic.AddInt64(&s.pollErrors, 1)
			}
		}
	}
}

func (s *Sweeper) stateLocked(id lampnet.NodeID) *StationState {
	st, ok := s.states[id]
	if !ok {
		st = &StationState{}
		s.states[id] = st
	}
	return st
}

// Stop stops the sweeper and waits for the sweep goroutine to exit. A sweep
// in progress finishes its current poll first.
func (s *Sweeper) Stop(_ context.Context) error {
	select {
	case s.stopChan <- struct{}{}:
	default:
	}
	s.wg.Wait()
	return nil
}

// States returns a copy of every station's reachability.
func (s *Sweeper) States() map[lampnet.NodeID]StationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[lampnet.NodeID]StationState, len(s.states))
	for id, st := range s.states {
		out[id] = *st
	}
	return out
}

// GetMetrics returns current operational metrics
func (s *Sweeper) GetMetrics() SweepMetrics {
	return SweepMetrics{
		SweepCycles:      atomic.LoadInt64(&s.sweepCycles),
		PollErrors:       atomic.LoadInt64(&s.pollErrors),
		StationsReached:  atomic.LoadInt64(&s.stationsReached),
		StationsSkipped:  atomic.LoadInt64(&s.stationsSkipped),
		SleepsDetected:   atomic.LoadInt64(&s.sleepsDetected),
		RecoveryErrors:   atomic.LoadInt64(&s.recoveryErrors),
		LastSweepLatency: time.Duration(atomic.LoadInt64(&s.lastSweepLatency)),
	}
}
