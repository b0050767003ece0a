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

// Package actuator drives the lamp output of a station.
package actuator

import (
	"fmt"

	"github.com/ZaparooProject/go-lampnet"
	"github.com/ZaparooProject/go-lampnet/internal/syncutil"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// DefaultLEDPin is the BCM pin of the indicator LED on the station board.
const DefaultLEDPin = "GPIO21"

// LED lights a single GPIO when the lamp is commanded on in any form.
// The board LED is wired active-low.
type LED struct {
	pin       gpio.PinOut
	last      lampnet.LampState
	mu        syncutil.Mutex
	activeLow bool
}

// OpenLED initializes the host drivers and drives pinName. The LED starts off.
func OpenLED(pinName string, activeLow bool) (*LED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("LED pin %q not found", pinName)
	}
	return NewLED(pin, activeLow)
}

// NewLED wraps an already resolved pin and switches it off.
func NewLED(pin gpio.PinOut, activeLow bool) (*LED, error) {
	l := &LED{pin: pin, activeLow: activeLow}
	if err := l.drive(false); err != nil {
		return nil, err
	}
	return l, nil
}

// Apply implements lampnet.LampActuator.
func (l *LED) Apply(state lampnet.LampState) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.drive(state.Mode.Lit()); err != nil {
		return err
	}
	l.last = state
	if state.Mode.Lit() {
		lampnet.Debugf("LED on (%s)", state)
	} else {
		lampnet.Debugf("LED off")
	}
	return nil
}

// State returns the last applied lamp state.
func (l *LED) State() lampnet.LampState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// Off switches the LED off, typically on shutdown.
func (l *LED) Off() error {
	return l.Apply(lampnet.LampStateAllOff)
}

func (l *LED) drive(on bool) error {
	level := gpio.Level(on)
	if l.activeLow {
		level = !level
	}
	if err := l.pin.Out(level); err != nil {
		return fmt.Errorf("drive LED %s: %w", l.pin, err)
	}
	return nil
}

var _ lampnet.LampActuator = (*LED)(nil)
