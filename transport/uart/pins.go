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

package uart

import (
	"fmt"

	"github.com/ZaparooProject/go-lampnet"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Default BCM pin names of the E32 control lines.
const (
	DefaultAuxPin = "GPIO27"
	DefaultM0Pin  = "GPIO17"
	DefaultM1Pin  = "GPIO18"
)

// Pins are the E32 control lines.
type Pins interface {
	// AuxReady reports whether AUX is high (module idle).
	AuxReady() bool
	// SetMode drives M0/M1 for mode.
	SetMode(mode lampnet.Mode) error
}

// GPIOPins drives the control lines through periph.io.
type GPIOPins struct {
	aux gpio.PinIn
	m0  gpio.PinOut
	m1  gpio.PinOut
}

// OpenGPIOPins initializes the host drivers and looks the pins up by name.
// AUX is configured as an input with pull-up.
func OpenGPIOPins(auxName, m0Name, m1Name string) (*GPIOPins, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	lookup := func(role, name string) (gpio.PinIO, error) {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("E32 %s pin %q not found", role, name)
		}
		return p, nil
	}

	aux, err := lookup("AUX", auxName)
	if err != nil {
		return nil, err
	}
	m0, err := lookup("M0", m0Name)
	if err != nil {
		return nil, err
	}
	m1, err := lookup("M1", m1Name)
	if err != nil {
		return nil, err
	}
	return NewGPIOPins(aux, m0, m1)
}

// NewGPIOPins wraps already resolved pins.
func NewGPIOPins(aux gpio.PinIn, m0, m1 gpio.PinOut) (*GPIOPins, error) {
	if err := aux.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure AUX %s: %w", aux, err)
	}
	return &GPIOPins{aux: aux, m0: m0, m1: m1}, nil
}

// AuxReady implements Pins.
func (p *GPIOPins) AuxReady() bool {
	return p.aux.Read() == gpio.High
}

// SetMode implements Pins. Normal is M0=M1=low, configuration is both high.
func (p *GPIOPins) SetMode(mode lampnet.Mode) error {
	var level gpio.Level
	switch mode {
	case lampnet.ModeNormal:
		level = gpio.Low
	case lampnet.ModeConfiguration:
		level = gpio.High
	default:
		return fmt.Errorf("unsupported E32 mode %s", mode)
	}

	if err := p.m0.Out(level); err != nil {
		return fmt.Errorf("drive M0: %w", err)
	}
	if err := p.m1.Out(level); err != nil {
		return fmt.Errorf("drive M1: %w", err)
	}
	lampnet.Debugf("e32 mode %s (M0=M1=%s)", mode, level)
	return nil
}
