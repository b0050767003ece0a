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

// Command lampnode runs one street-lamp radio node (controller, station or
// relay) from a YAML configuration file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZaparooProject/go-lampnet"
	"github.com/ZaparooProject/go-lampnet/actuator"
	"github.com/ZaparooProject/go-lampnet/detection"
	"github.com/ZaparooProject/go-lampnet/internal/config"
	"github.com/ZaparooProject/go-lampnet/transport/uart"
)

type options struct {
	configPath string
	debug      bool
	sessionLog bool
	e32Info    bool
	detect     bool
}

// Package-level flag variables
var (
	flagConfigPath string
	flagDebug      bool
	flagSessionLog bool
	flagE32Info    bool
	flagDetect     bool
)

func init() {
	flag.StringVar(&flagConfigPath, "config", "lampnode.yaml", "Path to the node configuration file")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
	flag.BoolVar(&flagSessionLog, "log", false, "Write a session log file in the working directory")
	flag.BoolVar(&flagE32Info, "e32-info", false, "Print the E32 module version and parameters, then exit")
	flag.BoolVar(&flagDetect, "detect", false, "List serial ports that may carry an E32 radio, then exit")
}

func parseOptions() *options {
	opts := &options{
		configPath: flagConfigPath,
		debug:      flagDebug,
		sessionLog: flagSessionLog,
		e32Info:    flagE32Info,
		detect:     flagDetect,
	}

	if opts.debug {
		lampnet.SetDebugEnabled(true)
	}

	return opts
}

// transportFactory builds the radio transport for a resolved port.
type transportFactory func(cfg *config.Config, port string) (lampnet.Transport, error)

// startupError marks failures that happen before the node is running.
type startupError struct {
	err error
}

func (e *startupError) Error() string { return e.err.Error() }
func (e *startupError) Unwrap() error { return e.err }

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	config.Normalize(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// resolvePort turns "auto" into a concrete serial port.
func resolvePort(ctx context.Context, port string) (string, error) {
	if port != config.DefaultPort {
		return port, nil
	}
	opts := detection.DefaultOptions()
	path, err := detection.New(nil, nil).DetectPort(ctx, &opts)
	if errors.Is(err, detection.ErrNoDevicesFound) {
		fallback := uart.DefaultPort()
		lampnet.Debugf("no radio detected, falling back to %s", fallback)
		return fallback, nil
	}
	return path, err
}

// newUARTTransport builds the E32 transport. GPIO lines are opened unless the
// configuration says the module is strapped without them.
func newUARTTransport(cfg *config.Config, port string) (*uart.Transport, error) {
	opts := []uart.Option{
		uart.WithBaudRate(cfg.Radio.BaudRate),
		uart.WithAuxTimeout(cfg.AuxTimeout()),
	}
	if !cfg.Radio.NoPins {
		pins, err := uart.OpenGPIOPins(cfg.Radio.AuxPin, cfg.Radio.M0Pin, cfg.Radio.M1Pin)
		if err != nil {
			return nil, fmt.Errorf("radio pins: %w", err)
		}
		opts = append(opts, uart.WithPins(pins))
	}
	return uart.New(port, opts...)
}

// transmitRetryConfig bounds how long one frame may be retried while AUX
// stays busy or the write fails.
func transmitRetryConfig(cfg *config.Config) *lampnet.RetryConfig {
	retry := lampnet.DefaultRetryConfig()
	retry.MaxAttempts = 2
	retry.RetryTimeout = time.Duration(retry.MaxAttempts+1) * (cfg.AuxTimeout() + retry.MaxBackoff)
	return retry
}

func defaultTransportFactory(cfg *config.Config, port string) (lampnet.Transport, error) {
	tr, err := newUARTTransport(cfg, port)
	if err != nil {
		return nil, err
	}
	return lampnet.NewTransportWithRetry(tr, transmitRetryConfig(cfg)), nil
}

// stationOptions wires the lamp output. A host without the LED pin still
// runs as a station; the lamp state is then only kept in memory.
func stationOptions(cfg *config.Config) []lampnet.Option {
	led, err := actuator.OpenLED(cfg.Station.LEDPin, !cfg.Station.LEDActiveHigh)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: lamp output disabled: %v\n", err)
		return nil
	}
	return []lampnet.Option{lampnet.WithLampActuator(led)}
}

func runDetect(ctx context.Context) error {
	opts := detection.DefaultOptions()
	opts.Mode = detection.Full
	opts.EnableCache = false
	devices, err := detection.New(nil, nil).Detect(ctx, &opts)
	if err != nil {
		return err
	}
	for _, d := range devices {
		_, _ = fmt.Println(d.String())
	}
	return nil
}

func runE32Info(ctx context.Context, cfg *config.Config, port string) error {
	tr, err := newUARTTransport(cfg, port)
	if err != nil {
		return err
	}
	if err := tr.Open(); err != nil {
		return &startupError{err: err}
	}
	defer func() { _ = tr.Close() }()

	version, err := tr.ReadVersion(ctx)
	if err != nil {
		return fmt.Errorf("read E32 version: %w", err)
	}
	params, err := tr.ReadConfig(ctx)
	if err != nil {
		return fmt.Errorf("read E32 parameters: %w", err)
	}
	_, _ = fmt.Printf("E32 on %s: %s\n", port, version)
	_, _ = fmt.Printf("Parameters: %s\n", params)
	return nil
}

func runNode(ctx context.Context, cfg *config.Config, port string, newTransport transportFactory) error {
	nodeCfg, err := cfg.NodeConfig()
	if err != nil {
		return &startupError{err: err}
	}
	tr, err := newTransport(cfg, port)
	if err != nil {
		return &startupError{err: err}
	}

	var nodeOpts []lampnet.Option
	if nodeCfg.Role == lampnet.RoleSTA {
		nodeOpts = stationOptions(cfg)
	}

	node, err := lampnet.New(tr, nodeCfg, nodeOpts...)
	if err != nil {
		return &startupError{err: err}
	}
	if err := node.Start(ctx); err != nil {
		return &startupError{err: fmt.Errorf("start %s node on %s: %w", nodeCfg.Role, port, err)}
	}
	defer func() {
		if err := node.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close node: %v\n", err)
		}
	}()

	lampnet.SessionNotef("%s %s on %s: retry=%d e32_delay=%v hop=%d stations=%d",
		nodeCfg.Role, nodeCfg.ID, port, nodeCfg.Timing.Retry, nodeCfg.Timing.E32Delay, nodeCfg.Timing.Hop, len(nodeCfg.Stations))
	_, _ = fmt.Printf("%s %s running on %s. Press Ctrl+C to stop...\n", nodeCfg.Role, nodeCfg.ID, port)

	if nodeCfg.Role == lampnet.RoleRC {
		stop, err := startController(ctx, node, tr, cfg)
		if err != nil {
			return err
		}
		defer stop()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-node.Done():
		if err := node.Err(); err != nil {
			return fmt.Errorf("node stopped: %w", err)
		}
		return nil
	}
}

func run(ctx context.Context, opts *options, newTransport transportFactory) error {
	if opts.detect {
		return runDetect(ctx)
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return &startupError{err: err}
	}

	detectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	port, err := resolvePort(detectCtx, cfg.Radio.Port)
	cancel()
	if err != nil {
		return &startupError{err: fmt.Errorf("resolve radio port: %w", err)}
	}

	if opts.e32Info {
		return runE32Info(ctx, cfg, port)
	}
	return runNode(ctx, cfg, port, newTransport)
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	opts := parseOptions()

	if opts.sessionLog {
		path, err := lampnet.InitSessionLog("")
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Warning: session log unavailable: %v\n", err)
		} else {
			_, _ = fmt.Printf("Session log: %s\n", path)
			defer func() { _ = lampnet.CloseSessionLog() }()
		}
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	return exitCode(run(ctx, opts, defaultTransportFactory))
}

func exitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var startup *startupError
	if errors.As(err, &startup) {
		return 2
	}
	return 1
}
