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

// Package detection finds serial ports that likely carry an E32 radio.
package detection

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ZaparooProject/go-lampnet"
	"github.com/ZaparooProject/go-lampnet/transport/uart"
	"go.bug.st/serial/enumerator"
)

// Mode represents the level of invasiveness for device detection
type Mode int

const (
	// Passive mode only checks port descriptors without opening anything
	Passive Mode = iota
	// Safe mode opens each candidate port at the module baud rate
	Safe
	// Full mode also asks the module for its version in configuration mode
	Full
)

func (m Mode) String() string {
	switch m {
	case Passive:
		return "passive"
	case Safe:
		return "safe"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Confidence represents the confidence level of device detection
type Confidence int

const (
	// Low confidence - any serial port
	Low Confidence = iota
	// Medium confidence - a known USB-UART bridge or board UART
	Medium
	// High confidence - the probe succeeded
	High
)

// DeviceInfo represents a candidate radio port
type DeviceInfo struct {
	// Additional metadata (e.g., VID:PID for USB devices)
	Metadata map[string]string
	// Connection path (e.g., "/dev/ttyUSB0", "COM3")
	Path string
	// Human-readable device name
	Name string
	// Detection confidence level
	Confidence Confidence
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	confidence := "unknown"
	switch d.Confidence {
	case Low:
		confidence = "low"
	case Medium:
		confidence = "medium"
	case High:
		confidence = "high"
	}
	return fmt.Sprintf("serial port %s (confidence: %s)", d.Path, confidence)
}

// Options configures the detection behavior
type Options struct {
	// USB VID:PID pairs to skip (e.g., ["1234:5678", "ABCD:EF01"])
	Blocklist []string
	// Device paths to explicitly ignore (e.g., ["/dev/ttyUSB0", "COM2"])
	IgnorePaths []string
	// Cache TTL duration
	CacheTTL time.Duration
	// Maximum time to wait for detection
	Timeout time.Duration
	// Detection invasiveness level
	Mode Mode
	// Enable result caching
	EnableCache bool
}

// DefaultOptions returns sensible default detection options
func DefaultOptions() Options {
	return Options{
		Mode:        Safe,
		Timeout:     5 * time.Second,
		EnableCache: true,
		CacheTTL:    30 * time.Second,
	}
}

// Errors
var (
	// ErrNoDevicesFound indicates no candidate port was found
	ErrNoDevicesFound = errors.New("no E32 radio found")
	// ErrDetectionTimeout indicates detection timed out
	ErrDetectionTimeout = errors.New("detection timeout")
)

// Port is one enumerated serial port.
type Port struct {
	Path         string
	VIDPID       string
	Product      string
	SerialNumber string
	IsUSB        bool
}

// PortLister enumerates serial ports.
type PortLister func() ([]Port, error)

// Prober checks whether a module answers on path.
type Prober func(ctx context.Context, path string, mode Mode) bool

// Detector ranks serial ports by how likely they carry an E32 module.
type Detector struct {
	list  PortLister
	probe Prober
}

// New creates a Detector. Nil arguments select the system port enumerator
// and the UART transport probe.
func New(list PortLister, probe Prober) *Detector {
	if list == nil {
		list = SystemPorts
	}
	if probe == nil {
		probe = ProbePort
	}
	return &Detector{list: list, probe: probe}
}

// SystemPorts lists ports through the OS enumerator.
func SystemPorts() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	ports := make([]Port, 0, len(details))
	for _, d := range details {
		port := Port{Path: d.Name, IsUSB: d.IsUSB, Product: d.Product, SerialNumber: d.SerialNumber}
		if d.IsUSB && d.VID != "" {
			port.VIDPID = strings.ToUpper(d.VID + ":" + d.PID)
		}
		ports = append(ports, port)
	}
	return ports, nil
}

// Detect returns candidate ports, best first.
func (d *Detector) Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if opts.EnableCache {
		if cached, found := getCached(opts.Mode, opts.CacheTTL); found {
			if devices := filterDevices(cached, opts); len(devices) > 0 {
				return devices, nil
			}
		}
	}

	ports, err := d.list()
	if err != nil {
		return nil, err
	}

	var devices []DeviceInfo
	for i := range ports {
		if ctx.Err() != nil {
			return nil, ErrDetectionTimeout
		}
		if device, ok := d.processPort(ctx, &ports[i], opts); ok {
			devices = append(devices, device)
		}
	}

	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].Confidence > devices[j].Confidence
	})

	if opts.EnableCache {
		if len(devices) > 0 {
			setCached(opts.Mode, devices)
		} else {
			clearCacheForMode(opts.Mode)
		}
	}

	if len(devices) == 0 {
		return nil, ErrNoDevicesFound
	}
	return devices, nil
}

// DetectPort returns the path of the best candidate.
func (d *Detector) DetectPort(ctx context.Context, opts *Options) (string, error) {
	devices, err := d.Detect(ctx, opts)
	if err != nil {
		return "", err
	}
	lampnet.Debugf("detected %s", devices[0])
	return devices[0].Path, nil
}

// processPort handles a single port's detection logic
func (d *Detector) processPort(ctx context.Context, port *Port, opts *Options) (DeviceInfo, bool) {
	if port.VIDPID != "" && IsBlocked(port.VIDPID, opts.Blocklist) {
		return DeviceInfo{}, false
	}
	if IsPathIgnored(port.Path, opts.IgnorePaths) {
		return DeviceInfo{}, false
	}

	confidence := Low
	if isLikelyE32(port) {
		confidence = Medium
	}

	switch opts.Mode {
	case Passive:
		if confidence == Low {
			return DeviceInfo{}, false
		}
	case Safe, Full:
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		ok := d.probe(probeCtx, port.Path, opts.Mode)
		cancel()
		if !ok {
			return DeviceInfo{}, false
		}
		if opts.Mode == Full {
			confidence = High
		}
	}

	return createDeviceInfo(port, confidence), true
}

func createDeviceInfo(port *Port, confidence Confidence) DeviceInfo {
	device := DeviceInfo{
		Path:       port.Path,
		Name:       port.Path[strings.LastIndex(port.Path, "/")+1:],
		Confidence: confidence,
		Metadata:   make(map[string]string),
	}
	if port.VIDPID != "" {
		device.Metadata["vidpid"] = port.VIDPID
	}
	if port.Product != "" {
		device.Metadata["product"] = port.Product
	}
	if port.SerialNumber != "" {
		device.Metadata["serial"] = port.SerialNumber
	}
	return device
}

// knownBridges are USB-UART chips found on E32 carrier boards.
var knownBridges = []string{
	"1A86:7523", // QinHeng CH340
	"10C4:EA60", // Silicon Labs CP210x
	"0403:6001", // FTDI FT232
	"067B:2303", // Prolific PL2303
}

// boardUARTs are SoC serial ports the module is wired to on single-board computers.
var boardUARTs = []string{uart.BoardPort, "/dev/ttyAMA0", "/dev/serial0"}

func isLikelyE32(port *Port) bool {
	upper := strings.ToUpper(port.VIDPID)
	for _, known := range knownBridges {
		if upper == known {
			return true
		}
	}
	for _, board := range boardUARTs {
		if port.Path == board {
			return true
		}
	}
	product := strings.ToLower(port.Product)
	for _, keyword := range []string{"e32", "ebyte", "lora"} {
		if strings.Contains(product, keyword) {
			return true
		}
	}
	return false
}

// ProbePort opens path at the module speed. In Full mode it also reads the
// module version, which needs the module in configuration mode.
//
// A probe is a single attempt; retrying would only delay detection.
func ProbePort(ctx context.Context, path string, mode Mode) bool {
	transport, err := uart.New(path)
	if err != nil {
		return false
	}
	if err := transport.Open(); err != nil {
		return false
	}
	defer func() { _ = transport.Close() }()

	if mode != Full {
		return true
	}
	version, err := transport.ReadVersion(ctx)
	if err != nil {
		lampnet.Debugf("probe %s: %v", path, err)
		return false
	}
	lampnet.Debugf("probe %s: E32 %s", path, version)
	return true
}

// filterDevices applies IgnorePaths and Blocklist filtering to a device list.
// This ensures cached results respect the same filtering as fresh detection.
func filterDevices(devices []DeviceInfo, opts *Options) []DeviceInfo {
	if len(opts.IgnorePaths) == 0 && len(opts.Blocklist) == 0 {
		return devices
	}

	var filtered []DeviceInfo
	for _, device := range devices {
		if IsPathIgnored(device.Path, opts.IgnorePaths) {
			continue
		}
		if vidpid, ok := device.Metadata["vidpid"]; ok && IsBlocked(vidpid, opts.Blocklist) {
			continue
		}
		filtered = append(filtered, device)
	}
	return filtered
}

// IsBlocked checks if a USB device is in the blocklist.
func IsBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.ToUpper(strings.TrimSpace(vidpid))
	for _, blocked := range blocklist {
		if vidpid == strings.ToUpper(strings.TrimSpace(blocked)) {
			return true
		}
	}
	return false
}

// IsPathIgnored checks if a device path should be ignored. Paths compare
// cleaned and case-insensitively so Windows COM names match.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	normalizedDevice := normalizedPath(devicePath)
	for _, ignorePath := range ignorePaths {
		if ignorePath != "" && normalizedPath(ignorePath) == normalizedDevice {
			return true
		}
	}
	return false
}

func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}

// ClearDetectionCache removes all cached detection results
func ClearDetectionCache() {
	clearCache()
}
