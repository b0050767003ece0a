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

package detection

import (
	"time"

	"github.com/ZaparooProject/go-lampnet/internal/syncutil"
)

type cacheEntry struct {
	timestamp time.Time
	devices   []DeviceInfo
}

// detectionCache holds results per detection mode; a Safe result says
// nothing about what a Full probe would find.
type detectionCache struct {
	entries map[Mode]cacheEntry
	mu      syncutil.RWMutex
}

var cache = &detectionCache{
	entries: make(map[Mode]cacheEntry),
}

// getCached returns cached devices if available and not expired
func getCached(mode Mode, ttl time.Duration) ([]DeviceInfo, bool) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	entry, exists := cache.entries[mode]
	if !exists || time.Since(entry.timestamp) > ttl {
		return nil, false
	}

	devices := make([]DeviceInfo, len(entry.devices))
	copy(devices, entry.devices)
	return devices, true
}

// setCached stores detection results in cache
func setCached(mode Mode, devices []DeviceInfo) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	devicesCopy := make([]DeviceInfo, len(devices))
	copy(devicesCopy, devices)
	cache.entries[mode] = cacheEntry{devices: devicesCopy, timestamp: time.Now()}
}

func clearCache() {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.entries = make(map[Mode]cacheEntry)
}

func clearCacheForMode(mode Mode) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	delete(cache.entries, mode)
}
