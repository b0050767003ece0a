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

//go:build !deadlock

// Package syncutil provides the lock types used for node state shared between
// the receive goroutine, the command engine and registry readers.
// Plain sync locks are used unless the build sets -tags=deadlock, which swaps in
// github.com/sasha-s/go-deadlock so lock-order bugs surface in tests.
package syncutil

import "sync"

// Mutex is a sync.Mutex unless built with -tags=deadlock.
//
//nolint:gocritic // embedding exposes Lock/Unlock directly
type Mutex struct {
	sync.Mutex
}

// RWMutex is a sync.RWMutex unless built with -tags=deadlock.
//
//nolint:gocritic // embedding exposes the full RWMutex API
type RWMutex struct {
	sync.RWMutex
}
