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
	"fmt"
	"os"
	"sync/atomic"
)

// debugEnabled controls whether debug output is echoed to the console.
var debugEnabled atomic.Bool

func init() {
	if os.Getenv("LAMPNET_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled.Store(true)
	}
}

// Debugf logs a protocol event. Every frame sent or received, every resync
// and every retry goes through here. The session log always gets the line;
// the console only while debugging is enabled.
func Debugf(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	session.line("DEBUG", message)
	if debugEnabled.Load() {
		_, _ = fmt.Printf("DEBUG: %s\n", message)
	}
}

// SetDebugEnabled turns console debug output on or off at runtime.
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}
