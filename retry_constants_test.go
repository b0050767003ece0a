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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestRetryConstants_ConnectionValues verifies connection retry constants
// are within reasonable bounds for opening a serial radio.
func TestRetryConstants_ConnectionValues(t *testing.T) {
	t.Parallel()

	// DefaultConnectionRetries should be at least 1, at most 10
	assert.GreaterOrEqual(t, DefaultConnectionRetries, 1,
		"DefaultConnectionRetries should be at least 1")
	assert.LessOrEqual(t, DefaultConnectionRetries, 10,
		"DefaultConnectionRetries should not exceed 10")

	// ConnectionInitialBackoff should be between 50ms and 500ms
	assert.GreaterOrEqual(t, ConnectionInitialBackoff, 50*time.Millisecond,
		"ConnectionInitialBackoff should be at least 50ms")
	assert.LessOrEqual(t, ConnectionInitialBackoff, 500*time.Millisecond,
		"ConnectionInitialBackoff should not exceed 500ms")

	// ConnectionMaxBackoff should be greater than initial backoff
	assert.Greater(t, ConnectionMaxBackoff, ConnectionInitialBackoff,
		"ConnectionMaxBackoff should be greater than initial backoff")

	// ConnectionBackoffMultiplier should be between 1.5 and 3.0
	assert.GreaterOrEqual(t, ConnectionBackoffMultiplier, 1.5,
		"ConnectionBackoffMultiplier should be at least 1.5")
	assert.LessOrEqual(t, ConnectionBackoffMultiplier, 3.0,
		"ConnectionBackoffMultiplier should not exceed 3.0")

	// ConnectionJitter should be between 0 and 0.5
	assert.GreaterOrEqual(t, ConnectionJitter, 0.0,
		"ConnectionJitter should be non-negative")
	assert.LessOrEqual(t, ConnectionJitter, 0.5,
		"ConnectionJitter should not exceed 0.5")

	// ConnectionRetryTimeout should allow for multiple retry attempts
	minExpectedTimeout := time.Duration(DefaultConnectionRetries) * ConnectionInitialBackoff
	assert.Greater(t, ConnectionRetryTimeout, minExpectedTimeout,
		"ConnectionRetryTimeout should allow for multiple attempts")
}

// TestRetryConstants_RadioTiming verifies the timing defaults of the radio
// protocol stay consistent with each other.
func TestRetryConstants_RadioTiming(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3, DefaultRetry)
	assert.Equal(t, 2*time.Second, DefaultE32Delay)
	assert.Equal(t, 1*time.Second, DefaultRelayDelay)
	assert.Equal(t, 3*time.Second, DefaultRelayRandomBackoff)

	// Reads are sliced so a loop never blocks longer than a second
	assert.LessOrEqual(t, MaxReceiveSlice, time.Second)

	// AUX sampling must happen several times within the AUX timeout
	assert.Less(t, DefaultAuxPollInterval*5, DefaultAuxTimeout)

	// Transient receive errors must not spin
	assert.Positive(t, ReceiveErrorBackoff)
}
