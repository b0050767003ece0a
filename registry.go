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
	"time"

	"github.com/ZaparooProject/go-lampnet/internal/syncutil"
)

// StationConfig is the static description of one station.
type StationConfig struct {
	Name string
	Addr int
	ID   NodeID
}

// StationRecord is the controller's view of one station.
type StationRecord struct {
	TelemetryUpdated time.Time
	LastContact      time.Time
	Name             string
	Telemetry        Telemetry
	Addr             int
	CommOkay         int
	CommFail         int
	// CommQuality is the current run of failed exchanges; 0 after a success.
	CommQuality int
	ID          NodeID
	Commanded   LampState
	Observed    LampState
}

// Registry is the table of known stations. The command engine writes it;
// everything else reads copies.
type Registry struct {
	rows   map[NodeID]*StationRecord
	byAddr map[int]NodeID
	order  []NodeID
	mu     syncutil.RWMutex
}

// NewRegistry builds the table from configuration. Address 0 is reserved for
// broadcast and every ID and address must be unique.
func NewRegistry(stations []StationConfig) (*Registry, error) {
	r := &Registry{
		rows:   make(map[NodeID]*StationRecord, len(stations)),
		byAddr: make(map[int]NodeID, len(stations)),
		order:  make([]NodeID, 0, len(stations)),
	}
	for _, st := range stations {
		switch {
		case st.ID.IsBroadcast():
			return nil, fmt.Errorf("%w: station %q uses the broadcast id", ErrInvalidNodeID, st.Name)
		case st.Addr <= 0:
			return nil, fmt.Errorf("station %s: address %d must be positive", st.ID, st.Addr)
		}
		if _, dup := r.rows[st.ID]; dup {
			return nil, fmt.Errorf("station %s listed twice", st.ID)
		}
		if other, dup := r.byAddr[st.Addr]; dup {
			return nil, fmt.Errorf("address %d used by both %s and %s", st.Addr, other, st.ID)
		}
		r.rows[st.ID] = &StationRecord{ID: st.ID, Addr: st.Addr, Name: st.Name}
		r.byAddr[st.Addr] = st.ID
		r.order = append(r.order, st.ID)
	}
	return r, nil
}

// Get returns a copy of the station's record.
func (r *Registry) Get(id NodeID) (StationRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.rows[id]
	if !ok {
		return StationRecord{}, false
	}
	return *rec, true
}

// Contains reports whether id is a known station.
func (r *Registry) Contains(id NodeID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rows[id]
	return ok
}

// Update applies fn to the station's record under the write lock.
// It returns false when the station is unknown.
func (r *Registry) Update(id NodeID, fn func(*StationRecord)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rows[id]
	if !ok {
		return false
	}
	fn(rec)
	return true
}

// UpdateAll applies fn to every record.
func (r *Registry) UpdateAll(fn func(*StationRecord)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		fn(r.rows[id])
	}
}

// Snapshot returns copies of all records in configuration order.
func (r *Registry) Snapshot() []StationRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]StationRecord, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.rows[id])
	}
	return out
}

// ResolveAddress maps a logical address to a station ID. Address 0 is the
// broadcast address.
func (r *Registry) ResolveAddress(addr int) (NodeID, error) {
	if addr == 0 {
		return Broadcast, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byAddr[addr]
	if !ok {
		return NodeID{}, fmt.Errorf("%w: no station at address %d", ErrAddressResolution, addr)
	}
	return id, nil
}

// IDs returns the station IDs in configuration order.
func (r *Registry) IDs() []NodeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]NodeID(nil), r.order...)
}

// Len returns the number of stations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
