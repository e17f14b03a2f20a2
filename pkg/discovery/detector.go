/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package discovery announces devices the first time they carry data
// within a session.
package discovery

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/ewspoller/pkg/extract"
	"github.com/carverauto/ewspoller/pkg/scheduler"
)

// Event is the one-time announcement of a newly observed device.
type Event struct {
	ID           uuid.UUID            `json:"id"`
	EntryID      string               `json:"entry_id"`
	DeviceKey    string               `json:"device_key"`
	DeviceType   string               `json:"device_type"`
	Data         extract.DeviceData   `json:"data"`
	Config       extract.DeviceConfig `json:"config"`
	DiscoveredAt time.Time            `json:"discovered_at"`
}

// Detector keeps the set of device keys already announced this session.
type Detector struct {
	mu         sync.Mutex
	entryID    string
	clock      scheduler.Clock
	dispatched map[string]struct{}
}

// NewDetector creates a detector with an empty dispatched set.
func NewDetector(entryID string, clock scheduler.Clock) *Detector {
	if clock == nil {
		clock = scheduler.RealClock{}
	}

	return &Detector{
		entryID:    entryID,
		clock:      clock,
		dispatched: make(map[string]struct{}),
	}
}

// Detect returns one event per device key that has not been announced yet
// and marks those keys as dispatched. Events are ordered by device key.
func (d *Detector) Detect(devices extract.Devices, configs extract.Configs) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	var fresh []string

	for key, data := range devices {
		if len(data) == 0 {
			continue
		}

		if _, ok := d.dispatched[key]; ok {
			continue
		}

		fresh = append(fresh, key)
	}

	if len(fresh) == 0 {
		return nil
	}

	sort.Strings(fresh)

	now := d.clock.Now()
	events := make([]Event, 0, len(fresh))

	for _, key := range fresh {
		d.dispatched[key] = struct{}{}

		events = append(events, Event{
			ID:           uuid.New(),
			EntryID:      d.entryID,
			DeviceKey:    key,
			DeviceType:   extract.DeviceType(key),
			Data:         copyData(devices[key]),
			Config:       configs[key],
			DiscoveredAt: now,
		})
	}

	return events
}

// Dispatched returns the announced keys, sorted.
func (d *Detector) Dispatched() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	keys := make([]string, 0, len(d.dispatched))
	for key := range d.dispatched {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// Reset clears the dispatched set; only used when a session restarts.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dispatched = make(map[string]struct{})
}

func copyData(data extract.DeviceData) extract.DeviceData {
	out := make(extract.DeviceData, len(data))
	for k, v := range data {
		out[k] = v
	}

	return out
}
