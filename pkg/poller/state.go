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

package poller

import (
	"errors"

	"github.com/carverauto/ewspoller/pkg/extract"
	"github.com/carverauto/ewspoller/pkg/metrics"
	"github.com/carverauto/ewspoller/pkg/transport"
)

// offlinePayload stands in for the status document while the printer is
// unreachable.
func offlinePayload() map[string]any {
	return map[string]any{
		"ProductStatusDyn": map[string]any{
			"Status": []any{
				map[string]any{"StatusCategory": "offline"},
			},
		},
	}
}

// DebugData is the diagnostics snapshot of a poller.
type DebugData struct {
	SessionID  string           `json:"session_id"`
	EntryID    string           `json:"entry_id"`
	Online     bool             `json:"online"`
	Endpoints  []string         `json:"endpoints"`
	Freshness  map[string]int64 `json:"freshness"`
	Settings   map[string]any   `json:"settings,omitempty"`
	LastCycle  *CycleResult     `json:"last_cycle,omitempty"`
	Raw        map[string]any   `json:"raw"`
	Processed  extract.Devices  `json:"processed"`
	Dispatched []string         `json:"dispatched"`
}

// Devices returns a copy of the current device map.
func (p *Poller) Devices() extract.Devices {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(extract.Devices, len(p.devices))
	for key, data := range p.devices {
		out[key] = copyDevice(data)
	}

	return out
}

// Device returns a copy of one device.
func (p *Poller) Device(key string) (extract.DeviceData, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	data, ok := p.devices[key]
	if !ok {
		return nil, false
	}

	return copyDevice(data), true
}

// DeviceConfigs returns a copy of the device configuration map.
func (p *Poller) DeviceConfigs() extract.Configs {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(extract.Configs, len(p.configs))
	for key, cfg := range p.configs {
		out[key] = cfg
	}

	return out
}

// RawData returns a deep copy of the raw payload cache.
func (p *Poller) RawData() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]any, len(p.raw))
	for endpoint, payload := range p.raw {
		out[endpoint] = deepCopy(payload)
	}

	return out
}

// Online reports whether the last status probe succeeded.
func (p *Poller) Online() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.scheduler != nil && p.scheduler.Online()
}

// Freshness returns the last successful fetch time per endpoint.
func (p *Poller) Freshness() map[string]int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.scheduler == nil {
		return map[string]int64{}
	}

	return p.scheduler.Freshness()
}

// Endpoints returns the endpoints polled by this session, status first.
func (p *Poller) Endpoints() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return append([]string(nil), p.endpoints...)
}

// LastCycle returns the result of the most recent update, if any.
func (p *Poller) LastCycle() *CycleResult {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.lastCycle == nil {
		return nil
	}

	c := *p.lastCycle

	return &c
}

// DebugData returns raw and processed data along with scheduling state.
func (p *Poller) DebugData() *DebugData {
	data := &DebugData{
		SessionID:  p.sessionID.String(),
		EntryID:    p.config.EntryID,
		Online:     p.Online(),
		Endpoints:  p.Endpoints(),
		Freshness:  p.Freshness(),
		LastCycle:  p.LastCycle(),
		Raw:        p.RawData(),
		Processed:  p.Devices(),
		Dispatched: p.detector.Dispatched(),
	}

	if p.settings != nil {
		data.Settings = p.settings.Data()
	}

	return data
}

func copyDevice(data extract.DeviceData) extract.DeviceData {
	out := make(extract.DeviceData, len(data))
	for k, v := range data {
		out[k] = v
	}

	return out
}

func deepCopy(v any) any {
	switch value := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[k] = deepCopy(item)
		}

		return out
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = deepCopy(item)
		}

		return out
	default:
		return value
	}
}

// outcome maps a fetch error onto a metrics label.
func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case transport.IsNotFound(err):
		return metrics.OutcomeNotFound
	case errors.Is(err, transport.ErrTimeout):
		return metrics.OutcomeTimeout
	case errors.Is(err, transport.ErrHTTPStatus):
		return metrics.OutcomeHTTPError
	case errors.Is(err, transport.ErrParse):
		return metrics.OutcomeParseError
	default:
		return metrics.OutcomeUnreachable
	}
}
