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

// Package extract applies a data-point schema to cached endpoint payloads
// and groups the projected fields into devices.
package extract

import (
	"sort"
	"strconv"
	"strings"

	"github.com/carverauto/ewspoller/pkg/datapoint"
	"github.com/carverauto/ewspoller/pkg/logger"
	"github.com/carverauto/ewspoller/pkg/xmltree"
)

// DeviceData holds the validated field values of one device.
type DeviceData map[string]any

// Devices maps a device key to its data.
type Devices map[string]DeviceData

// DeviceConfig describes the schema that produced a device.
type DeviceConfig struct {
	DeviceType string                        `json:"device_type"`
	Properties map[string]datapoint.Property `json:"properties"`
}

// Configs maps a device key to its config, keyed identically to Devices.
type Configs map[string]DeviceConfig

type item struct {
	index int
	value any
}

// Extract re-derives the full device map from the raw payload cache.
func Extract(raw map[string]any, schema *datapoint.Schema, log logger.Logger) (Devices, Configs) {
	devices := make(Devices)
	configs := make(Configs)

	for i := range schema.DataPoints {
		dp := &schema.DataPoints[i]

		endpoint := dp.EndpointURI()
		if endpoint == "" || len(dp.Properties) == 0 {
			continue
		}

		payload, ok := raw[endpoint]
		if !ok {
			continue
		}

		section, ok := xmltree.Lookup(payload, dp.Path)
		if !ok || section == nil {
			log.Debug().
				Str("data_point", dp.Name).
				Str("endpoint", endpoint).
				Str("path", dp.Path).
				Msg("Data point path not present in payload")

			continue
		}

		for _, it := range items(section, dp.List) {
			key, data, properties := deviceKey(dp, it.index, project(it.value, dp, log))

			merge(devices, configs, key, dp.Name, data, properties)
		}
	}

	return devices, configs
}

// items splits a section into candidates. A sequence yields one candidate
// per element only for list data points; otherwise the section is projected
// once, with positional paths into any sequence.
func items(section any, list bool) []item {
	if seq, ok := section.([]any); ok && list {
		out := make([]item, 0, len(seq))
		for i, v := range seq {
			out = append(out, item{index: i, value: v})
		}

		return out
	}

	return []item{{index: 0, value: section}}
}

// project looks up every declared property in the flattened candidate and
// drops values that are null or fail their allowed-value check.
func project(candidate any, dp *datapoint.DataPoint, log logger.Logger) DeviceData {
	flat := xmltree.Flatten(candidate)
	data := make(DeviceData, len(dp.Properties))

	for _, key := range sortedKeys(dp.Properties) {
		prop := dp.Properties[key]

		value, ok := flat[prop.Path]
		if !ok || value == nil {
			continue
		}

		if !prop.Allows(value) {
			event := log.Debug()
			if prop.ValidationWarning {
				event = log.Warn()
			}

			event.
				Str("data_point", dp.Name).
				Str("property", key).
				Strs("options", prop.Options).
				Interface("value", value).
				Msg("Unsupported property value")

			continue
		}

		data[key] = value
	}

	return data
}

// deviceKey synthesizes the key of a projected item. Flat points are renamed
// in place so they merge into the parent device without collisions.
func deviceKey(dp *datapoint.DataPoint, index int, data DeviceData) (string, DeviceData, map[string]datapoint.Property) {
	if dp.Identifier == nil {
		return dp.Name, data, dp.Properties
	}

	rawID, ok := data[dp.Identifier.Key]
	if !ok {
		rawID = strconv.Itoa(index)
	}

	id := dp.Identifier.Resolve(rawID)

	if !dp.Flat {
		return dp.Name + "." + id, data, dp.Properties
	}

	properties := make(map[string]datapoint.Property, len(dp.Properties))

	for key, prop := range dp.Properties {
		if key == dp.Identifier.Key {
			continue
		}

		properties[Slugify(id+"_"+key)] = prop
	}

	renamed := make(DeviceData, len(data))

	for key, value := range data {
		if key == dp.Identifier.Key {
			continue
		}

		renamed[Slugify(id+"_"+key)] = value
	}

	return dp.Name, renamed, properties
}

func merge(devices Devices, configs Configs, key, deviceType string, data DeviceData, properties map[string]datapoint.Property) {
	if len(data) == 0 {
		return
	}

	existing, ok := devices[key]
	if !ok {
		existing = make(DeviceData, len(data))
		devices[key] = existing
	}

	for field, value := range data {
		existing[field] = value
	}

	cfg, ok := configs[key]
	if !ok {
		cfg = DeviceConfig{
			DeviceType: deviceType,
			Properties: make(map[string]datapoint.Property, len(properties)),
		}
		configs[key] = cfg
	}

	for name, prop := range properties {
		cfg.Properties[name] = prop
	}
}

func sortedKeys(m map[string]datapoint.Property) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// DeviceType returns the device type part of a device key.
func DeviceType(key string) string {
	deviceType, _, _ := strings.Cut(key, ".")

	return deviceType
}

// DeviceID returns the identifier part of a device key, or "" for
// singleton devices.
func DeviceID(key string) string {
	_, id, _ := strings.Cut(key, ".")

	return id
}
