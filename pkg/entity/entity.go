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

package entity

import (
	"sort"
	"strings"

	"github.com/carverauto/ewspoller/pkg/extract"
)

// Entity is one materialized sensor of a device.
type Entity struct {
	UniqueID    string     `json:"unique_id"`
	Name        string     `json:"name"`
	Platform    Platform   `json:"platform"`
	DeviceKey   string     `json:"device_key"`
	Key         string     `json:"key"`
	State       any        `json:"state"`
	Icon        string     `json:"icon,omitempty"`
	Unit        string     `json:"unit,omitempty"`
	DeviceClass string     `json:"device_class,omitempty"`
	StateClass  string     `json:"state_class,omitempty"`
	Device      DeviceInfo `json:"device"`
}

// Build materializes the entities of every device that has data for a
// description. Entities are ordered by device key, then by data key.
func (r *Registry) Build(entryID, title string, devices extract.Devices) []Entity {
	if title == "" {
		title = entryID
	}

	bc := &BuildContext{EntryID: entryID, Title: title}
	bc.Main = mainDevice(bc, deviceTypeMain, devices[deviceTypeMain])

	keys := make([]string, 0, len(devices))
	for key := range devices {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	var entities []Entity

	for _, key := range keys {
		data := devices[key]
		if len(data) == 0 {
			continue
		}

		deviceType := extract.DeviceType(key)
		descs := r.ForDeviceType(deviceType)

		if len(descs) == 0 {
			continue
		}

		info := BuilderFor(deviceType)(bc, key, data)

		for _, desc := range descs {
			for _, field := range matchingFields(desc, data) {
				entities = append(entities, newEntity(entryID, key, field, desc, data[field], info))
			}
		}
	}

	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].DeviceKey != entities[j].DeviceKey {
			return entities[i].DeviceKey < entities[j].DeviceKey
		}

		return entities[i].Key < entities[j].Key
	})

	return entities
}

// Build materializes entities with the default registry.
func Build(entryID, title string, devices extract.Devices) []Entity {
	return DefaultRegistry().Build(entryID, title, devices)
}

func matchingFields(desc Description, data extract.DeviceData) []string {
	if !desc.Suffix {
		if _, ok := data[desc.Key]; ok {
			return []string{desc.Key}
		}

		return nil
	}

	var fields []string

	for field := range data {
		if strings.HasSuffix(field, "_"+desc.Key) {
			fields = append(fields, field)
		}
	}

	sort.Strings(fields)

	return fields
}

func newEntity(entryID, deviceKey, field string, desc Description, value any, info DeviceInfo) Entity {
	name := desc.Name

	if desc.Suffix {
		prefix := strings.TrimSuffix(field, "_"+desc.Key)
		name = capitalize(strings.ReplaceAll(prefix, "_", " ")) + " " + desc.Name
	}

	return Entity{
		UniqueID:    extract.Slugify(strings.Join([]string{entryID, deviceKey, string(desc.Platform), field}, "_")),
		Name:        info.Name + " " + name,
		Platform:    desc.Platform,
		DeviceKey:   deviceKey,
		Key:         field,
		State:       state(desc, value),
		Icon:        desc.Icon,
		Unit:        desc.Unit,
		DeviceClass: desc.DeviceClass,
		StateClass:  desc.StateClass,
		Device:      info,
	}
}

func state(desc Description, value any) any {
	switch desc.Platform {
	case PlatformBinarySensor:
		text := str(value)

		for _, on := range desc.OnValues {
			if strings.EqualFold(text, on) {
				return true
			}
		}

		return false
	default:
		if desc.States == nil {
			return value
		}

		if mapped, ok := desc.States[str(value)]; ok {
			return mapped
		}

		return value
	}
}
