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

// Package entity turns extracted devices into sensor entities described by
// a static registry of descriptions.
package entity

import "slices"

// Platform tags the kind of entity a description produces.
type Platform string

const (
	PlatformSensor       Platform = "sensor"
	PlatformBinarySensor Platform = "binary_sensor"
)

const (
	inkIcon     = "mdi:cup-water"
	pagesIcon   = "mdi:book-open-page-variant"
	scannerIcon = "mdi:scanner"
	printerIcon = "mdi:printer"

	stateClassTotal = "total_increasing"
)

// PrinterStatus maps the StatusCategory of the status document to a
// display state. Unknown categories are passed through.
//
//nolint:gochecknoglobals // lookup table
var PrinterStatus = map[string]string{
	"ready":          "On",
	"scanProcessing": "Scanning",
	"copying":        "Copying",
	"processing":     "Printing",
	"cancelJob":      "Cancelling Job",
	"inPowerSave":    "Idle",
	"":               "Off",
}

// Description is the data-only definition of one entity kind.
type Description struct {
	Key         string            `json:"key"`
	Name        string            `json:"name"`
	Platform    Platform          `json:"platform"`
	DeviceType  string            `json:"device_type"`
	Icon        string            `json:"icon,omitempty"`
	Unit        string            `json:"unit,omitempty"`
	DeviceClass string            `json:"device_class,omitempty"`
	StateClass  string            `json:"state_class,omitempty"`
	States      map[string]string `json:"states,omitempty"`
	// OnValues lists the values that turn a binary sensor on.
	OnValues []string `json:"on_values,omitempty"`
	// Suffix matches every data key ending in "_<Key>", which is how flat
	// data points name their fields.
	Suffix bool `json:"suffix,omitempty"`
}

// Registry is an immutable set of descriptions.
type Registry struct {
	descriptions []Description
}

// NewRegistry creates a registry holding copies of descs.
func NewRegistry(descs ...Description) *Registry {
	out := make([]Description, len(descs))
	for i, d := range descs {
		out[i] = d.clone()
	}

	return &Registry{descriptions: out}
}

// Descriptions returns every description, optionally limited to platform.
func (r *Registry) Descriptions(platform Platform) []Description {
	var out []Description

	for _, d := range r.descriptions {
		if platform != "" && d.Platform != platform {
			continue
		}

		out = append(out, d.clone())
	}

	return out
}

// ForDeviceType returns the descriptions that apply to a device type.
func (r *Registry) ForDeviceType(deviceType string) []Description {
	var out []Description

	for _, d := range r.descriptions {
		if d.DeviceType == deviceType {
			out = append(out, d.clone())
		}
	}

	return out
}

// Platforms lists the platforms in use, in registration order.
func (r *Registry) Platforms() []Platform {
	var out []Platform

	for _, d := range r.descriptions {
		if !slices.Contains(out, d.Platform) {
			out = append(out, d.Platform)
		}
	}

	return out
}

func (d Description) clone() Description {
	if d.States != nil {
		states := make(map[string]string, len(d.States))
		for k, v := range d.States {
			states[k] = v
		}

		d.States = states
	}

	d.OnValues = slices.Clone(d.OnValues)

	return d
}

// DefaultRegistry returns the descriptions matching the bundled data points.
func DefaultRegistry() *Registry {
	return NewRegistry(defaultDescriptions()...)
}

func pageCounter(deviceType, key, name, icon string) Description {
	return Description{
		Key:        key,
		Name:       name,
		Platform:   PlatformSensor,
		DeviceType: deviceType,
		Icon:       icon,
		Unit:       "pages",
		StateClass: stateClassTotal,
	}
}

func defaultDescriptions() []Description {
	return []Description{
		{
			Key:        "status",
			Name:       "Status",
			Platform:   PlatformSensor,
			DeviceType: "Main",
			Icon:       printerIcon,
			States:     PrinterStatus,
		},
		{
			Key:        "firmware_revision",
			Name:       "Firmware",
			Platform:   PlatformSensor,
			DeviceType: "Main",
		},
		pageCounter("Printer", "printer_total_pages", "Total Pages", pagesIcon),
		pageCounter("Printer", "printer_color_pages", "Color Pages", pagesIcon),
		pageCounter("Printer", "printer_monochrome_pages", "Monochrome Pages", pagesIcon),
		pageCounter("Printer", "printer_duplex_sheets", "Duplex Sheets", pagesIcon),
		pageCounter("Printer", "printer_jams", "Jams", pagesIcon),
		pageCounter("Printer", "printer_mispicks", "Mispicks", pagesIcon),
		pageCounter("Printer", "printer_cancelled_jobs", "Cancelled Jobs", pagesIcon),
		{
			Key:        "ink_used",
			Name:       "Ink Used",
			Platform:   PlatformSensor,
			DeviceType: "Printer",
			Icon:       inkIcon,
			StateClass: stateClassTotal,
			Suffix:     true,
		},
		{
			Key:        "printed_pages",
			Name:       "Printed Pages",
			Platform:   PlatformSensor,
			DeviceType: "Printer",
			Icon:       pagesIcon,
			Unit:       "pages",
			StateClass: stateClassTotal,
			Suffix:     true,
		},
		pageCounter("Scanner", "scanner_total_images", "Total Images", scannerIcon),
		pageCounter("Scanner", "scanner_adf_images", "ADF Images", scannerIcon),
		pageCounter("Scanner", "scanner_flatbed_images", "Flatbed Images", scannerIcon),
		pageCounter("Scanner", "scanner_duplex_sheets", "Duplex Sheets", scannerIcon),
		pageCounter("Scanner", "scanner_jams", "Jams", scannerIcon),
		pageCounter("Scanner", "scanner_mispicks", "Mispicks", scannerIcon),
		{
			Key:        "level",
			Name:       "Level",
			Platform:   PlatformSensor,
			DeviceType: "Cartridges",
			Icon:       inkIcon,
			Unit:       "%",
			StateClass: "measurement",
		},
		{
			Key:        "state",
			Name:       "State",
			Platform:   PlatformSensor,
			DeviceType: "Cartridges",
			Icon:       inkIcon,
		},
		{
			Key:         "expiration_date",
			Name:        "Expiration Date",
			Platform:    PlatformSensor,
			DeviceType:  "Cartridges",
			DeviceClass: "date",
		},
		{
			Key:        "mac_address",
			Name:       "MAC Address",
			Platform:   PlatformSensor,
			DeviceType: "Adapters",
		},
		{
			Key:         "connected",
			Name:        "Status",
			Platform:    PlatformBinarySensor,
			DeviceType:  "Adapters",
			DeviceClass: "connectivity",
			OnValues:    []string{"true"},
		},
	}
}
