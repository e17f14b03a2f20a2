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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/ewspoller/pkg/extract"
)

func testDevices() extract.Devices {
	return extract.Devices{
		"Main": {
			"status":         "processing",
			"make_and_model": "HP OfficeJet Pro 9010",
			"serial_number":  "TH12345",
		},
		"Printer": {
			"printer_total_pages": 1200.0,
			"black_ink_used":      12.5,
			"black_ink_used_unit": "ml",
			"color_printed_pages": 300.0,
		},
		"Cartridges.CZ": {
			"label_code":     "CZ",
			"type":           "ink",
			"color":          "Cyan",
			"level":          40.0,
			"product_number": "3YL77AE",
			"brand":          "HP",
		},
		"Cartridges.PH": {
			"label_code": "PH",
			"type":       "printhead",
			"state":      "ok",
		},
		"Adapters.wifi0": {
			"name":      "wifi0",
			"port_type": "EmbeddedWifi",
			"connected": "true",
		},
		"Finisher": {
			"stapler": "ok",
		},
	}
}

func find(t *testing.T, entities []Entity, deviceKey, key string) Entity {
	t.Helper()

	for _, e := range entities {
		if e.DeviceKey == deviceKey && e.Key == key {
			return e
		}
	}

	t.Fatalf("entity %s/%s not found", deviceKey, key)

	return Entity{}
}

func TestBuildMainDevice(t *testing.T) {
	entities := Build("office", "Office Printer", testDevices())

	status := find(t, entities, "Main", "status")
	assert.Equal(t, "Printing", status.State)
	assert.Equal(t, PlatformSensor, status.Platform)
	assert.Equal(t, "Office Printer Status", status.Name)
	assert.Equal(t, "office_main_sensor_status", status.UniqueID)
	assert.Equal(t, DeviceInfo{
		ID:           "office.main",
		Name:         "Office Printer",
		Model:        "HP OfficeJet Pro 9010",
		SerialNumber: "TH12345",
		Manufacturer: Manufacturer,
	}, status.Device)
}

func TestBuildSubUnits(t *testing.T) {
	entities := Build("office", "Office Printer", testDevices())

	total := find(t, entities, "Printer", "printer_total_pages")
	assert.Equal(t, 1200.0, total.State)
	assert.Equal(t, "office.printer", total.Device.ID)
	assert.Equal(t, "Office Printer Printer", total.Device.Name)
	assert.Equal(t, "office.main", total.Device.ViaDevice)
	assert.Equal(t, "TH12345", total.Device.SerialNumber)

	ink := find(t, entities, "Printer", "black_ink_used")
	assert.Equal(t, "Office Printer Printer Black Ink Used", ink.Name)
	assert.Equal(t, 12.5, ink.State)

	pages := find(t, entities, "Printer", "color_printed_pages")
	assert.Equal(t, "Office Printer Printer Color Printed Pages", pages.Name)

	for _, e := range entities {
		assert.NotEqual(t, "black_ink_used_unit", e.Key)
		assert.NotEqual(t, "Finisher", e.DeviceKey)
	}
}

func TestBuildCartridges(t *testing.T) {
	entities := Build("office", "Office Printer", testDevices())

	level := find(t, entities, "Cartridges.CZ", "level")
	assert.Equal(t, 40.0, level.State)
	assert.Equal(t, "%", level.Unit)
	assert.Equal(t, DeviceInfo{
		ID:           "office.cartridge.CZ",
		Name:         "Office Printer Cyan Ink",
		Model:        "3YL77AE",
		Manufacturer: "HP",
		ViaDevice:    "office.printer",
	}, level.Device)

	head := find(t, entities, "Cartridges.PH", "state")
	assert.Equal(t, "Office Printer Printhead", head.Device.Name)
	assert.Equal(t, "printhead", head.Device.Model)
	assert.Equal(t, "office.cartridge.PH", head.Device.ID)
}

func TestBuildAdapters(t *testing.T) {
	entities := Build("office", "Office Printer", testDevices())

	connected := find(t, entities, "Adapters.wifi0", "connected")
	assert.Equal(t, PlatformBinarySensor, connected.Platform)
	assert.Equal(t, true, connected.State)
	assert.Equal(t, DeviceInfo{
		ID:           "office.adapter.wifi0",
		Name:         "Office Printer Adapter WIFI0",
		Model:        "WIFI",
		SerialNumber: "TH12345",
		Manufacturer: Manufacturer,
		ViaDevice:    "office.main",
	}, connected.Device)
}

func TestBuildIsOrdered(t *testing.T) {
	entities := Build("office", "", testDevices())
	require.NotEmpty(t, entities)

	for i := 1; i < len(entities); i++ {
		prev, cur := entities[i-1], entities[i]
		if prev.DeviceKey == cur.DeviceKey {
			assert.Less(t, prev.Key, cur.Key)
		} else {
			assert.Less(t, prev.DeviceKey, cur.DeviceKey)
		}
	}

	// the entry id names the main device when no title is set
	assert.Equal(t, "office", find(t, entities, "Main", "status").Device.Name)
}

func TestPrinterStatusMapping(t *testing.T) {
	desc := DefaultRegistry().ForDeviceType("Main")[0]

	tests := map[string]any{
		"ready":          "On",
		"scanProcessing": "Scanning",
		"copying":        "Copying",
		"processing":     "Printing",
		"cancelJob":      "Cancelling Job",
		"inPowerSave":    "Idle",
		"":               "Off",
		"offline":        "offline",
	}

	for in, want := range tests {
		assert.Equal(t, want, state(desc, in), in)
	}
}

func TestBinaryState(t *testing.T) {
	desc := Description{Platform: PlatformBinarySensor, OnValues: []string{"true"}}

	assert.Equal(t, true, state(desc, "TRUE"))
	assert.Equal(t, false, state(desc, "false"))
	assert.Equal(t, false, state(desc, nil))
}

func TestBuilderForUnknownType(t *testing.T) {
	bc := &BuildContext{EntryID: "e", Title: "T", Main: DeviceInfo{Model: "M"}}

	info := BuilderFor("Finisher")(bc, "Finisher", nil)
	assert.Equal(t, "e.finisher", info.ID)
	assert.Equal(t, "T Finisher", info.Name)
	assert.Equal(t, "M", info.Model)
}

func TestRegistryReturnsCopies(t *testing.T) {
	states := map[string]string{"a": "A"}
	reg := NewRegistry(Description{Key: "k", Platform: PlatformSensor, DeviceType: "Main", States: states})

	states["a"] = "changed"

	descs := reg.Descriptions(PlatformSensor)
	require.Len(t, descs, 1)
	assert.Equal(t, "A", descs[0].States["a"])

	descs[0].States["a"] = "mutated"
	assert.Equal(t, "A", reg.ForDeviceType("Main")[0].States["a"])

	assert.Empty(t, reg.Descriptions(PlatformBinarySensor))
	assert.Equal(t, []Platform{PlatformSensor, PlatformBinarySensor}, DefaultRegistry().Platforms())
}
