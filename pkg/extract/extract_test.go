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

package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/ewspoller/pkg/datapoint"
	"github.com/carverauto/ewspoller/pkg/logger"
	"github.com/carverauto/ewspoller/pkg/xmltree"
)

func loadSchema(t *testing.T, doc string) *datapoint.Schema {
	t.Helper()

	schema, err := datapoint.Load(strings.NewReader(doc))
	require.NoError(t, err)

	return schema
}

func TestExtractTotalPages(t *testing.T) {
	schema := loadSchema(t, `{"data_points": [{
		"name": "Printer",
		"endpoint": "/usage",
		"path": "",
		"properties": {"printer_total_pages": {"path": "PrinterSubunit.TotalImpressions.#text"}}
	}]}`)

	raw := map[string]any{
		"/usage": map[string]any{
			"PrinterSubunit": map[string]any{
				"TotalImpressions": map[string]any{"#text": "42"},
			},
		},
	}

	devices, configs := Extract(raw, schema, logger.NewTestLogger())

	assert.Equal(t, Devices{"Printer": {"printer_total_pages": "42"}}, devices)
	require.Contains(t, configs, "Printer")
	assert.Equal(t, "Printer", configs["Printer"].DeviceType)
	assert.Contains(t, configs["Printer"].Properties, "printer_total_pages")
}

func TestExtractDropsDisallowedValues(t *testing.T) {
	schema := loadSchema(t, `{"data_points": [{
		"name": "Cartridges",
		"endpoint": "/consumables",
		"path": "Info",
		"properties": {
			"state": {"path": "State", "options": ["ok", "low"]},
			"level": {"path": "Level"}
		}
	}]}`)

	raw := map[string]any{
		"/consumables": map[string]any{
			"Info": map[string]any{"State": "unknown", "Level": "80"},
		},
	}

	devices, _ := Extract(raw, schema, logger.NewTestLogger())

	require.Contains(t, devices, "Cartridges")
	assert.NotContains(t, devices["Cartridges"], "state")
	assert.Equal(t, "80", devices["Cartridges"]["level"])
}

func TestExtractDropsEmptyDevices(t *testing.T) {
	schema := loadSchema(t, `{"data_points": [{
		"name": "Scanner",
		"endpoint": "/usage",
		"path": "Usage.Scanner",
		"properties": {"scanner_total_images": {"path": "ScanImages"}}
	}, {
		"name": "Fax",
		"endpoint": "/fax",
		"path": "Fax",
		"properties": {"pages": {"path": "Pages"}}
	}]}`)

	raw := map[string]any{
		"/usage": map[string]any{
			"Usage": map[string]any{"Scanner": map[string]any{"ScanImages": nil}},
		},
	}

	devices, configs := Extract(raw, schema, logger.NewTestLogger())

	assert.Empty(t, devices)
	assert.Empty(t, configs)
}

const cartridgeSchema = `{"data_points": [{
	"name": "Cartridges",
	"endpoint": "/consumables",
	"path": "Config.Info",
	"list": true,
	"identifier": {"key": "label_code"},
	"properties": {
		"label_code": {"path": "LabelCode"},
		"state": {"path": "State", "options": ["ok", "low"]}
	}
}]}`

func TestExtractIdentifiedListKeyCount(t *testing.T) {
	schema := loadSchema(t, cartridgeSchema)

	raw := map[string]any{
		"/consumables": map[string]any{
			"Config": map[string]any{
				"Info": []any{
					map[string]any{"LabelCode": "K", "State": "ok"},
					map[string]any{"LabelCode": "CMY", "State": "low"},
					map[string]any{"State": "bogus"},
				},
			},
		},
	}

	devices, configs := Extract(raw, schema, logger.NewTestLogger())

	assert.Len(t, devices, 2)
	assert.Equal(t, DeviceData{"label_code": "K", "state": "ok"}, devices["Cartridges.K"])
	assert.Equal(t, DeviceData{"label_code": "CMY", "state": "low"}, devices["Cartridges.CMY"])
	assert.Equal(t, "Cartridges", configs["Cartridges.CMY"].DeviceType)
}

func TestExtractMissingIdentifierUsesIndex(t *testing.T) {
	schema := loadSchema(t, cartridgeSchema)

	raw := map[string]any{
		"/consumables": map[string]any{
			"Config": map[string]any{
				"Info": []any{
					map[string]any{"LabelCode": "K"},
					map[string]any{"State": "ok"},
				},
			},
		},
	}

	devices, _ := Extract(raw, schema, logger.NewTestLogger())

	assert.Equal(t, DeviceData{"state": "ok"}, devices["Cartridges.1"])
	assert.Contains(t, devices, "Cartridges.K")
}

func TestExtractFlatMergesIntoParent(t *testing.T) {
	schema := loadSchema(t, `{"data_points": [{
		"name": "Printer",
		"endpoint": "/usage",
		"path": "Usage.Printer",
		"properties": {"printer_total_pages": {"path": "TotalImpressions.#text"}}
	}, {
		"name": "Printer",
		"endpoint": "/usage",
		"path": "Usage.Consumables.Consumable",
		"list": true,
		"flat": true,
		"identifier": {"key": "color", "mapping": {"K": "black", "CMY": "color"}},
		"properties": {
			"color": {"path": "MarkerColor"},
			"ink_used": {"path": "Used"}
		}
	}]}`)

	raw := map[string]any{
		"/usage": map[string]any{
			"Usage": map[string]any{
				"Printer": map[string]any{"TotalImpressions": map[string]any{"#text": "42"}},
				"Consumables": map[string]any{
					"Consumable": []any{
						map[string]any{"MarkerColor": "K", "Used": "10.5"},
						map[string]any{"MarkerColor": "CMY", "Used": "3"},
						map[string]any{"MarkerColor": "M"},
					},
				},
			},
		},
	}

	devices, configs := Extract(raw, schema, logger.NewTestLogger())

	require.Len(t, devices, 1)
	assert.Equal(t, DeviceData{
		"printer_total_pages": "42",
		"black_ink_used":      "10.5",
		"color_ink_used":      "3",
	}, devices["Printer"])

	props := configs["Printer"].Properties
	assert.Contains(t, props, "printer_total_pages")
	assert.Contains(t, props, "black_ink_used")
	assert.Contains(t, props, "color_ink_used")
	assert.NotContains(t, props, "color")
}

func TestExtractFlatCollisionLastWins(t *testing.T) {
	schema := loadSchema(t, `{"data_points": [{
		"name": "Printer",
		"endpoint": "/usage",
		"path": "Consumable",
		"list": true,
		"flat": true,
		"identifier": {"key": "color", "mapping": {"Cyan": "color", "Magenta": "color"}},
		"properties": {
			"color": {"path": "MarkerColor"},
			"ink_used": {"path": "Used"}
		}
	}]}`)

	raw := map[string]any{
		"/usage": map[string]any{
			"Consumable": []any{
				map[string]any{"MarkerColor": "Cyan", "Used": "1"},
				map[string]any{"MarkerColor": "Magenta", "Used": "2"},
			},
		},
	}

	devices, _ := Extract(raw, schema, logger.NewTestLogger())

	assert.Equal(t, "2", devices["Printer"]["color_ink_used"])
}

func TestExtractSequenceWithoutListIsOneCandidate(t *testing.T) {
	schema := loadSchema(t, `{"data_points": [{
		"name": "Printer",
		"endpoint": "/alerts",
		"path": "Root.Alert",
		"properties": {"first_alert": {"path": "0.Code"}}
	}]}`)

	raw := map[string]any{
		"/alerts": map[string]any{
			"Root": map[string]any{
				"Alert": []any{
					map[string]any{"Code": "a"},
					map[string]any{"Code": "b"},
				},
			},
		},
	}

	devices, _ := Extract(raw, schema, logger.NewTestLogger())

	assert.Equal(t, Devices{"Printer": {"first_alert": "a"}}, devices)
}

func TestExtractDefaultSchemaFromXML(t *testing.T) {
	schema, err := datapoint.Default()
	require.NoError(t, err)

	status, err := xmltree.Normalize([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<psdyn:ProductStatusDyn xmlns:psdyn="http://www.hp.com/schemas/imaging/con/ledm/productstatusdyn/2007/10/31"
	xmlns:dd="http://www.hp.com/schemas/imaging/con/dictionaries/1.0/">
	<dd:Version><dd:Revision>SVN-IPG-LEDM.216</dd:Revision></dd:Version>
	<psdyn:Status>
		<pscat:StatusCategory xmlns:pscat="http://www.hp.com/schemas/imaging/con/ledm/productstatuscategories/2007/10/31">ready</pscat:StatusCategory>
		<locid:LocString xmlns:locid="http://www.hp.com/schemas/imaging/con/ledm/localizationids/2007/10/31">65568</locid:LocString>
	</psdyn:Status>
</psdyn:ProductStatusDyn>`), xmltree.DefaultOptions())
	require.NoError(t, err)

	adapters, err := xmltree.Normalize([]byte(`<io:Adapters xmlns:io="http://www.hp.com/schemas/imaging/con/ledm/iomgmt/2008/11/30"
	xmlns:dd="http://www.hp.com/schemas/imaging/con/dictionaries/1.0/">
	<io:Adapter>
		<io:HardwareConfig>
			<dd:Name>Wifi0</dd:Name>
			<dd:DeviceConnectivityPortType>WifiEmbedded</dd:DeviceConnectivityPortType>
			<dd:MacAddress>A0B1C2D3E4F5</dd:MacAddress>
		</io:HardwareConfig>
		<io:IsConnected>true</io:IsConnected>
	</io:Adapter>
</io:Adapters>`), xmltree.DefaultOptions())
	require.NoError(t, err)

	raw := map[string]any{
		"/DevMgmt/ProductStatusDyn.xml": status,
		"/IoMgmt/Adapters":              adapters,
	}

	devices, configs := Extract(raw, schema, logger.NewTestLogger())

	assert.Equal(t, DeviceData{"status": "ready", "status_string_id": "65568"}, devices["Main"])
	assert.Equal(t, DeviceData{
		"name":        "Wifi0",
		"port_type":   "WifiEmbedded",
		"mac_address": "A0B1C2D3E4F5",
		"connected":   "true",
	}, devices["Adapters.Wifi0"])
	assert.Equal(t, "Adapters", configs["Adapters.Wifi0"].DeviceType)
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"black_ink_used":    "black_ink_used",
		"Black Ink Used":    "black_ink_used",
		"CMY__level--x":     "cmy_level_x",
		"  trimmed  ":       "trimmed",
		"café_crème":        "cafe_creme",
		"":                  "",
		"1_printed-pages!!": "1_printed_pages",
	}

	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestDeviceKeyParts(t *testing.T) {
	assert.Equal(t, "Cartridges", DeviceType("Cartridges.K"))
	assert.Equal(t, "K", DeviceID("Cartridges.K"))
	assert.Equal(t, "Main", DeviceType("Main"))
	assert.Empty(t, DeviceID("Main"))
	assert.Equal(t, "Adapters", DeviceType("Adapters.eth0.1"))
	assert.Equal(t, "eth0.1", DeviceID("Adapters.eth0.1"))
}
