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
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/carverauto/ewspoller/pkg/extract"
)

// Manufacturer is reported for devices that do not name a brand.
const Manufacturer = "HP"

const (
	deviceTypeMain       = "Main"
	deviceTypePrinter    = "Printer"
	deviceTypeScanner    = "Scanner"
	deviceTypeCartridges = "Cartridges"
	deviceTypeAdapters   = "Adapters"

	printheadType = "printhead"
)

// DeviceInfo identifies the device an entity belongs to.
type DeviceInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Model        string `json:"model,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	ViaDevice    string `json:"via_device,omitempty"`
}

// BuildContext carries what every builder needs to name a device.
type BuildContext struct {
	EntryID string
	Title   string
	Main    DeviceInfo
}

// Builder derives the device info of one extracted device.
type Builder func(bc *BuildContext, key string, data extract.DeviceData) DeviceInfo

//nolint:gochecknoglobals // device type dispatch table
var builders = map[string]Builder{
	deviceTypeMain:       mainDevice,
	deviceTypePrinter:    subUnitDevice,
	deviceTypeScanner:    subUnitDevice,
	deviceTypeCartridges: cartridgeDevice,
	deviceTypeAdapters:   adapterDevice,
}

// BuilderFor returns the builder of a device type. Types without a
// dedicated builder are treated as sub-units of the main device.
func BuilderFor(deviceType string) Builder {
	if b, ok := builders[deviceType]; ok {
		return b
	}

	return subUnitDevice
}

func mainDeviceID(entryID string) string {
	return entryID + ".main"
}

func mainDevice(bc *BuildContext, _ string, data extract.DeviceData) DeviceInfo {
	return DeviceInfo{
		ID:           mainDeviceID(bc.EntryID),
		Name:         bc.Title,
		Model:        str(data["make_and_model"]),
		SerialNumber: str(data["serial_number"]),
		Manufacturer: Manufacturer,
	}
}

func subUnitDevice(bc *BuildContext, key string, _ extract.DeviceData) DeviceInfo {
	deviceType := extract.DeviceType(key)

	return DeviceInfo{
		ID:           bc.EntryID + "." + strings.ToLower(deviceType),
		Name:         bc.Title + " " + deviceType,
		Model:        bc.Main.Model,
		SerialNumber: bc.Main.SerialNumber,
		Manufacturer: bc.Main.Manufacturer,
		ViaDevice:    mainDeviceID(bc.EntryID),
	}
}

func cartridgeDevice(bc *BuildContext, key string, data extract.DeviceData) DeviceInfo {
	labelCode := str(data["label_code"])
	if labelCode == "" {
		labelCode = extract.DeviceID(key)
	}

	cartridgeType := str(data["type"])
	model := str(data["product_number"])

	parts := []string{bc.Title}

	if cartridgeType == printheadType {
		parts = append(parts, capitalize(cartridgeType))
		model = cartridgeType
	} else {
		if color := str(data["color"]); color != "" {
			parts = append(parts, color)
		}

		if cartridgeType != "" {
			parts = append(parts, capitalize(cartridgeType))
		}
	}

	manufacturer := str(data["brand"])
	if manufacturer == "" {
		manufacturer = Manufacturer
	}

	return DeviceInfo{
		ID:           bc.EntryID + ".cartridge." + labelCode,
		Name:         strings.Join(parts, " "),
		Model:        model,
		SerialNumber: str(data["serial_number"]),
		Manufacturer: manufacturer,
		ViaDevice:    bc.EntryID + "." + strings.ToLower(deviceTypePrinter),
	}
}

func adapterDevice(bc *BuildContext, key string, data extract.DeviceData) DeviceInfo {
	name := str(data["name"])
	if name == "" {
		name = extract.DeviceID(key)
	}

	name = strings.ToUpper(name)

	return DeviceInfo{
		ID:           bc.EntryID + ".adapter." + strings.ToLower(name),
		Name:         bc.Title + " Adapter " + name,
		Model:        strings.ToUpper(strings.ReplaceAll(str(data["port_type"]), "Embedded", "")),
		SerialNumber: bc.Main.SerialNumber,
		Manufacturer: bc.Main.Manufacturer,
		ViaDevice:    mainDeviceID(bc.EntryID),
	}
}

func capitalize(s string) string {
	return cases.Title(language.Und).String(strings.ToLower(s))
}

func str(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	default:
		return fmt.Sprint(value)
	}
}
