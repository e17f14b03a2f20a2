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

// Package datapoint holds the declarative schema that maps raw endpoint
// payloads to named device fields.
package datapoint

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed defaults/data_points.json
var defaults embed.FS

const defaultsFile = "defaults/data_points.json"

var (
	errNameRequired          = errors.New("data point name is required")
	errNoProperties          = errors.New("data point has no properties")
	errPropertyPathRequired  = errors.New("property path is required")
	errIdentifierKeyRequired = errors.New("identifier key is required")
	errIdentifierUnknown     = errors.New("identifier key is not a declared property")
	errFlatWithoutIdentifier = errors.New("flat data points require an identifier")
	errEmptySchema           = errors.New("schema declares no data points")
)

// Schema is the full set of data points plus the endpoint exclusion rules.
// It is loaded once and treated as read-only afterwards.
type Schema struct {
	DataPoints []DataPoint `json:"data_points"`
	Exclusions Exclusions  `json:"exclusions"`
}

// DataPoint maps one endpoint sub-tree to the fields of a device type.
type DataPoint struct {
	Name       string              `json:"name"`
	Endpoint   *string             `json:"endpoint"`
	Path       string              `json:"path"`
	List       bool                `json:"list,omitempty"`
	Flat       bool                `json:"flat,omitempty"`
	Identifier *Identifier         `json:"identifier,omitempty"`
	Properties map[string]Property `json:"properties"`
}

// Property describes where an output field comes from in the flattened object.
type Property struct {
	Path              string   `json:"path"`
	Options           []string `json:"options,omitempty"`
	ValidationWarning bool     `json:"validationWarning,omitempty"`
}

// Identifier selects the property whose value disambiguates list items.
type Identifier struct {
	Key     string            `json:"key"`
	Mapping map[string]string `json:"mapping,omitempty"`
}

// Load decodes and validates a schema document.
func Load(r io.Reader) (*Schema, error) {
	var schema Schema

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&schema); err != nil {
		return nil, fmt.Errorf("failed to decode data point schema: %w", err)
	}

	if err := schema.Validate(); err != nil {
		return nil, err
	}

	return &schema, nil
}

// LoadFile reads a schema from disk.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data point schema '%s': %w", path, err)
	}

	return Load(bytes.NewReader(data))
}

// Default returns the embedded schema for HP LEDM printers.
func Default() (*Schema, error) {
	data, err := defaults.ReadFile(defaultsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded data point schema: %w", err)
	}

	return Load(bytes.NewReader(data))
}

// Validate checks the structural rules of every data point.
func (s *Schema) Validate() error {
	if len(s.DataPoints) == 0 {
		return errEmptySchema
	}

	for i := range s.DataPoints {
		if err := s.DataPoints[i].Validate(); err != nil {
			return fmt.Errorf("data point %d (%s): %w", i, s.DataPoints[i].Name, err)
		}
	}

	return nil
}

// Endpoints returns the distinct endpoints referenced by the schema in
// declaration order.
func (s *Schema) Endpoints() []string {
	seen := make(map[string]struct{}, len(s.DataPoints))
	endpoints := make([]string, 0, len(s.DataPoints))

	for i := range s.DataPoints {
		endpoint := s.DataPoints[i].EndpointURI()
		if endpoint == "" {
			continue
		}

		if _, ok := seen[endpoint]; ok {
			continue
		}

		seen[endpoint] = struct{}{}
		endpoints = append(endpoints, endpoint)
	}

	return endpoints
}

// EndpointURI returns the endpoint or "" for derived data points.
func (d *DataPoint) EndpointURI() string {
	if d.Endpoint == nil {
		return ""
	}

	return *d.Endpoint
}

// Validate checks a single data point.
func (d *DataPoint) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errNameRequired
	}

	if d.EndpointURI() != "" && len(d.Properties) == 0 {
		return errNoProperties
	}

	for key, prop := range d.Properties {
		if prop.Path == "" {
			return fmt.Errorf("%w: %s", errPropertyPathRequired, key)
		}
	}

	if d.Flat && d.Identifier == nil {
		return errFlatWithoutIdentifier
	}

	if d.Identifier != nil {
		if d.Identifier.Key == "" {
			return errIdentifierKeyRequired
		}

		if _, ok := d.Properties[d.Identifier.Key]; !ok {
			return fmt.Errorf("%w: %s", errIdentifierUnknown, d.Identifier.Key)
		}
	}

	return nil
}

// Allows reports whether value passes the property's allowed-value check.
// Comparison is case-insensitive; a property without options allows anything.
func (p Property) Allows(value any) bool {
	if len(p.Options) == 0 {
		return true
	}

	candidate := strings.ToLower(fmt.Sprint(value))

	for _, option := range p.Options {
		if strings.ToLower(option) == candidate {
			return true
		}
	}

	return false
}

// Resolve maps a raw identifier value through the mapping table. Values
// without an entry are returned unchanged.
func (i *Identifier) Resolve(raw any) string {
	key := fmt.Sprint(raw)

	if mapped, ok := i.Mapping[key]; ok {
		return mapped
	}

	return key
}
