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

package datapoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
)

var errInvalidMethods = errors.New("methods must be a string or a list of strings")

// Exclusions filters the resources advertised by the device's discovery
// document down to the ones worth polling.
type Exclusions struct {
	Types           []string `json:"types,omitempty"`
	URIPatterns     []string `json:"uri_patterns,omitempty"`
	RequiredMethods []string `json:"required_methods,omitempty"`
}

// Resource is one entry of the discovery document.
type Resource struct {
	Type    string  `json:"type"`
	URI     string  `json:"uri"`
	Methods Methods `json:"methods"`
}

// Methods accepts either ["GET","PUT"] or "GET, PUT".
type Methods []string

func (m *Methods) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*m = nil
		return nil
	}

	var list []string
	if err := json.Unmarshal(trimmed, &list); err == nil {
		*m = list
		return nil
	}

	var joined string
	if err := json.Unmarshal(trimmed, &joined); err != nil {
		return fmt.Errorf("%w: %s", errInvalidMethods, string(trimmed))
	}

	parts := strings.FieldsFunc(joined, func(r rune) bool {
		return r == ',' || r == ' ' || r == '|'
	})

	*m = parts

	return nil
}

// Has reports whether the method is listed, ignoring case.
func (m Methods) Has(method string) bool {
	for _, candidate := range m {
		if strings.EqualFold(candidate, method) {
			return true
		}
	}

	return false
}

// Excluded reports whether a discovered resource should not be polled.
// Parameterised URIs are always excluded. Resources that declare no methods
// are kept.
func (e *Exclusions) Excluded(r Resource) bool {
	if strings.Contains(r.URI, "{") {
		return true
	}

	for _, t := range e.Types {
		if strings.EqualFold(t, r.Type) {
			return true
		}
	}

	for _, pattern := range e.URIPatterns {
		if ok, err := path.Match(pattern, r.URI); err == nil && ok {
			return true
		}
	}

	if len(r.Methods) == 0 {
		return false
	}

	for _, method := range e.RequiredMethods {
		if !r.Methods.Has(method) {
			return true
		}
	}

	return false
}

// Filter returns the URIs of the resources that are not excluded, in order.
func (e *Exclusions) Filter(resources []Resource) []string {
	uris := make([]string, 0, len(resources))

	for _, r := range resources {
		if r.URI == "" || e.Excluded(r) {
			continue
		}

		uris = append(uris, r.URI)
	}

	return uris
}
