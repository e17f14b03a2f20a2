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

// Package xmltree converts the namespaced XML documents served by a printer's
// embedded web server into plain nested maps and provides dotted-path helpers
// over the resulting trees.
package xmltree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

const (
	// AttrPrefix marks keys that were XML attributes.
	AttrPrefix = "@"
	// TextKey holds the character data of an element that also has attributes or children.
	TextKey = "#text"
)

var (
	// ErrParse is returned for malformed documents.
	ErrParse = errors.New("failed to parse XML")

	errEmptyDocument = errors.New("document has no root element")
)

// Options controls the array-vs-object resolution of the conversion.
type Options struct {
	// ForceList names elements that always become a sequence, even when a
	// single instance is present.
	ForceList []string `json:"force_list"`
	// ForceMapping names text-only elements that are kept as a mapping with a
	// #text key instead of collapsing to their text.
	ForceMapping []string `json:"force_mapping"`
	// IgnoredKeys are removed from the root element after conversion.
	IgnoredKeys []string `json:"ignored_keys"`
}

// DefaultOptions returns the options used for HP LEDM documents.
func DefaultOptions() Options {
	return Options{
		ForceList:    []string{"Status", "Alert", "Consumable", "ConsumableInfo", "Adapter", "UsageByMedia"},
		ForceMapping: []string{"TotalImpressions", "MonochromeImpressions", "ColorImpressions"},
		IgnoredKeys:  []string{"@schemaLocation", "Version"},
	}
}

type element struct {
	name     string
	attrs    []xml.Attr
	children []*element
	text     strings.Builder
}

type converter struct {
	forceList    map[string]struct{}
	forceMapping map[string]struct{}
}

// Normalize parses an XML document and returns it as a nested map keyed by the
// root element's local name.
func Normalize(data []byte, opts Options) (map[string]any, error) {
	root, err := parse(data)
	if err != nil {
		return nil, err
	}

	c := &converter{
		forceList:    toSet(opts.ForceList),
		forceMapping: toSet(opts.ForceMapping),
	}

	value := c.value(root)

	if fields, ok := value.(map[string]any); ok {
		for _, key := range opts.IgnoredKeys {
			delete(fields, key)
		}
	}

	return map[string]any{root.name: value}, nil
}

// StripNamespace removes a "{uri}" or "prefix:" qualifier from an element or
// attribute name.
func StripNamespace(name string) string {
	if strings.HasPrefix(name, "{") {
		if idx := strings.Index(name, "}"); idx >= 0 {
			name = name[idx+1:]
		}
	}

	if idx := strings.LastIndex(name, ":"); idx >= 0 {
		name = name[idx+1:]
	}

	return name
}

func parse(data []byte) (*element, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	var (
		root  *element
		stack []*element
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: StripNamespace(t.Name.Local)}

			for _, attr := range t.Attr {
				if isNamespaceDecl(attr.Name) {
					continue
				}

				el.attrs = append(el.attrs, xml.Attr{
					Name:  xml.Name{Local: StripNamespace(attr.Name.Local)},
					Value: attr.Value,
				})
			}

			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			} else {
				if root != nil {
					return nil, fmt.Errorf("%w: multiple root elements", ErrParse)
				}

				root = el
			}

			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, errEmptyDocument)
	}

	return root, nil
}

func isNamespaceDecl(name xml.Name) bool {
	return name.Space == "xmlns" || (name.Space == "" && name.Local == "xmlns")
}

func (c *converter) value(el *element) any {
	text := strings.TrimSpace(el.text.String())

	if len(el.attrs) == 0 && len(el.children) == 0 {
		if _, ok := c.forceMapping[el.name]; ok {
			fields := make(map[string]any, 1)
			if text != "" {
				fields[TextKey] = text
			}

			return fields
		}

		if text == "" {
			return nil
		}

		return text
	}

	fields := make(map[string]any, len(el.attrs)+len(el.children)+1)

	for _, attr := range el.attrs {
		fields[AttrPrefix+attr.Name.Local] = attr.Value
	}

	for _, child := range el.children {
		c.addChild(fields, child.name, c.value(child))
	}

	if text != "" {
		fields[TextKey] = text
	}

	return fields
}

// addChild stores a converted child, turning repeated siblings into a sequence.
// Converted element values are never []any, so an existing slice always comes
// from sibling grouping.
func (c *converter) addChild(fields map[string]any, name string, value any) {
	existing, ok := fields[name]
	if !ok {
		if _, force := c.forceList[name]; force {
			fields[name] = []any{value}
		} else {
			fields[name] = value
		}

		return
	}

	if seq, isSeq := existing.([]any); isSeq {
		fields[name] = append(seq, value)
		return
	}

	fields[name] = []any{existing, value}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}

	return set
}
