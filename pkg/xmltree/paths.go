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

package xmltree

import (
	"strconv"
	"strings"
)

// Separator joins path segments in flattened keys and lookups.
const Separator = "."

// Flatten converts a nested tree into a single-level map whose keys are the
// dotted paths to each scalar leaf. Sequence elements are addressed by their
// position. Empty mappings and sequences produce no keys.
func Flatten(v any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", v)

	return out
}

func flattenInto(out map[string]any, prefix string, v any) {
	switch node := v.(type) {
	case map[string]any:
		for key, child := range node {
			flattenInto(out, join(prefix, key), child)
		}
	case []any:
		for i, child := range node {
			flattenInto(out, join(prefix, strconv.Itoa(i)), child)
		}
	default:
		if prefix != "" {
			out[prefix] = node
		}
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}

	return prefix + Separator + key
}

// Lookup walks a dotted path through mappings and sequences. Numeric segments
// index into sequences. An empty path returns the tree itself.
func Lookup(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}

	current := v

	for _, part := range strings.Split(path, Separator) {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}

			current = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}

			current = node[idx]
		default:
			return nil, false
		}
	}

	return current, true
}
