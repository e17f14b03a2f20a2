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

// Package settings persists the per-entry user settings of a poller.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/carverauto/ewspoller/pkg/kv"
	"github.com/carverauto/ewspoller/pkg/logger"
)

const (
	// DefaultEntryID is the entry used before a real entry id is known.
	DefaultEntryID = "config"
	// KeyUpdateInterval holds the refresh interval in seconds.
	KeyUpdateInterval = "update_interval"

	defaultUpdateInterval = 60
)

var (
	errInvalidInterval = errors.New("update interval must be at least one second")
	errNotLoaded       = errors.New("settings not loaded")
)

// sensitiveKeys are never written to the store.
var sensitiveKeys = []string{"password", "username"}

// Manager loads and saves the settings of one entry.
type Manager struct {
	mu      sync.RWMutex
	store   kv.KVStore
	entryID string
	logger  logger.Logger
	data    map[string]any
	loaded  bool
}

// NewManager creates a manager for entryID. An empty id uses DefaultEntryID.
func NewManager(store kv.KVStore, entryID string, log logger.Logger) *Manager {
	if entryID == "" {
		entryID = DefaultEntryID
	}

	return &Manager{
		store:   store,
		entryID: entryID,
		logger:  log,
		data:    defaults(),
	}
}

func defaults() map[string]any {
	return map[string]any{
		KeyUpdateInterval: float64(defaultUpdateInterval),
	}
}

// EntryID returns the entry the settings belong to.
func (m *Manager) EntryID() string {
	return m.entryID
}

// Load reads the entry, migrates the legacy default entry when needed,
// fills in defaults and saves the result if anything changed.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, found, err := m.read(ctx, m.entryID)
	if err != nil {
		return err
	}

	migrated := false

	if !found && m.entryID != DefaultEntryID {
		legacy, legacyFound, err := m.read(ctx, DefaultEntryID)
		if err != nil {
			return err
		}

		if legacyFound {
			m.logger.Info().
				Str("entry_id", m.entryID).
				Msg("Migrating settings from the default entry")

			stored = legacy
			migrated = true
		}
	}

	data := defaults()
	for key, value := range stored {
		data[key] = value
	}

	scrub(data)

	m.data = data
	m.loaded = true

	if migrated || !reflect.DeepEqual(stored, data) {
		if err := m.save(ctx, m.data); err != nil {
			return err
		}
	}

	if migrated {
		if err := m.store.Delete(ctx, DefaultEntryID); err != nil {
			return fmt.Errorf("failed to remove default settings entry: %w", err)
		}
	}

	return nil
}

// UpdateInterval returns the user refresh interval.
func (m *Manager) UpdateInterval() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seconds, ok := m.data[KeyUpdateInterval].(float64)
	if !ok || seconds < 1 {
		return defaultUpdateInterval * time.Second
	}

	return time.Duration(seconds) * time.Second
}

// SetUpdateInterval stores a new refresh interval, truncated to whole
// seconds. Nothing is written when the value is unchanged.
func (m *Manager) SetUpdateInterval(ctx context.Context, d time.Duration) error {
	if d < time.Second {
		return errInvalidInterval
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		return errNotLoaded
	}

	seconds := float64(d / time.Second)

	if current, ok := m.data[KeyUpdateInterval].(float64); ok && current == seconds {
		return nil
	}

	m.logger.Debug().
		Float64("seconds", seconds).
		Msg("Set update interval")

	next := make(map[string]any, len(m.data))
	for key, value := range m.data {
		next[key] = value
	}

	next[KeyUpdateInterval] = seconds

	if err := m.save(ctx, next); err != nil {
		return err
	}

	m.data = next

	return nil
}

// Data returns a copy of the settings for diagnostics.
func (m *Manager) Data() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]any, len(m.data))
	for key, value := range m.data {
		out[key] = value
	}

	return out
}

// Remove deletes the entry and any leftover default entry.
func (m *Manager) Remove(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error

	for _, id := range []string{DefaultEntryID, m.entryID} {
		if err := m.store.Delete(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}

	m.data = defaults()
	m.loaded = false

	return errors.Join(errs...)
}

func (m *Manager) read(ctx context.Context, id string) (map[string]any, bool, error) {
	raw, found, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read settings for %s: %w", id, err)
	}

	if !found {
		return nil, false, nil
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, false, fmt.Errorf("failed to decode settings for %s: %w", id, err)
	}

	return data, true, nil
}

func (m *Manager) save(ctx context.Context, doc map[string]any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if err := m.store.Put(ctx, m.entryID, raw); err != nil {
		return fmt.Errorf("failed to save settings for %s: %w", m.entryID, err)
	}

	return nil
}

func scrub(data map[string]any) {
	for _, key := range sensitiveKeys {
		delete(data, key)
	}
}
