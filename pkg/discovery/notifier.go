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

package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/carverauto/ewspoller/pkg/logger"
)

var (
	// ErrNotifierFull is returned when a channel notifier has no free buffer slot.
	ErrNotifierFull = errors.New("discovery notifier buffer is full")
	// ErrNotifierClosed is returned after a channel notifier has been closed.
	ErrNotifierClosed = errors.New("discovery notifier is closed")
)

// ChannelNotifier hands events to an in-process consumer through a
// buffered channel. It never blocks the update cycle.
type ChannelNotifier struct {
	mu     sync.RWMutex
	events chan Event
	closed bool
}

// NewChannelNotifier creates a channel notifier with the given buffer size.
func NewChannelNotifier(size int) *ChannelNotifier {
	if size <= 0 {
		size = 1
	}

	return &ChannelNotifier{events: make(chan Event, size)}
}

// Events returns the receive side of the channel.
func (c *ChannelNotifier) Events() <-chan Event {
	return c.events
}

func (c *ChannelNotifier) Notify(_ context.Context, event Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrNotifierClosed
	}

	select {
	case c.events <- event:
		return nil
	default:
		return fmt.Errorf("%w: dropping %s", ErrNotifierFull, event.DeviceKey)
	}
}

// Close closes the channel. Further Notify calls fail.
func (c *ChannelNotifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.events)
}

// LogNotifier records each discovery at info level.
type LogNotifier struct {
	logger logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

func (l *LogNotifier) Notify(_ context.Context, event Event) error {
	l.logger.Info().
		Str("entry_id", event.EntryID).
		Str("device_key", event.DeviceKey).
		Str("device_type", event.DeviceType).
		Int("fields", len(event.Data)).
		Msg("Device discovered")

	return nil
}

// MultiNotifier fans an event out to several notifiers. A failing notifier
// does not prevent delivery to the others.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, event Event) error {
	var errs []error

	for _, n := range m {
		if n == nil {
			continue
		}

		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
