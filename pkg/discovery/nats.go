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
	"fmt"
	"strings"

	"github.com/carverauto/ewspoller/pkg/natsutil"
)

const discoveredEventType = "com.carverauto.ewspoller.device.discovered"

// NATSNotifier publishes discovery events as CloudEvents on JetStream.
type NATSNotifier struct {
	publisher *natsutil.EventPublisher
	prefix    string
}

// NewNATSNotifier publishes to "<prefix>.<entry_id>.discovered".
func NewNATSNotifier(publisher *natsutil.EventPublisher, subjectPrefix string) *NATSNotifier {
	return &NATSNotifier{publisher: publisher, prefix: normalizePrefix(subjectPrefix)}
}

func normalizePrefix(subjectPrefix string) string {
	prefix := strings.TrimSuffix(strings.TrimSpace(subjectPrefix), ".")
	if prefix == "" {
		prefix = natsutil.DefaultSubjectPrefix
	}

	return prefix
}

// DiscoveredSubject returns the subject discovery events of entryID are
// published on for a subject prefix.
func DiscoveredSubject(subjectPrefix, entryID string) string {
	return fmt.Sprintf("%s.%s.discovered", normalizePrefix(subjectPrefix), natsutil.SubjectToken(entryID))
}

// Subject returns the subject events for entryID are published on.
func (n *NATSNotifier) Subject(entryID string) string {
	return DiscoveredSubject(n.prefix, entryID)
}

func (n *NATSNotifier) Notify(ctx context.Context, event Event) error {
	if err := n.publisher.Publish(ctx, natsutil.Message{
		ID:      event.ID.String(),
		Subject: n.Subject(event.EntryID),
		Type:    discoveredEventType,
		Time:    event.DiscoveredAt,
		Data:    event,
	}); err != nil {
		return fmt.Errorf("failed to publish discovery of %s: %w", event.DeviceKey, err)
	}

	return nil
}
