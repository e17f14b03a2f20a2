package discovery

//go:generate mockgen -destination=mock_discovery.go -package=discovery github.com/carverauto/ewspoller/pkg/discovery Notifier

import "context"

// Notifier delivers discovery events to the entity layer.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}
