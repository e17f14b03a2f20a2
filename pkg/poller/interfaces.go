package poller

//go:generate mockgen -destination=mock_poller.go -package=poller github.com/carverauto/ewspoller/pkg/poller Fetcher

import (
	"context"

	"github.com/carverauto/ewspoller/pkg/datapoint"
)

// Fetcher retrieves decoded endpoint payloads from the printer.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string) (any, error)
	Discover(ctx context.Context, endpoint string) ([]datapoint.Resource, error)
	Close() error
}
