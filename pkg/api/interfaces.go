package api

//go:generate mockgen -destination=mock_api.go -package=api github.com/carverauto/ewspoller/pkg/api PollerService

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/ewspoller/pkg/extract"
	"github.com/carverauto/ewspoller/pkg/poller"
)

// PollerService is the part of a poller the API exposes.
type PollerService interface {
	Config() *poller.Config
	SessionID() uuid.UUID
	Online() bool
	Endpoints() []string
	Freshness() map[string]int64
	LastCycle() *poller.CycleResult
	Devices() extract.Devices
	Device(key string) (extract.DeviceData, bool)
	DeviceConfigs() extract.Configs
	RawData() map[string]any
	DebugData() *poller.DebugData
	Refresh(ctx context.Context) (*poller.CycleResult, error)
	SetUpdateInterval(ctx context.Context, d time.Duration) error
}
