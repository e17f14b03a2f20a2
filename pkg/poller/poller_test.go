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

package poller

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/ewspoller/pkg/datapoint"
	"github.com/carverauto/ewspoller/pkg/discovery"
	"github.com/carverauto/ewspoller/pkg/kv"
	"github.com/carverauto/ewspoller/pkg/logger"
	"github.com/carverauto/ewspoller/pkg/metrics"
	"github.com/carverauto/ewspoller/pkg/models"
	"github.com/carverauto/ewspoller/pkg/scheduler"
	"github.com/carverauto/ewspoller/pkg/settings"
	"github.com/carverauto/ewspoller/pkg/transport"
)

const (
	statusURI = "/DevMgmt/ProductStatusDyn.xml"
	usageURI  = "/DevMgmt/ProductUsageDyn.xml"
)

const testSchema = `{
  "data_points": [
    {
      "name": "Main",
      "endpoint": "/DevMgmt/ProductStatusDyn.xml",
      "path": "ProductStatusDyn",
      "properties": {"status": {"path": "Status.0.StatusCategory"}}
    },
    {
      "name": "Printer",
      "endpoint": "/DevMgmt/ProductUsageDyn.xml",
      "path": "ProductUsageDyn.PrinterSubunit",
      "properties": {"printer_total_pages": {"path": "TotalImpressions.#text"}}
    }
  ],
  "exclusions": {
    "types": ["ledm:hpLedmCapabilities"],
    "uri_patterns": ["/*/*Cap.xml"],
    "required_methods": ["GET"]
  }
}`

var errRefused = errors.New("connection refused")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type fixture struct {
	ctrl    *gomock.Controller
	fetcher *MockFetcher
	clock   *testClock
	mockClk *scheduler.MockClock
	poller  *Poller
}

func statusPayload(category string) map[string]any {
	return map[string]any{
		"ProductStatusDyn": map[string]any{
			"Status": []any{map[string]any{"StatusCategory": category}},
		},
	}
}

func usagePayload(total string) map[string]any {
	return map[string]any{
		"ProductUsageDyn": map[string]any{
			"PrinterSubunit": map[string]any{
				"TotalImpressions": map[string]any{"#text": total},
			},
		},
	}
}

func connErr(endpoint string) error {
	return &transport.RequestError{Endpoint: endpoint, Kind: transport.ErrConnectivity, Err: errRefused}
}

func newFixture(t *testing.T, cfg *Config, opts ...Option) *fixture {
	t.Helper()

	schema, err := datapoint.Load(strings.NewReader(testSchema))
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	clock := &testClock{now: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}

	mockClk := scheduler.NewMockClock(ctrl)
	mockClk.EXPECT().Now().DoAndReturn(clock.Now).AnyTimes()

	fetcher := NewMockFetcher(ctrl)

	if cfg == nil {
		cfg = &Config{Host: "192.168.1.20"}
	}

	p, err := New(cfg, schema, fetcher, mockClk, logger.NewTestLogger(), opts...)
	require.NoError(t, err)

	return &fixture{ctrl: ctrl, fetcher: fetcher, clock: clock, mockClk: mockClk, poller: p}
}

func (f *fixture) initialize(t *testing.T) {
	t.Helper()

	f.fetcher.EXPECT().Fetch(gomock.Any(), statusURI).Return(statusPayload("ready"), nil)
	require.NoError(t, f.poller.Initialize(context.Background()))
}

func TestNewRequiresDependencies(t *testing.T) {
	schema, err := datapoint.Default()
	require.NoError(t, err)

	_, err = New(nil, schema, NewMockFetcher(gomock.NewController(t)), nil, nil)
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = New(&Config{Host: "printer"}, nil, NewMockFetcher(gomock.NewController(t)), nil, nil)
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = New(&Config{Host: "printer"}, schema, nil, nil, nil)
	require.ErrorIs(t, err, errFetcherRequired)
}

func TestInitializeMissingHost(t *testing.T) {
	f := newFixture(t, &Config{})

	err := f.poller.Initialize(context.Background())
	require.ErrorIs(t, err, ErrConfiguration)
	require.ErrorIs(t, err, errHostRequired)
}

func TestInitializeStatusUnavailable(t *testing.T) {
	f := newFixture(t, nil)

	f.fetcher.EXPECT().Fetch(gomock.Any(), statusURI).Return(nil, connErr(statusURI))

	err := f.poller.Initialize(context.Background())
	require.ErrorIs(t, err, ErrStatusUnavailable)
	require.ErrorIs(t, err, transport.ErrConnectivity)
	assert.False(t, f.poller.Online())

	_, err = f.poller.Update(context.Background())
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestUpdateFetchesDueEndpointsAndAnnouncesDevices(t *testing.T) {
	notifier := discovery.NewChannelNotifier(8)
	f := newFixture(t, nil, WithNotifier(notifier), WithMetrics(metrics.New("config")))
	f.initialize(t)

	assert.Equal(t, []string{statusURI, usageURI}, f.poller.Endpoints())

	f.fetcher.EXPECT().Fetch(gomock.Any(), usageURI).Return(usagePayload("42"), nil)

	result, err := f.poller.Update(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Online)
	assert.Equal(t, 1, result.Attempted)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 2, result.Devices)
	assert.Equal(t, 2, result.Discovered)

	devices := f.poller.Devices()
	assert.Equal(t, "ready", devices["Main"]["status"])
	assert.Equal(t, "42", devices["Printer"]["printer_total_pages"])
	assert.Equal(t, "Printer", f.poller.DeviceConfigs()["Printer"].DeviceType)

	first := <-notifier.Events()
	second := <-notifier.Events()
	assert.Equal(t, "Main", first.DeviceKey)
	assert.Equal(t, "Printer", second.DeviceKey)

	// nothing is due ten seconds later and nothing is announced twice
	f.clock.Advance(10 * time.Second)

	result, err = f.poller.Update(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Attempted)
	assert.Zero(t, result.Discovered)
	assert.Empty(t, notifier.Events())
	assert.Equal(t, devices, f.poller.Devices())
}

func TestStatusFailureSkipsOtherEndpointsAndPreservesDevices(t *testing.T) {
	f := newFixture(t, nil)
	f.initialize(t)

	f.fetcher.EXPECT().Fetch(gomock.Any(), usageURI).Return(usagePayload("42"), nil)

	_, err := f.poller.Update(context.Background())
	require.NoError(t, err)

	before := f.poller.Devices()
	freshness := f.poller.Freshness()

	f.clock.Advance(61 * time.Second)

	// only the status endpoint may be requested; gomock fails on anything else
	f.fetcher.EXPECT().Fetch(gomock.Any(), statusURI).Return(nil, connErr(statusURI))

	result, err := f.poller.Update(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Online)
	assert.Equal(t, 1, result.Attempted)
	assert.Equal(t, 1, result.Failed)
	assert.False(t, f.poller.Online())
	assert.Equal(t, before, f.poller.Devices())
	assert.Equal(t, freshness, f.poller.Freshness())
	assert.Equal(t, offlinePayload(), f.poller.RawData()[statusURI])
}

func TestComingBackOnlineRefreshesEverything(t *testing.T) {
	f := newFixture(t, &Config{
		Host: "192.168.1.20",
		EndpointIntervals: map[string]models.Duration{
			usageURI: models.Duration(10 * time.Minute),
		},
	})
	f.initialize(t)

	f.fetcher.EXPECT().Fetch(gomock.Any(), usageURI).Return(usagePayload("42"), nil)
	_, err := f.poller.Update(context.Background())
	require.NoError(t, err)

	f.clock.Advance(61 * time.Second)
	f.fetcher.EXPECT().Fetch(gomock.Any(), statusURI).Return(nil, connErr(statusURI))
	_, err = f.poller.Update(context.Background())
	require.NoError(t, err)

	// offline: the probe is retried on every cycle regardless of its interval
	f.clock.Advance(5 * time.Second)

	gomock.InOrder(
		f.fetcher.EXPECT().Fetch(gomock.Any(), statusURI).Return(statusPayload("processing"), nil),
		f.fetcher.EXPECT().Fetch(gomock.Any(), usageURI).Return(usagePayload("43"), nil),
	)

	result, err := f.poller.Update(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Online)
	assert.True(t, result.CameOnline)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, "processing", f.poller.Devices()["Main"]["status"])
	assert.Equal(t, "43", f.poller.Devices()["Printer"]["printer_total_pages"])
}

func TestFailedEndpointDoesNotAbortCycle(t *testing.T) {
	f := newFixture(t, nil)
	f.initialize(t)

	f.fetcher.EXPECT().Fetch(gomock.Any(), usageURI).Return(nil, &transport.RequestError{
		Endpoint: usageURI, StatusCode: 404, Kind: transport.ErrNotFound,
	})

	result, err := f.poller.Update(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Online)
	assert.Equal(t, 1, result.NotFound)
	assert.Zero(t, result.Failed)
	assert.Equal(t, "ready", f.poller.Devices()["Main"]["status"])
	assert.NotContains(t, f.poller.Devices(), "Printer")
	assert.Zero(t, f.poller.Freshness()[usageURI])
}

func TestRefreshForcesAllEndpoints(t *testing.T) {
	f := newFixture(t, nil)
	f.initialize(t)

	f.fetcher.EXPECT().Fetch(gomock.Any(), usageURI).Return(usagePayload("42"), nil)
	_, err := f.poller.Update(context.Background())
	require.NoError(t, err)

	f.clock.Advance(time.Second)

	f.fetcher.EXPECT().Fetch(gomock.Any(), statusURI).Return(statusPayload("ready"), nil)
	f.fetcher.EXPECT().Fetch(gomock.Any(), usageURI).Return(usagePayload("44"), nil)

	result, err := f.poller.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Updated)

	debug := f.poller.DebugData()
	assert.Equal(t, "config", debug.EntryID)
	assert.Equal(t, f.poller.SessionID().String(), debug.SessionID)
	assert.Equal(t, "44", debug.Processed["Printer"]["printer_total_pages"])
	assert.Contains(t, debug.Raw, usageURI)
	assert.Equal(t, []string{"Main", "Printer"}, debug.Dispatched)
	require.NotNil(t, debug.LastCycle)
	assert.Equal(t, 2, debug.LastCycle.Updated)
}

func TestRawDataIsACopy(t *testing.T) {
	f := newFixture(t, nil)
	f.initialize(t)

	raw := f.poller.RawData()
	status := raw[statusURI].(map[string]any)["ProductStatusDyn"].(map[string]any)
	status["Status"] = nil

	again := f.poller.RawData()
	assert.Equal(t, statusPayload("ready"), again[statusURI])
}

func TestDiscoveryNarrowsEndpoints(t *testing.T) {
	f := newFixture(t, &Config{Host: "192.168.1.20", DiscoveryEndpoint: "/DevMgmt/DiscoveryTree.xml"})

	f.fetcher.EXPECT().Discover(gomock.Any(), "/DevMgmt/DiscoveryTree.xml").Return([]datapoint.Resource{
		{Type: "ledm:hpLedmProductStatusDyn", URI: statusURI, Methods: datapoint.Methods{"GET"}},
		{Type: "ledm:hpLedmProductStatusCap", URI: "/DevMgmt/ProductStatusCap.xml", Methods: datapoint.Methods{"GET"}},
	}, nil)

	f.initialize(t)

	assert.Equal(t, []string{statusURI}, f.poller.Endpoints())
}

func TestDiscoveryFailurePollsEverything(t *testing.T) {
	f := newFixture(t, &Config{Host: "192.168.1.20", DiscoveryEndpoint: "/DevMgmt/DiscoveryTree.xml"})

	f.fetcher.EXPECT().Discover(gomock.Any(), gomock.Any()).Return(nil, connErr("/DevMgmt/DiscoveryTree.xml"))

	f.initialize(t)

	assert.Equal(t, []string{statusURI, usageURI}, f.poller.Endpoints())
}

func TestSettingsDriveDefaultInterval(t *testing.T) {
	store, err := kv.NewFileStore(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)

	mgr := settings.NewManager(store, "office", logger.NewTestLogger())

	f := newFixture(t, &Config{Host: "192.168.1.20", EntryID: "office"}, WithSettings(mgr))
	f.initialize(t)

	require.NoError(t, f.poller.SetUpdateInterval(context.Background(), 5*time.Minute))

	f.fetcher.EXPECT().Fetch(gomock.Any(), usageURI).Return(usagePayload("42"), nil)
	_, err = f.poller.Update(context.Background())
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)

	result, err := f.poller.Update(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Attempted)

	reloaded := settings.NewManager(store, "office", logger.NewTestLogger())
	require.NoError(t, reloaded.Load(context.Background()))
	assert.Equal(t, 5*time.Minute, reloaded.UpdateInterval())

	assert.Equal(t, 300.0, f.poller.DebugData().Settings[settings.KeyUpdateInterval])
}

func TestSetUpdateIntervalRejectsSubSecond(t *testing.T) {
	f := newFixture(t, nil)

	require.ErrorIs(t, f.poller.SetUpdateInterval(context.Background(), time.Millisecond), errInvalidInterval)
}

func TestUpdatesAreSerialized(t *testing.T) {
	f := newFixture(t, nil)
	f.initialize(t)

	entered := make(chan struct{})
	release := make(chan struct{})

	f.fetcher.EXPECT().Fetch(gomock.Any(), usageURI).DoAndReturn(func(context.Context, string) (any, error) {
		close(entered)
		<-release

		return usagePayload("42"), nil
	})

	done := make(chan error, 1)

	go func() {
		_, err := f.poller.Update(context.Background())
		done <- err
	}()

	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.poller.Update(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)
}

func TestRefreshWaitsForInFlightUpdate(t *testing.T) {
	f := newFixture(t, nil)
	f.initialize(t)

	entered := make(chan struct{})
	release := make(chan struct{})

	f.fetcher.EXPECT().Fetch(gomock.Any(), usageURI).DoAndReturn(func(context.Context, string) (any, error) {
		close(entered)
		<-release

		return usagePayload("42"), nil
	})
	f.fetcher.EXPECT().Fetch(gomock.Any(), statusURI).Return(statusPayload("ready"), nil)
	f.fetcher.EXPECT().Fetch(gomock.Any(), usageURI).Return(usagePayload("43"), nil)

	updateDone := make(chan error, 1)

	go func() {
		_, err := f.poller.Update(context.Background())
		updateDone <- err
	}()

	<-entered

	type refreshOutcome struct {
		result *CycleResult
		err    error
	}

	refreshDone := make(chan refreshOutcome, 1)

	go func() {
		result, err := f.poller.Refresh(context.Background())
		refreshDone <- refreshOutcome{result: result, err: err}
	}()

	// give Refresh time to block behind the running update
	time.Sleep(20 * time.Millisecond)
	close(release)

	require.NoError(t, <-updateDone)

	outcome := <-refreshDone
	require.NoError(t, outcome.err)
	assert.Equal(t, 2, outcome.result.Attempted)
	assert.Equal(t, 2, outcome.result.Updated)
	assert.Equal(t, "43", f.poller.Devices()["Printer"]["printer_total_pages"])
}

func TestStartRunsUpdatesOnTick(t *testing.T) {
	f := newFixture(t, nil)
	f.initialize(t)

	ticks := make(chan time.Time)
	ticker := scheduler.NewMockTicker(f.ctrl)
	ticker.EXPECT().Chan().Return(ticks).AnyTimes()
	ticker.EXPECT().Stop()

	f.mockClk.EXPECT().Ticker(10 * time.Second).Return(ticker)

	updated := make(chan struct{})

	f.fetcher.EXPECT().Fetch(gomock.Any(), usageURI).DoAndReturn(func(context.Context, string) (any, error) {
		close(updated)
		return usagePayload("42"), nil
	})
	f.fetcher.EXPECT().Close().Return(nil)

	require.NoError(t, f.poller.Start(context.Background()))
	require.ErrorIs(t, f.poller.Start(context.Background()), errAlreadyStarted)

	ticks <- f.clock.Now()

	select {
	case <-updated:
	case <-time.After(2 * time.Second):
		t.Fatal("tick did not trigger an update")
	}

	require.Eventually(t, func() bool {
		return f.poller.LastCycle() != nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.poller.Stop(context.Background()))
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{Host: " printer.lan ", SSL: true}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "printer.lan", cfg.Host)
	assert.Equal(t, 443, cfg.Port)
	assert.Equal(t, "config", cfg.EntryID)
	assert.Equal(t, DefaultTitle, cfg.Title)
	assert.Equal(t, DefaultStatusEndpoint, cfg.StatusEndpoint)
	assert.Equal(t, SettingsBackendFile, cfg.Settings.Backend)
	assert.Equal(t, "https://printer.lan:443", cfg.BaseURL())

	tc := cfg.TransportConfig()
	assert.Equal(t, 5*time.Second, tc.Timeout)
	assert.False(t, tc.VerifyTLS)
	assert.Equal(t, 100, tc.MaxConnections)
	assert.Equal(t, 10, tc.MaxConnectionsPerHost)
}

func TestConfigValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"bad port", Config{Host: "p", Port: 70000}, errInvalidPort},
		{"bad backend", Config{Host: "p", Settings: SettingsConfig{Backend: "redis"}}, errUnknownSettingsBackend},
		{"nats backend without nats", Config{Host: "p", Settings: SettingsConfig{Backend: SettingsBackendNATS}}, errNATSRequired},
		{"short interval", Config{Host: "p", EndpointIntervals: map[string]models.Duration{usageURI: models.Duration(time.Millisecond)}}, errInvalidInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.ErrorIs(t, err, ErrConfiguration)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, metrics.OutcomeSuccess, outcome(nil))
	assert.Equal(t, metrics.OutcomeNotFound, outcome(&transport.RequestError{Kind: transport.ErrNotFound}))
	assert.Equal(t, metrics.OutcomeTimeout, outcome(&transport.RequestError{Kind: transport.ErrTimeout}))
	assert.Equal(t, metrics.OutcomeHTTPError, outcome(&transport.RequestError{Kind: transport.ErrHTTPStatus}))
	assert.Equal(t, metrics.OutcomeParseError, outcome(&transport.RequestError{Kind: transport.ErrParse}))
	assert.Equal(t, metrics.OutcomeUnreachable, outcome(connErr(statusURI)))
}
