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

// Package poller runs the update cycle against one printer: it schedules
// endpoint fetches behind the status probe, caches raw payloads, re-derives
// devices and announces newly observed ones.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/carverauto/ewspoller/pkg/datapoint"
	"github.com/carverauto/ewspoller/pkg/discovery"
	"github.com/carverauto/ewspoller/pkg/extract"
	"github.com/carverauto/ewspoller/pkg/logger"
	"github.com/carverauto/ewspoller/pkg/metrics"
	"github.com/carverauto/ewspoller/pkg/scheduler"
	"github.com/carverauto/ewspoller/pkg/settings"
	"github.com/carverauto/ewspoller/pkg/transport"
)

const (
	stopTimeout           = 10 * time.Second
	defaultUpdateInterval = 60 * time.Second
)

// Option customizes a Poller.
type Option func(*Poller)

// WithNotifier sets the receiver of discovery events.
func WithNotifier(n discovery.Notifier) Option {
	return func(p *Poller) {
		p.notifier = n
	}
}

// WithSettings attaches persisted user settings.
func WithSettings(m *settings.Manager) Option {
	return func(p *Poller) {
		p.settings = m
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Poller) {
		p.metrics = m
	}
}

// CycleResult summarizes one update.
type CycleResult struct {
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Online     bool          `json:"online"`
	CameOnline bool          `json:"came_online"`
	Attempted  int           `json:"attempted"`
	Updated    int           `json:"updated"`
	Failed     int           `json:"failed"`
	NotFound   int           `json:"not_found"`
	Devices    int           `json:"devices"`
	Discovered int           `json:"discovered"`
}

// Poller owns the raw payload cache and the derived device map of one printer.
type Poller struct {
	config    *Config
	schema    *datapoint.Schema
	fetcher   Fetcher
	clock     scheduler.Clock
	logger    logger.Logger
	sessionID uuid.UUID

	scheduler *scheduler.Scheduler
	detector  *discovery.Detector
	notifier  discovery.Notifier
	settings  *settings.Manager
	metrics   *metrics.Metrics

	// sem admits one update at a time across the ticker and forced refreshes.
	sem *semaphore.Weighted

	mu          sync.RWMutex
	initialized bool
	endpoints   []string
	raw         map[string]any
	devices     extract.Devices
	configs     extract.Configs
	lastCycle   *CycleResult

	runMu     sync.Mutex
	running   bool
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a poller. The configuration is validated in Initialize.
func New(cfg *Config, schema *datapoint.Schema, fetcher Fetcher, clock scheduler.Clock, log logger.Logger, opts ...Option) (*Poller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, errHostRequired)
	}

	if schema == nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, errSchemaRequired)
	}

	if fetcher == nil {
		return nil, errFetcherRequired
	}

	if clock == nil {
		clock = scheduler.RealClock{}
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	entryID := cfg.EntryID
	if entryID == "" {
		entryID = settings.DefaultEntryID
	}

	p := &Poller{
		config:    cfg,
		schema:    schema,
		fetcher:   fetcher,
		clock:     clock,
		logger:    log,
		sessionID: uuid.New(),
		detector:  discovery.NewDetector(entryID, clock),
		sem:       semaphore.NewWeighted(1),
		raw:       make(map[string]any),
		devices:   make(extract.Devices),
		configs:   make(extract.Configs),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// SessionID identifies this process's polling session.
func (p *Poller) SessionID() uuid.UUID {
	return p.sessionID
}

// Config returns the validated configuration.
func (p *Poller) Config() *Config {
	return p.config
}

// Initialize validates configuration, loads settings, narrows the endpoint
// list through the discovery document and probes the status endpoint.
func (p *Poller) Initialize(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	if err := p.config.Validate(); err != nil {
		return err
	}

	if err := p.schema.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	defaultInterval := defaultUpdateInterval

	if p.settings != nil {
		if err := p.settings.Load(ctx); err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}

		defaultInterval = p.settings.UpdateInterval()
	}

	p.mu.Lock()
	if p.scheduler == nil {
		p.scheduler = scheduler.New(p.config.StatusEndpoint, defaultInterval, p.config.Intervals())
	} else {
		p.scheduler.SetDefaultInterval(defaultInterval)
	}
	p.mu.Unlock()

	endpoints := p.resolveEndpoints(ctx)

	p.mu.Lock()
	p.endpoints = endpoints
	p.mu.Unlock()

	status := p.config.StatusEndpoint
	now := p.clock.Now()

	payload, err := p.fetch(ctx, status)
	if err != nil {
		p.scheduler.SetOnline(false)
		p.metrics.SetOnline(false)

		return fmt.Errorf("%w: %w", ErrStatusUnavailable, err)
	}

	p.mu.Lock()
	p.raw[status] = payload
	p.initialized = true
	p.mu.Unlock()

	p.scheduler.MarkFresh(status, now)
	p.scheduler.SetOnline(true)
	p.metrics.SetOnline(true)

	p.logger.Info().
		Str("host", p.config.Host).
		Str("entry_id", p.config.EntryID).
		Str("session_id", p.sessionID.String()).
		Int("endpoints", len(endpoints)).
		Dur("default_interval", p.scheduler.Interval("")).
		Msg("Printer session initialized")

	return nil
}

// resolveEndpoints returns the schema endpoints, restricted to the ones the
// firmware lists when a discovery endpoint is configured. The status
// endpoint is always first.
func (p *Poller) resolveEndpoints(ctx context.Context) []string {
	status := p.config.StatusEndpoint
	endpoints := []string{status}

	all := p.schema.Endpoints()

	var exposed map[string]struct{}

	if p.config.DiscoveryEndpoint != "" {
		resources, err := p.fetcher.Discover(ctx, p.config.DiscoveryEndpoint)
		if err != nil {
			p.logger.Warn().
				Err(err).
				Str("endpoint", p.config.DiscoveryEndpoint).
				Msg("Endpoint discovery failed, polling all configured endpoints")
		} else {
			uris := p.schema.Exclusions.Filter(resources)

			exposed = make(map[string]struct{}, len(uris))
			for _, uri := range uris {
				exposed[uri] = struct{}{}
			}
		}
	}

	for _, endpoint := range all {
		if endpoint == status {
			continue
		}

		if exposed != nil {
			if _, ok := exposed[endpoint]; !ok {
				p.logger.Debug().Str("endpoint", endpoint).Msg("Endpoint not exposed by firmware, skipping")
				continue
			}
		}

		endpoints = append(endpoints, endpoint)
	}

	return endpoints
}

// Update runs one cycle: the status probe gates every other due endpoint,
// fetched payloads replace their cache entries, devices are re-derived and
// first-seen devices are announced.
func (p *Poller) Update(ctx context.Context) (*CycleResult, error) {
	return p.update(ctx, false)
}

// Refresh marks every endpoint stale and runs an update. The reset happens
// after any in-flight update has finished.
func (p *Poller) Refresh(ctx context.Context) (*CycleResult, error) {
	return p.update(ctx, true)
}

func (p *Poller) update(ctx context.Context, force bool) (*CycleResult, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	p.mu.RLock()
	initialized := p.initialized
	endpoints := append([]string(nil), p.endpoints...)
	p.mu.RUnlock()

	if !initialized {
		return nil, ErrNotInitialized
	}

	if force {
		p.scheduler.ResetAll()
	}

	start := p.clock.Now()
	result := &CycleResult{StartedAt: start}

	defer func() {
		result.Duration = p.clock.Now().Sub(start)
		p.metrics.ObserveCycle(result.Duration, result.Failed)

		p.mu.Lock()
		p.lastCycle = result
		p.mu.Unlock()

		p.logger.Debug().
			Bool("online", result.Online).
			Int("attempted", result.Attempted).
			Int("updated", result.Updated).
			Int("failed", result.Failed).
			Int("devices", result.Devices).
			Int("discovered", result.Discovered).
			Dur("duration", result.Duration).
			Msg("Scheduled update completed")
	}()

	if !p.probeStatus(ctx, start, result) {
		return result, nil
	}

	result.Online = true

	for _, endpoint := range p.scheduler.DueEndpoints(endpoints, start) {
		if endpoint == p.config.StatusEndpoint {
			continue
		}

		result.Attempted++

		payload, err := p.fetch(ctx, endpoint)
		if err != nil {
			if transport.IsNotFound(err) {
				result.NotFound++
			} else {
				result.Failed++
			}

			continue
		}

		p.mu.Lock()
		p.raw[endpoint] = payload
		p.mu.Unlock()

		p.scheduler.MarkFresh(endpoint, start)
		result.Updated++
	}

	p.refreshDevices(ctx, result)

	return result, nil
}

// probeStatus fetches the status endpoint when it is due or the printer is
// offline. It reports whether the remaining endpoints may be polled.
func (p *Poller) probeStatus(ctx context.Context, now time.Time, result *CycleResult) bool {
	status := p.config.StatusEndpoint

	if p.scheduler.Online() && !p.scheduler.Due(status, now) {
		return true
	}

	result.Attempted++

	payload, err := p.fetch(ctx, status)

	switch {
	case err == nil:
		p.mu.Lock()
		p.raw[status] = payload
		p.mu.Unlock()

		p.scheduler.MarkFresh(status, now)
		result.Updated++

		if p.scheduler.SetOnline(true) {
			result.CameOnline = true

			p.logger.Info().Str("host", p.config.Host).Msg("Printer is back online, refreshing all endpoints")
		}

		p.metrics.SetOnline(true)

		return true
	case transport.IsNotFound(err):
		// the printer answered; this firmware has no status document
		result.NotFound++

		p.scheduler.SetOnline(true)
		p.metrics.SetOnline(true)

		return true
	default:
		result.Failed++

		if p.scheduler.Online() {
			p.logger.Warn().Str("host", p.config.Host).Err(err).Msg("Printer went offline")
		}

		p.scheduler.SetOnline(false)
		p.metrics.SetOnline(false)

		p.mu.Lock()
		p.raw[status] = offlinePayload()
		p.mu.Unlock()

		return false
	}
}

// refreshDevices re-derives the device map from the whole cache and
// announces new devices.
func (p *Poller) refreshDevices(ctx context.Context, result *CycleResult) {
	p.mu.RLock()
	raw := make(map[string]any, len(p.raw))
	for endpoint, payload := range p.raw {
		raw[endpoint] = payload
	}
	p.mu.RUnlock()

	devices, configs := extract.Extract(raw, p.schema, p.logger)

	p.mu.Lock()
	p.devices = devices
	p.configs = configs
	p.mu.Unlock()

	result.Devices = len(devices)
	p.metrics.SetDevices(len(devices))

	events := p.detector.Detect(devices, configs)
	result.Discovered = len(events)
	p.metrics.AddDiscovered(len(events))

	if p.notifier == nil {
		return
	}

	for _, event := range events {
		if err := p.notifier.Notify(ctx, event); err != nil {
			p.logger.Error().
				Err(err).
				Str("device_key", event.DeviceKey).
				Msg("Failed to deliver discovery event")
		}
	}
}

// SetUpdateInterval persists the default refresh interval and applies it.
func (p *Poller) SetUpdateInterval(ctx context.Context, d time.Duration) error {
	if p.settings != nil {
		if err := p.settings.SetUpdateInterval(ctx, d); err != nil {
			return err
		}
	} else if d < time.Second {
		return errInvalidInterval
	}

	p.mu.RLock()
	sched := p.scheduler
	p.mu.RUnlock()

	if sched != nil {
		sched.SetDefaultInterval(d)
	}

	p.logger.Info().Dur("interval", d).Msg("Update interval changed")

	return nil
}

// Start runs updates on every tick until Stop or ctx cancellation.
func (p *Poller) Start(ctx context.Context) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if p.running {
		return errAlreadyStarted
	}

	p.running = true

	interval := p.config.TickInterval.Std()
	if interval <= 0 {
		interval = defaultTickInterval
	}

	ticker := p.clock.Ticker(interval)

	p.logger.Info().Dur("interval", interval).Msg("Starting poller")

	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-p.done:
				return
			case <-ticker.Chan():
				if _, err := p.Update(ctx); err != nil && ctx.Err() == nil {
					p.logger.Error().Err(err).Msg("Error during update")
				}
			}
		}
	}()

	return nil
}

// Stop implements the lifecycle.Service interface.
func (p *Poller) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()

	p.closeOnce.Do(func() { close(p.done) })

	stopped := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		return ctx.Err()
	}

	return p.Close()
}

// Close releases the transport. It is safe to call more than once.
func (p *Poller) Close() error {
	p.closeOnce.Do(func() { close(p.done) })

	if err := p.fetcher.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}

	return nil
}

func (p *Poller) fetch(ctx context.Context, endpoint string) (any, error) {
	start := p.clock.Now()

	payload, err := p.fetcher.Fetch(ctx, endpoint)

	end := p.clock.Now()
	p.metrics.ObserveFetch(endpoint, outcome(err), end.Sub(start), end)

	return payload, err
}
