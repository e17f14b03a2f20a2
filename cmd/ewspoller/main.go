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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/nats-io/nats.go"

	"github.com/carverauto/ewspoller/pkg/api"
	"github.com/carverauto/ewspoller/pkg/config"
	"github.com/carverauto/ewspoller/pkg/datapoint"
	"github.com/carverauto/ewspoller/pkg/discovery"
	"github.com/carverauto/ewspoller/pkg/kv"
	"github.com/carverauto/ewspoller/pkg/lifecycle"
	"github.com/carverauto/ewspoller/pkg/logger"
	"github.com/carverauto/ewspoller/pkg/metrics"
	"github.com/carverauto/ewspoller/pkg/natsutil"
	"github.com/carverauto/ewspoller/pkg/poller"
	"github.com/carverauto/ewspoller/pkg/scheduler"
	"github.com/carverauto/ewspoller/pkg/settings"
	"github.com/carverauto/ewspoller/pkg/transport"
)

const (
	serviceName         = "ewspoller"
	defaultBucket       = "ewspoller_settings"
	initMaxElapsed      = 5 * time.Minute
	natsSetupTimeout    = 30 * time.Second
	defaultShutdownWait = 15 * time.Second
)

var (
	errFailedToLoadConfig = errors.New("failed to load config")
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/ewspoller/ewspoller.json", "Path to poller config file")
	once := flag.Bool("once", false, "Run a single update, print the devices as JSON and exit")
	flag.Parse()

	ctx := context.Background()

	// Step 1: Load configuration
	var cfg poller.Config

	if err := config.NewConfig(nil).LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	// Step 2: Logger and tracing
	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = logger.DefaultConfig()
	}

	mainLogger, err := lifecycle.CreateComponentLogger(ctx, serviceName, logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() {
		if err := lifecycle.ShutdownLogger(); err != nil {
			log.Printf("Failed to shut down logger: %v", err)
		}
	}()

	tp, ctx, rootSpan, err := logger.InitializeTracing(ctx, logger.TracingConfig{
		ServiceName: serviceName,
		Logger:      mainLogger,
		OTel:        &logConfig.OTel,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	defer func() {
		rootSpan.End()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := tp.Shutdown(shutdownCtx); err != nil {
			mainLogger.Warn().Err(err).Msg("Failed to shut down tracer provider")
		}
	}()

	// Step 3: Poller and its collaborators
	schema, err := loadSchema(cfg.DataPointsFile)
	if err != nil {
		return err
	}

	var nc *nats.Conn

	if cfg.NATS != nil {
		nc, err = natsutil.Connect(cfg.NATS, mainLogger)
		if err != nil {
			return err
		}

		defer nc.Close()
	}

	store, err := openSettingsStore(ctx, &cfg, nc)
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(); err != nil {
			mainLogger.Warn().Err(err).Msg("Failed to close settings store")
		}
	}()

	notifier, err := buildNotifier(ctx, &cfg, nc, mainLogger)
	if err != nil {
		return err
	}

	fetcher, err := transport.New(cfg.TransportConfig(), mainLogger)
	if err != nil {
		return err
	}

	m := metrics.New(cfg.EntryID)

	p, err := poller.New(&cfg, schema, fetcher, scheduler.RealClock{}, mainLogger,
		poller.WithNotifier(notifier),
		poller.WithSettings(settings.NewManager(store, cfg.EntryID, mainLogger)),
		poller.WithMetrics(m),
	)
	if err != nil {
		_ = fetcher.Close()
		return err
	}

	defer func() {
		if err := p.Close(); err != nil {
			mainLogger.Warn().Err(err).Msg("Failed to close poller")
		}
	}()

	if err := initialize(ctx, p, mainLogger); err != nil {
		return err
	}

	if *once {
		return runOnce(ctx, p)
	}

	// Step 4: Run the poller and the status API until signalled
	server := api.NewServer(cfg.ListenAddr, p, mainLogger,
		api.WithCORS(cfg.CORS),
		api.WithAPIKey(cfg.APIKey),
		api.WithMetricsHandler(m.Handler()),
	)

	return lifecycle.RunService(ctx, &lifecycle.RunOptions{
		ServiceName:     serviceName,
		Service:         lifecycle.Group{p, server},
		Logger:          mainLogger,
		ShutdownTimeout: defaultShutdownWait,
	})
}

func loadSchema(path string) (*datapoint.Schema, error) {
	if path == "" {
		return datapoint.Default()
	}

	return datapoint.LoadFile(path)
}

func openSettingsStore(ctx context.Context, cfg *poller.Config, nc *nats.Conn) (kv.KVStore, error) {
	if cfg.Settings.Backend != poller.SettingsBackendNATS {
		return kv.NewFileStore(cfg.Settings.Path)
	}

	bucket := cfg.NATS.Bucket
	if bucket == "" {
		bucket = defaultBucket
	}

	ctx, cancel := context.WithTimeout(ctx, natsSetupTimeout)
	defer cancel()

	return kv.NewNatsStore(ctx, nc, cfg.NATS.Domain, bucket)
}

func buildNotifier(ctx context.Context, cfg *poller.Config, nc *nats.Conn, log logger.Logger) (discovery.Notifier, error) {
	notifiers := discovery.MultiNotifier{discovery.NewLogNotifier(log)}

	if nc == nil {
		return notifiers, nil
	}

	ctx, cancel := context.WithTimeout(ctx, natsSetupTimeout)
	defer cancel()

	subject := discovery.DiscoveredSubject(cfg.NATS.SubjectPrefix, cfg.EntryID)

	publisher, err := natsutil.CreateEventPublisher(ctx, nc, cfg.NATS.Domain, cfg.NATS.Stream,
		[]string{subject}, serviceName)
	if err != nil {
		return nil, err
	}

	return append(notifiers, discovery.NewNATSNotifier(publisher, cfg.NATS.SubjectPrefix)), nil
}

// initialize retries the liveness probe until the printer answers.
// Configuration errors are not retried.
func initialize(ctx context.Context, p *poller.Poller, log logger.Logger) error {
	operation := func() (struct{}, error) {
		err := p.Initialize(ctx)

		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, poller.ErrConfiguration):
			return struct{}{}, backoff.Permanent(err)
		default:
			log.Warn().Err(err).Msg("Printer not reachable yet, retrying")
			return struct{}{}, err
		}
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(initMaxElapsed),
	)

	return err
}

func runOnce(ctx context.Context, p *poller.Poller) error {
	if _, err := p.Update(ctx); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(p.Devices())
}
