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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/ewspoller/pkg/logger"
)

const defaultShutdownTimeout = 10 * time.Second

// Service is a component with a background loop.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Group runs several services as one. Start runs them in order and stops
// the started ones if any fails; Stop runs in reverse order.
type Group []Service

func (g Group) Start(ctx context.Context) error {
	for i, svc := range g {
		if err := svc.Start(ctx); err != nil {
			rollback := Group(g[:i])

			return errors.Join(err, rollback.Stop(ctx))
		}
	}

	return nil
}

func (g Group) Stop(ctx context.Context) error {
	var errs []error

	for i := len(g) - 1; i >= 0; i-- {
		if err := g[i].Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// RunOptions configures RunService.
type RunOptions struct {
	ServiceName     string
	Service         Service
	Logger          logger.Logger
	ShutdownTimeout time.Duration
	Signals         []os.Signal
}

// RunService starts opts.Service and blocks until ctx is done or one of the
// configured signals (SIGINT and SIGTERM by default) arrives, then stops it
// within the shutdown timeout.
func RunService(ctx context.Context, opts *RunOptions) error {
	log := opts.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	signals := opts.Signals
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	ctx, stop := signal.NotifyContext(ctx, signals...)
	defer stop()

	if err := opts.Service.Start(ctx); err != nil {
		return fmt.Errorf("failed to start %s: %w", opts.ServiceName, err)
	}

	log.Info().Str("service", opts.ServiceName).Msg("Service started")

	<-ctx.Done()

	log.Info().Str("service", opts.ServiceName).Msg("Shutting down")

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := opts.Service.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop %s: %w", opts.ServiceName, err)
	}

	log.Info().Str("service", opts.ServiceName).Msg("Service stopped")

	return nil
}
