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

// Package api serves the poller's state over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/ewspoller/pkg/entity"
	ewshttp "github.com/carverauto/ewspoller/pkg/http"
	"github.com/carverauto/ewspoller/pkg/logger"
	"github.com/carverauto/ewspoller/pkg/models"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 60 * time.Second

	metricsPath = "/metrics"
)

var errAlreadyStarted = errors.New("api server already started")

// Server is the status API of one poller.
type Server struct {
	addr     string
	router   *mux.Router
	service  PollerService
	registry *entity.Registry
	metrics  http.Handler
	cors     models.CORSConfig
	apiKey   string
	logger   logger.Logger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// Option customizes a Server.
type Option func(*Server)

// WithCORS sets the allowed origins.
func WithCORS(cfg models.CORSConfig) Option {
	return func(s *Server) {
		s.cors = cfg
	}
}

// WithAPIKey protects /api routes with a shared key.
func WithAPIKey(key string) Option {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithRegistry replaces the default entity descriptions.
func WithRegistry(r *entity.Registry) Option {
	return func(s *Server) {
		s.registry = r
	}
}

// NewServer creates the API server for addr.
func NewServer(addr string, service PollerService, log logger.Logger, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		router:   mux.NewRouter(),
		service:  service,
		registry: entity.DefaultRegistry(),
		logger:   log,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(func(next http.Handler) http.Handler {
		return ewshttp.CommonMiddleware(next, s.cors, s.logger)
	})

	if s.metrics != nil {
		s.router.Handle(metricsPath, s.metrics).Methods(http.MethodGet)
	}

	protected := s.router.PathPrefix("/api").Subrouter()
	protected.Use(ewshttp.APIKeyMiddleware(s.apiKey, s.logger))

	protected.HandleFunc("/status", s.getStatus).Methods(http.MethodGet)
	protected.HandleFunc("/devices", s.getDevices).Methods(http.MethodGet)
	protected.HandleFunc("/devices/{key}", s.getDevice).Methods(http.MethodGet)
	protected.HandleFunc("/device-configs", s.getDeviceConfigs).Methods(http.MethodGet)
	protected.HandleFunc("/raw", s.getRaw).Methods(http.MethodGet)
	protected.HandleFunc("/entities", s.getEntities).Methods(http.MethodGet)
	protected.HandleFunc("/debug", s.getDebug).Methods(http.MethodGet)
	protected.HandleFunc("/refresh", s.postRefresh).Methods(http.MethodPost)
	protected.HandleFunc("/settings/update-interval", s.putUpdateInterval).Methods(http.MethodPut)
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in the background.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return errAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.listener = ln
	s.srv = &http.Server{
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Status API listening")

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Status API stopped")
		}
	}(s.srv)

	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return s.addr
	}

	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down status API: %w", err)
	}

	return nil
}
