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

// Package transport fetches and decodes endpoint payloads from the
// device's embedded web server.
package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/carverauto/ewspoller/pkg/datapoint"
	"github.com/carverauto/ewspoller/pkg/logger"
	"github.com/carverauto/ewspoller/pkg/xmltree"
)

const (
	defaultTimeout               = 5 * time.Second
	defaultMaxConnections        = 100
	defaultMaxConnectionsPerHost = 10
	maxBodyBytes                 = 8 << 20

	tracerName = "github.com/carverauto/ewspoller/pkg/transport"
)

// Config controls the pooled HTTP session.
type Config struct {
	BaseURL               string
	Timeout               time.Duration
	VerifyTLS             bool
	MaxConnections        int
	MaxConnectionsPerHost int
	RequestsPerSecond     float64
	XML                   xmltree.Options
}

// Client is a connection-pooled GET client bound to one device.
type Client struct {
	cfg       Config
	transport *http.Transport
	http      *http.Client
	limiter   *rate.Limiter
	tracer    trace.Tracer
	logger    logger.Logger

	mu     sync.RWMutex
	closed bool
}

var errBaseURLRequired = errors.New("base url is required")

// New creates the session. It is released by Close.
func New(cfg Config, log logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errBaseURLRequired
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = defaultMaxConnections
	}

	if cfg.MaxConnectionsPerHost <= 0 {
		cfg.MaxConnectionsPerHost = defaultMaxConnectionsPerHost
	}

	// every request goes to the one BaseURL host, so the per-host limit is
	// also the total limit
	maxConns := min(cfg.MaxConnections, cfg.MaxConnectionsPerHost)

	//nolint:gosec // printers ship self-signed certificates; verification is opt-in
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.VerifyTLS,
		},
		MaxIdleConns:          cfg.MaxConnections,
		MaxIdleConnsPerHost:   maxConns,
		MaxConnsPerHost:       maxConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   cfg.Timeout,
		ResponseHeaderTimeout: cfg.Timeout,
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		cfg:       cfg,
		transport: transport,
		http:      &http.Client{Transport: transport, Timeout: cfg.Timeout},
		limiter:   limiter,
		tracer:    otel.Tracer(tracerName),
		logger:    log,
	}, nil
}

// BaseURL returns the device URL prefix.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// Fetch GETs an endpoint and decodes it. JSON content types are decoded
// directly; anything else is normalized as XML.
func (c *Client) Fetch(ctx context.Context, endpoint string) (any, error) {
	body, contentType, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var payload any

	if isJSON(contentType) {
		err = json.Unmarshal(body, &payload)
	} else {
		payload, err = xmltree.Normalize(body, c.cfg.XML)
	}

	if err != nil {
		reqErr := &RequestError{Endpoint: endpoint, Kind: ErrParse, Err: err}
		c.logFailure(reqErr)

		return nil, reqErr
	}

	return payload, nil
}

// Discover reads the device's JSON resource index.
func (c *Client) Discover(ctx context.Context, endpoint string) ([]datapoint.Resource, error) {
	body, _, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resources []datapoint.Resource
	if err := json.Unmarshal(body, &resources); err != nil {
		return nil, &RequestError{Endpoint: endpoint, Kind: ErrParse, Err: err}
	}

	return resources, nil
}

// Close releases pooled connections. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.transport.CloseIdleConnections()

	c.logger.Info().Str("base_url", c.cfg.BaseURL).Msg("Terminating session to printer EWS")

	return nil
}

func (c *Client) get(ctx context.Context, endpoint string) (body []byte, contentType string, err error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		return nil, "", &RequestError{Endpoint: endpoint, Kind: ErrConnectivity, Err: errClosed}
	}

	url := c.cfg.BaseURL + endpoint

	ctx, span := c.tracer.Start(ctx, "ews.get", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("http.request.method", http.MethodGet),
		attribute.String("url.full", url),
		attribute.String("ews.endpoint", endpoint),
	)

	start := time.Now()

	defer func() {
		elapsed := time.Since(start)

		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			reqErr.Elapsed = elapsed

			span.RecordError(err)
			span.SetStatus(codes.Error, reqErr.Kind.Error())
			c.logFailure(reqErr)

			return
		}

		span.SetStatus(codes.Ok, "")
		c.logger.Debug().
			Str("url", url).
			Dur("elapsed", elapsed).
			Msg("Request completed")
	}()

	if c.limiter != nil {
		if waitErr := c.limiter.Wait(ctx); waitErr != nil {
			return nil, "", &RequestError{Endpoint: endpoint, Kind: ErrTimeout, Err: waitErr}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, "", &RequestError{Endpoint: endpoint, Kind: ErrConnectivity, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", classify(endpoint, err)
	}
	defer c.closeResponse(resp)

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, "", &RequestError{Endpoint: endpoint, StatusCode: resp.StatusCode, Kind: ErrNotFound}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, "", &RequestError{Endpoint: endpoint, StatusCode: resp.StatusCode, Kind: ErrHTTPStatus}
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", classify(endpoint, err)
	}

	return body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) closeResponse(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to close response body")
	}
}

// logFailure logs 404s at debug and every other failure at error.
func (c *Client) logFailure(err *RequestError) {
	event := c.logger.Error()
	if err.Kind == ErrNotFound {
		event = c.logger.Debug()
	}

	event.
		Err(err).
		Str("endpoint", err.Endpoint).
		Int("status_code", err.StatusCode).
		Dur("elapsed", err.Elapsed).
		Msg("Failed to get response from endpoint")
}

func classify(endpoint string, err error) *RequestError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &RequestError{Endpoint: endpoint, Kind: ErrTimeout, Err: err}
	}

	return &RequestError{Endpoint: endpoint, Kind: ErrConnectivity, Err: err}
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	switch mediaType {
	case "application/javascript", "application/json":
		return true
	default:
		return false
	}
}
