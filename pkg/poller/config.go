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
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/ewspoller/pkg/logger"
	"github.com/carverauto/ewspoller/pkg/models"
	"github.com/carverauto/ewspoller/pkg/settings"
	"github.com/carverauto/ewspoller/pkg/transport"
	"github.com/carverauto/ewspoller/pkg/xmltree"
)

const (
	// DefaultStatusEndpoint is the liveness probe of HP EWS firmware.
	DefaultStatusEndpoint = "/DevMgmt/ProductStatusDyn.xml"
	// DefaultTitle names the printer when no title is configured.
	DefaultTitle = "HP Printer"

	defaultHTTPPort              = 80
	defaultHTTPSPort             = 443
	defaultRequestTimeout        = 5 * time.Second
	defaultMaxConnections        = 100
	defaultMaxConnectionsPerHost = 10
	defaultTickInterval          = 10 * time.Second
	defaultListenAddr            = ":8090"

	// SettingsBackendFile stores settings in a JSON document on disk.
	SettingsBackendFile = "file"
	// SettingsBackendNATS stores settings in a JetStream KV bucket.
	SettingsBackendNATS = "nats"

	defaultSettingsPath = "ewspoller.settings.json"
)

// SettingsConfig selects where user settings are persisted.
type SettingsConfig struct {
	Backend string `json:"backend"`
	Path    string `json:"path,omitempty"`
}

// Config is the configuration of one printer poller.
type Config struct {
	Host                  string                     `json:"host"`
	Port                  int                        `json:"port,omitempty"`
	SSL                   bool                       `json:"ssl"`
	VerifyTLS             bool                       `json:"verify_tls"`
	EntryID               string                     `json:"entry_id,omitempty"`
	Title                 string                     `json:"title,omitempty"`
	RequestTimeout        models.Duration            `json:"request_timeout,omitempty"`
	MaxConnections        int                        `json:"max_connections,omitempty"`
	MaxConnectionsPerHost int                        `json:"max_connections_per_host,omitempty"`
	RequestsPerSecond     float64                    `json:"requests_per_second,omitempty"`
	TickInterval          models.Duration            `json:"tick_interval,omitempty"`
	StatusEndpoint        string                     `json:"status_endpoint,omitempty"`
	DiscoveryEndpoint     string                     `json:"discovery_endpoint,omitempty"`
	EndpointIntervals     map[string]models.Duration `json:"endpoint_intervals,omitempty"`
	DataPointsFile        string                     `json:"data_points_file,omitempty"`
	Settings              SettingsConfig             `json:"settings"`
	NATS                  *models.NATSConfig         `json:"nats,omitempty"`
	ListenAddr            string                     `json:"listen_addr,omitempty"`
	APIKey                string                     `json:"api_key,omitempty"`
	CORS                  models.CORSConfig          `json:"cors"`
	Logging               *logger.Config             `json:"logging,omitempty"`
}

// Validate implements config.Validator. It fills defaults and reports
// missing connection parameters as ErrConfiguration.
func (c *Config) Validate() error {
	c.Host = strings.TrimSpace(c.Host)
	if c.Host == "" {
		return fmt.Errorf("%w: %w", ErrConfiguration, errHostRequired)
	}

	if c.Port == 0 {
		c.Port = defaultHTTPPort
		if c.SSL {
			c.Port = defaultHTTPSPort
		}
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %w: %d", ErrConfiguration, errInvalidPort, c.Port)
	}

	if c.EntryID == "" {
		c.EntryID = settings.DefaultEntryID
	}

	if c.Title == "" {
		c.Title = DefaultTitle
	}

	if c.RequestTimeout <= 0 {
		c.RequestTimeout = models.Duration(defaultRequestTimeout)
	}

	if c.MaxConnections <= 0 {
		c.MaxConnections = defaultMaxConnections
	}

	if c.MaxConnectionsPerHost <= 0 {
		c.MaxConnectionsPerHost = defaultMaxConnectionsPerHost
	}

	if c.TickInterval <= 0 {
		c.TickInterval = models.Duration(defaultTickInterval)
	}

	if c.StatusEndpoint == "" {
		c.StatusEndpoint = DefaultStatusEndpoint
	}

	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	switch c.Settings.Backend {
	case "":
		c.Settings.Backend = SettingsBackendFile
	case SettingsBackendFile, SettingsBackendNATS:
	default:
		return fmt.Errorf("%w: %w: %s", ErrConfiguration, errUnknownSettingsBackend, c.Settings.Backend)
	}

	if c.Settings.Backend == SettingsBackendFile && c.Settings.Path == "" {
		c.Settings.Path = defaultSettingsPath
	}

	if c.Settings.Backend == SettingsBackendNATS && c.NATS == nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, errNATSRequired)
	}

	if c.NATS != nil {
		if err := c.NATS.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
	}

	for endpoint, interval := range c.EndpointIntervals {
		if interval < models.Duration(time.Second) {
			return fmt.Errorf("%w: %w: %s", ErrConfiguration, errInvalidInterval, endpoint)
		}
	}

	return nil
}

// BaseURL is the EWS root, e.g. "https://192.168.1.20:443".
func (c *Config) BaseURL() string {
	scheme := "http"
	if c.SSL {
		scheme = "https"
	}

	return scheme + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// TransportConfig derives the HTTP client settings.
func (c *Config) TransportConfig() transport.Config {
	return transport.Config{
		BaseURL:               c.BaseURL(),
		Timeout:               c.RequestTimeout.Std(),
		VerifyTLS:             c.VerifyTLS,
		MaxConnections:        c.MaxConnections,
		MaxConnectionsPerHost: c.MaxConnectionsPerHost,
		RequestsPerSecond:     c.RequestsPerSecond,
		XML:                   xmltree.DefaultOptions(),
	}
}

// Intervals returns the per-endpoint refresh intervals.
func (c *Config) Intervals() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.EndpointIntervals))
	for endpoint, interval := range c.EndpointIntervals {
		out[endpoint] = interval.Std()
	}

	return out
}
