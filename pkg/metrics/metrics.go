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

// Package metrics exposes poller activity as Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ewspoller"

// Fetch outcomes used as the "outcome" label.
const (
	OutcomeSuccess     = "success"
	OutcomeNotFound    = "not_found"
	OutcomeTimeout     = "timeout"
	OutcomeHTTPError   = "http_error"
	OutcomeParseError  = "parse_error"
	OutcomeUnreachable = "unreachable"
)

// Metrics holds the collectors of one poller. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	fetches         *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	lastSuccess     *prometheus.GaugeVec
	cycles          prometheus.Counter
	cycleDuration   prometheus.Histogram
	endpointsFailed prometheus.Counter
	online          prometheus.Gauge
	devices         prometheus.Gauge
	discovered      prometheus.Counter
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New(entryID string) *Metrics {
	labels := prometheus.Labels{"entry_id": entryID}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "fetch_total",
			Help:        "Endpoint fetches by outcome",
			ConstLabels: labels,
		}, []string{"endpoint", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "fetch_duration_seconds",
			Help:        "Endpoint fetch latency",
			Buckets:     []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			ConstLabels: labels,
		}, []string{"endpoint"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "endpoint_last_success_timestamp_seconds",
			Help:        "Unix time of the last successful fetch per endpoint",
			ConstLabels: labels,
		}, []string{"endpoint"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "update_cycles_total",
			Help:        "Completed update cycles",
			ConstLabels: labels,
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "update_duration_seconds",
			Help:        "Update cycle latency",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}),
		endpointsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "endpoint_failures_total",
			Help:        "Endpoint fetches that failed during update cycles",
			ConstLabels: labels,
		}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "printer_online",
			Help:        "1 when the status endpoint answered on the last probe",
			ConstLabels: labels,
		}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "devices",
			Help:        "Devices with data in the current device map",
			ConstLabels: labels,
		}),
		discovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "devices_discovered_total",
			Help:        "Discovery events emitted this session",
			ConstLabels: labels,
		}),
	}

	m.registry.MustRegister(
		m.fetches,
		m.fetchDuration,
		m.lastSuccess,
		m.cycles,
		m.cycleDuration,
		m.endpointsFailed,
		m.online,
		m.devices,
		m.discovered,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveFetch records one endpoint request.
func (m *Metrics) ObserveFetch(endpoint, outcome string, elapsed time.Duration, at time.Time) {
	if m == nil {
		return
	}

	m.fetches.WithLabelValues(endpoint, outcome).Inc()
	m.fetchDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())

	if outcome == OutcomeSuccess {
		m.lastSuccess.WithLabelValues(endpoint).Set(float64(at.Unix()))
	}
}

// ObserveCycle records a finished update cycle.
func (m *Metrics) ObserveCycle(elapsed time.Duration, failed int) {
	if m == nil {
		return
	}

	m.cycles.Inc()
	m.cycleDuration.Observe(elapsed.Seconds())
	m.endpointsFailed.Add(float64(failed))
}

// SetOnline records the liveness of the printer.
func (m *Metrics) SetOnline(online bool) {
	if m == nil {
		return
	}

	if online {
		m.online.Set(1)
		return
	}

	m.online.Set(0)
}

// SetDevices records the size of the device map.
func (m *Metrics) SetDevices(n int) {
	if m == nil {
		return
	}

	m.devices.Set(float64(n))
}

// AddDiscovered counts emitted discovery events.
func (m *Metrics) AddDiscovered(n int) {
	if m == nil || n <= 0 {
		return
	}

	m.discovered.Add(float64(n))
}
