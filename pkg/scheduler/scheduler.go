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

// Package scheduler tracks per-endpoint freshness and decides which
// endpoints are due on each polling tick.
package scheduler

import (
	"sync"
	"time"
)

// State is the freshness state of one endpoint.
type State int

const (
	Unfetched State = iota
	Fresh
	Stale
)

func (s State) String() string {
	switch s {
	case Unfetched:
		return "unfetched"
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// Scheduler owns the last-successful-fetch timestamps of a single target.
// The status endpoint doubles as the liveness gate for everything else.
type Scheduler struct {
	mu              sync.RWMutex
	statusEndpoint  string
	defaultInterval time.Duration
	intervals       map[string]time.Duration
	lastUpdate      map[string]int64
	online          bool
}

// New creates a scheduler. Endpoints without an explicit interval use
// defaultInterval.
func New(statusEndpoint string, defaultInterval time.Duration, intervals map[string]time.Duration) *Scheduler {
	copied := make(map[string]time.Duration, len(intervals))
	for endpoint, interval := range intervals {
		copied[endpoint] = interval
	}

	return &Scheduler{
		statusEndpoint:  statusEndpoint,
		defaultInterval: defaultInterval,
		intervals:       copied,
		lastUpdate:      make(map[string]int64),
	}
}

// StatusEndpoint returns the liveness endpoint.
func (s *Scheduler) StatusEndpoint() string {
	return s.statusEndpoint
}

// Interval returns the minimum refresh interval of an endpoint.
func (s *Scheduler) Interval(endpoint string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.intervalLocked(endpoint)
}

func (s *Scheduler) intervalLocked(endpoint string) time.Duration {
	if interval, ok := s.intervals[endpoint]; ok {
		return interval
	}

	return s.defaultInterval
}

// SetDefaultInterval changes the interval of endpoints that have no
// explicit override.
func (s *Scheduler) SetDefaultInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.defaultInterval = d
}

// Due reports whether the endpoint should be fetched at now.
func (s *Scheduler) Due(endpoint string, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.dueLocked(endpoint, now)
}

func (s *Scheduler) dueLocked(endpoint string, now time.Time) bool {
	last := s.lastUpdate[endpoint]
	interval := int64(s.intervalLocked(endpoint) / time.Second)

	return now.Unix()-last >= interval
}

// State returns the freshness state of the endpoint at now.
func (s *Scheduler) State(endpoint string, now time.Time) State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastUpdate[endpoint] == 0 {
		return Unfetched
	}

	if s.dueLocked(endpoint, now) {
		return Stale
	}

	return Fresh
}

// MarkFresh records a successful fetch.
func (s *Scheduler) MarkFresh(endpoint string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastUpdate[endpoint] = now.Unix()
}

// resetExceptStatusLocked forces every endpoint but the status endpoint to
// be fetched on the next tick.
func (s *Scheduler) resetExceptStatusLocked() {
	for endpoint := range s.lastUpdate {
		if endpoint != s.statusEndpoint {
			s.lastUpdate[endpoint] = 0
		}
	}
}

// ResetAll forces every endpoint to be fetched on the next tick.
func (s *Scheduler) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastUpdate = make(map[string]int64)
}

// Freshness returns a snapshot of the last-successful-fetch timestamps.
func (s *Scheduler) Freshness() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]int64, len(s.lastUpdate))
	for endpoint, ts := range s.lastUpdate {
		snapshot[endpoint] = ts
	}

	return snapshot
}

// Online reports the last known liveness of the target.
func (s *Scheduler) Online() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.online
}

// SetOnline records the liveness probe outcome. It returns true on an
// offline to online transition, in which case all non-status endpoints
// have been made stale.
func (s *Scheduler) SetOnline(online bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cameOnline := online && !s.online
	s.online = online

	if cameOnline {
		s.resetExceptStatusLocked()
	}

	return cameOnline
}

// DueEndpoints filters endpoints down to the ones due at now, keeping order.
func (s *Scheduler) DueEndpoints(endpoints []string, now time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	due := make([]string, 0, len(endpoints))

	for _, endpoint := range endpoints {
		if s.dueLocked(endpoint, now) {
			due = append(due, endpoint)
		}
	}

	return due
}
