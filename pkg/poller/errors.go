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

import "errors"

var (
	// ErrConfiguration marks a missing or invalid connection parameter. It is
	// fatal to initialization.
	ErrConfiguration = errors.New("invalid poller configuration")
	// ErrStatusUnavailable marks a failed initial liveness probe. Callers
	// may retry.
	ErrStatusUnavailable = errors.New("printer status endpoint unavailable")
	// ErrNotInitialized is returned by updates before Initialize succeeded.
	ErrNotInitialized = errors.New("poller not initialized")

	errHostRequired           = errors.New("host is required")
	errInvalidPort            = errors.New("port out of range")
	errInvalidInterval        = errors.New("endpoint interval must be at least one second")
	errUnknownSettingsBackend = errors.New("unknown settings backend")
	errNATSRequired           = errors.New("nats settings backend requires a nats section")
	errSchemaRequired         = errors.New("data point schema is required")
	errFetcherRequired        = errors.New("fetcher is required")
	errAlreadyStarted         = errors.New("poller already started")
)
