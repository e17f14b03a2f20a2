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

package transport

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrNotFound marks a 404 response; the firmware does not expose the endpoint.
	ErrNotFound = errors.New("endpoint not found")
	// ErrTimeout marks a request that exceeded the per-request timeout.
	ErrTimeout = errors.New("request timed out")
	// ErrHTTPStatus marks any other non-2xx response.
	ErrHTTPStatus = errors.New("unexpected http status")
	// ErrConnectivity marks an unreachable device. Timeouts and non-2xx
	// responses also match it.
	ErrConnectivity = errors.New("device unreachable")
	// ErrParse marks a malformed XML or JSON body.
	ErrParse = errors.New("failed to parse response")

	errClosed = errors.New("transport is closed")
)

// RequestError is the typed outcome of a failed request.
type RequestError struct {
	Endpoint   string
	StatusCode int
	Elapsed    time.Duration
	Kind       error
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %v (status %d %s)", e.Endpoint, e.Kind, e.StatusCode, http.StatusText(e.StatusCode))
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Endpoint, e.Kind, e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Endpoint, e.Kind)
}

func (e *RequestError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

// Is lets timeouts and HTTP status failures match ErrConnectivity.
func (e *RequestError) Is(target error) bool {
	if target != ErrConnectivity {
		return false
	}

	return e.Kind == ErrTimeout || e.Kind == ErrHTTPStatus
}

// IsNotFound reports whether err is a 404 outcome.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
