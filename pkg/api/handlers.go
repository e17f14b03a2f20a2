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

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/ewspoller/pkg/entity"
	"github.com/carverauto/ewspoller/pkg/extract"
	"github.com/carverauto/ewspoller/pkg/models"
	"github.com/carverauto/ewspoller/pkg/poller"
)

const maxRequestBody = 1 << 16

// StatusResponse summarizes the poller.
type StatusResponse struct {
	EntryID   string              `json:"entry_id"`
	Title     string              `json:"title"`
	Host      string              `json:"host"`
	SessionID string              `json:"session_id"`
	Online    bool                `json:"online"`
	Devices   int                 `json:"devices"`
	Endpoints []string            `json:"endpoints"`
	Freshness map[string]int64    `json:"freshness"`
	LastCycle *poller.CycleResult `json:"last_cycle,omitempty"`
}

// DeviceResponse is one device with its configuration.
type DeviceResponse struct {
	Key    string               `json:"key"`
	Type   string               `json:"type"`
	Data   extract.DeviceData   `json:"data"`
	Config extract.DeviceConfig `json:"config"`
}

// UpdateIntervalRequest sets the default refresh interval. Interval takes
// a duration string; Seconds is accepted as well.
type UpdateIntervalRequest struct {
	Interval models.Duration `json:"interval,omitempty"`
	Seconds  float64         `json:"seconds,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	cfg := s.service.Config()

	s.writeJSON(w, http.StatusOK, &StatusResponse{
		EntryID:   cfg.EntryID,
		Title:     cfg.Title,
		Host:      cfg.Host,
		SessionID: s.service.SessionID().String(),
		Online:    s.service.Online(),
		Devices:   len(s.service.Devices()),
		Endpoints: s.service.Endpoints(),
		Freshness: s.service.Freshness(),
		LastCycle: s.service.LastCycle(),
	})
}

func (s *Server) getDevices(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.Devices())
}

func (s *Server) getDevice(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	data, ok := s.service.Device(key)
	if !ok {
		writeError(w, "device not found", http.StatusNotFound)
		return
	}

	s.writeJSON(w, http.StatusOK, &DeviceResponse{
		Key:    key,
		Type:   extract.DeviceType(key),
		Data:   data,
		Config: s.service.DeviceConfigs()[key],
	})
}

func (s *Server) getDeviceConfigs(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.DeviceConfigs())
}

func (s *Server) getRaw(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.RawData())
}

func (s *Server) getEntities(w http.ResponseWriter, r *http.Request) {
	cfg := s.service.Config()

	entities := s.registry.Build(cfg.EntryID, cfg.Title, s.service.Devices())

	if platform := r.URL.Query().Get("platform"); platform != "" {
		filtered := make([]entity.Entity, 0, len(entities))

		for _, e := range entities {
			if string(e.Platform) == platform {
				filtered = append(filtered, e)
			}
		}

		entities = filtered
	}

	if entities == nil {
		entities = []entity.Entity{}
	}

	s.writeJSON(w, http.StatusOK, entities)
}

// getDebug forces a full refresh first so the snapshot reflects every
// endpoint. A failed refresh still returns the cached data.
func (s *Server) getDebug(w http.ResponseWriter, r *http.Request) {
	if _, err := s.service.Refresh(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("Full refresh for debug data failed")
	}

	s.writeJSON(w, http.StatusOK, s.service.DebugData())
}

func (s *Server) postRefresh(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Refresh(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, poller.ErrNotInitialized) {
			status = http.StatusServiceUnavailable
		}

		writeError(w, err.Error(), status)

		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) putUpdateInterval(w http.ResponseWriter, r *http.Request) {
	var req UpdateIntervalRequest

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	interval := req.Interval.Std()
	if interval == 0 {
		interval = time.Duration(req.Seconds * float64(time.Second))
	}

	if interval < time.Second {
		writeError(w, "update interval must be at least one second", http.StatusBadRequest)
		return
	}

	if err := s.service.SetUpdateInterval(r.Context(), interval); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]float64{"update_interval": interval.Seconds()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Error encoding response")
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(ErrorResponse{Message: message, Status: statusCode}); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
