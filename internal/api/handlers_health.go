// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/adlink/internal/logging"
)

const readinessTimeout = 2 * time.Second

type liveResponse struct {
	Alive  bool    `json:"alive"`
	Uptime float64 `json:"uptime"`
}

type readyResponse struct {
	Status         string  `json:"status"`
	StoreConnected bool    `json:"store_connected"`
	Uptime         float64 `json:"uptime"`
}

// HealthLive reports that the process is running.
//
// @Summary Liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} liveResponse "Process is alive"
// @Router /health/live [get]
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &liveResponse{
		Alive:  true,
		Uptime: time.Since(h.startTime).Seconds(),
	})
}

// HealthReady returns 200 only while the store answers.
//
// @Summary Readiness probe
// @Description Returns 503 while the connection store does not answer.
// @Tags Health
// @Produce json
// @Success 200 {object} readyResponse "Service is ready"
// @Failure 503 {object} readyResponse "Store unavailable"
// @Router /health/ready [get]
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	err := h.store.Ping(ctx)
	resp := &readyResponse{
		Status:         "ready",
		StoreConnected: err == nil,
		Uptime:         time.Since(h.startTime).Seconds(),
	}
	status := http.StatusOK
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Readiness check failed")
		resp.Status = "not_ready"
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}
