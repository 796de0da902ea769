// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/tomtom215/adlink/internal/auth"
	"github.com/tomtom215/adlink/internal/logging"
)

// CronRefresh runs the refresh sweep for one platform. It is meant for an
// external scheduler and is authorized by the shared cron secret.
//
// @Summary Run the refresh sweep for one platform
// @Tags Scheduler
// @Produce json
// @Param platform path string true "Ad platform" Enums(google_ads, meta_ads, tiktok_ads)
// @Success 200 {object} scheduler.Report "Sweep summary"
// @Failure 401 {object} ErrorResponse "Invalid cron secret"
// @Failure 500 {object} ErrorResponse "Sweep failed"
// @Security CronAuth
// @Router /cron/{platform}-refresh [get]
func (h *Handler) CronRefresh(w http.ResponseWriter, r *http.Request) {
	p, ok := h.platform(w, r)
	if !ok {
		return
	}
	if !h.cronAuthorized(r) {
		h.security.LogCronRejected(string(p), r.RemoteAddr)
		respondError(w, r, http.StatusUnauthorized, CodeUnauthorized, "invalid cron secret")
		return
	}

	report, err := h.sweeper.Sweep(r.Context(), p)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("platform", string(p)).Msg("Refresh sweep failed")
		respondError(w, r, http.StatusInternalServerError, "internal_error", "refresh sweep failed")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// cronAuthorized checks the bearer cron secret in constant time. Without a
// configured secret only non-production deployments are open.
func (h *Handler) cronAuthorized(r *http.Request) bool {
	secret := h.cfg.Security.CronSecret
	if secret == "" {
		return !h.cfg.IsProduction()
	}
	token := auth.TokenFromRequest(r, "")
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
