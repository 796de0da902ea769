// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/tomtom215/adlink/internal/logging"
	"github.com/tomtom215/adlink/internal/models"
	"github.com/tomtom215/adlink/internal/oauth"
)

// stateCookieMaxAge is the lifetime of the state cookie in seconds.
var stateCookieMaxAge = int(oauth.DefaultStateTTL / time.Second)

type pendingResponse struct {
	Accounts  []models.CandidateAccount `json:"accounts"`
	ExpiresAt time.Time                 `json:"expiresAt"`
}

type selectAccountRequest struct {
	PendingTokenID string `json:"pendingTokenId" validate:"required,max=64,printascii"`
	AccountID      string `json:"accountId" validate:"required,max=128,printascii"`
}

type selectAccountResponse struct {
	ConnectionID string `json:"connectionId"`
}

type refreshRequest struct {
	ConnectionID string `json:"connectionId" validate:"required,max=64,printascii"`
}

type refreshResponse struct {
	ExpiresAt *time.Time `json:"expiresAt"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type connectionsResponse struct {
	Connections []models.ConnectionSummary `json:"connections"`
}

// Initiate starts the connect flow: it stores the encrypted state in the
// platform's state cookie and redirects to the provider consent screen.
//
// @Summary Start connecting an ad account
// @Description Sets the platform state cookie and redirects to the provider consent screen.
// @Tags Connect
// @Param platform path string true "Ad platform" Enums(google_ads, meta_ads, tiktok_ads)
// @Success 302 "Redirect to the provider consent screen"
// @Failure 401 {object} ErrorResponse "Missing or invalid session"
// @Failure 404 {object} ErrorResponse "Unknown or disabled platform"
// @Security SessionAuth
// @Router /auth/{platform} [get]
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	p, ok := h.platform(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Initiate(r.Context(), userID(r), p)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	http.SetCookie(w, h.stateCookie(p, res.StateToken, stateCookieMaxAge))
	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
}

// Callback completes the provider redirect. Every outcome, success or
// failure, is a redirect back to the dashboard.
//
// @Summary Provider OAuth callback
// @Description Exchanges the authorization code and redirects to the dashboard, or to the account
// @Description selection page when more than one account is available. Errors are reported in the
// @Description redirect query, never as JSON.
// @Tags Connect
// @Param platform path string true "Ad platform" Enums(google_ads, meta_ads, tiktok_ads)
// @Param code query string false "Authorization code"
// @Param auth_code query string false "Authorization code (TikTok)"
// @Param state query string false "State nonce echoed by the provider"
// @Param error query string false "Provider error"
// @Param error_description query string false "Provider error description"
// @Success 302 "Redirect to the dashboard or the account selection page"
// @Security SessionAuth
// @Router /auth/{platform}/callback [get]
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	p, ok := h.platform(w, r)
	if !ok {
		return
	}

	// The state cookie is single-use: clear it before anything else.
	var stateToken string
	if c, err := r.Cookie(p.StateCookieName()); err == nil {
		stateToken = c.Value
	}
	http.SetCookie(w, h.stateCookie(p, "", -1))

	logger := logging.Ctx(r.Context()).With().Str("platform", string(p)).Logger()

	uid, err := h.sessions.Authenticate(r)
	if err != nil {
		logger.Warn().Err(err).Msg("OAuth callback without a valid session")
		h.redirect(w, r, h.cfg.Redirects.DashboardURL, url.Values{
			"error":    {"your session has expired; please sign in and try again"},
			"platform": {string(p)},
		})
		return
	}

	q := r.URL.Query()
	code := q.Get("code")
	if code == "" && p == models.PlatformTikTokAds {
		code = q.Get("auth_code")
	}
	description := q.Get("error_description")
	if description == "" {
		description = q.Get("error_reason")
	}

	res, err := h.svc.Callback(r.Context(), oauth.CallbackRequest{
		UserID:                   uid,
		Platform:                 p,
		Code:                     code,
		ReturnedState:            q.Get("state"),
		StateToken:               stateToken,
		ProviderError:            q.Get("error"),
		ProviderErrorDescription: description,
		ClientIP:                 r.RemoteAddr,
	})
	if err != nil {
		logger.Warn().
			Str("code", oauth.CodeOf(err)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("OAuth callback failed")
		h.redirect(w, r, h.cfg.Redirects.DashboardURL, url.Values{
			"error":    {oauth.UserMessage(err)},
			"platform": {string(p)},
		})
		return
	}

	switch res.Kind {
	case oauth.CallbackPendingSelection:
		h.redirect(w, r, h.cfg.Redirects.SelectAccountURL, url.Values{
			"pendingTokenId": {res.PendingID},
			"platform":       {string(p)},
		})
	default:
		h.redirect(w, r, h.cfg.Redirects.DashboardURL, url.Values{
			"success":  {"true"},
			"platform": {string(p)},
		})
	}
}

// GetPending returns the candidate accounts of a pending selection.
//
// @Summary List accounts of a pending selection
// @Tags Connect
// @Produce json
// @Param platform path string true "Ad platform" Enums(google_ads, meta_ads, tiktok_ads)
// @Param id query string true "Pending selection ID"
// @Success 200 {object} pendingResponse "Candidate accounts"
// @Failure 400 {object} ErrorResponse "Missing id"
// @Failure 404 {object} ErrorResponse "Unknown pending selection"
// @Failure 410 {object} ErrorResponse "Pending selection expired"
// @Security SessionAuth
// @Router /auth/{platform}/pending [get]
func (h *Handler) GetPending(w http.ResponseWriter, r *http.Request) {
	p, ok := h.platform(w, r)
	if !ok {
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		respondError(w, r, http.StatusBadRequest, CodeInvalidRequest, "id is required")
		return
	}
	view, err := h.svc.GetPending(r.Context(), userID(r), p, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, &pendingResponse{Accounts: view.Accounts, ExpiresAt: view.ExpiresAt})
}

// SelectAccount finalizes a pending selection.
//
// @Summary Choose the account of a pending selection
// @Tags Connect
// @Accept json
// @Produce json
// @Param platform path string true "Ad platform" Enums(google_ads, meta_ads, tiktok_ads)
// @Param request body selectAccountRequest true "Pending selection and chosen account"
// @Success 201 {object} selectAccountResponse "Connection created or updated"
// @Failure 400 {object} ErrorResponse "Invalid request or account not offered"
// @Failure 404 {object} ErrorResponse "Unknown pending selection"
// @Failure 409 {object} ErrorResponse "Account already connected"
// @Failure 410 {object} ErrorResponse "Pending selection expired"
// @Security SessionAuth
// @Router /auth/{platform}/select-account [post]
func (h *Handler) SelectAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := h.platform(w, r)
	if !ok {
		return
	}
	var req selectAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	connID, err := h.svc.SelectAccount(r.Context(), userID(r), p, req.PendingTokenID, req.AccountID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, &selectAccountResponse{ConnectionID: connID})
}

// Refresh renews one connection on demand.
//
// @Summary Refresh a connection's access token
// @Tags Connections
// @Accept json
// @Produce json
// @Param platform path string true "Ad platform" Enums(google_ads, meta_ads, tiktok_ads)
// @Param request body refreshRequest true "Connection to refresh"
// @Success 200 {object} refreshResponse "New token expiry"
// @Failure 401 {object} ErrorResponse "Reconnect required (needsReauth is true)"
// @Failure 404 {object} ErrorResponse "Unknown connection"
// @Failure 503 {object} ErrorResponse "Provider temporarily unavailable"
// @Security SessionAuth
// @Router /auth/{platform}/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	p, ok := h.platform(w, r)
	if !ok {
		return
	}
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	uid := userID(r)
	if _, err := h.svc.GetConnection(r.Context(), uid, p, req.ConnectionID); err != nil {
		respondServiceError(w, r, err)
		return
	}
	res, err := h.svc.Refresh(r.Context(), uid, req.ConnectionID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, &refreshResponse{ExpiresAt: res.ExpiresAt})
}

// Disconnect removes a connection.
//
// @Summary Disconnect an ad account
// @Description Revokes the token at the provider when supported and deletes the connection.
// @Tags Connections
// @Produce json
// @Param platform path string true "Ad platform" Enums(google_ads, meta_ads, tiktok_ads)
// @Param connectionId query string true "Connection ID"
// @Success 200 {object} successResponse "Connection removed"
// @Failure 400 {object} ErrorResponse "Missing connectionId"
// @Failure 404 {object} ErrorResponse "Unknown connection"
// @Security SessionAuth
// @Router /auth/{platform} [delete]
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	p, ok := h.platform(w, r)
	if !ok {
		return
	}
	connID := r.URL.Query().Get("connectionId")
	if connID == "" {
		respondError(w, r, http.StatusBadRequest, CodeInvalidRequest, "connectionId is required")
		return
	}
	uid := userID(r)
	if _, err := h.svc.GetConnection(r.Context(), uid, p, connID); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if err := h.svc.Disconnect(r.Context(), uid, connID); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, &successResponse{Success: true})
}

// ListConnections returns the caller's connections.
//
// @Summary List connections
// @Tags Connections
// @Produce json
// @Success 200 {object} connectionsResponse "Connections without token material"
// @Failure 401 {object} ErrorResponse "Missing or invalid session"
// @Security SessionAuth
// @Router /connections [get]
func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListConnections(r.Context(), userID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, &connectionsResponse{Connections: list})
}

func (h *Handler) stateCookie(p models.Platform, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     p.StateCookieName(),
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
}

// redirect sends a 302 to base with params merged into its query.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, base string, params url.Values) {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		u = &url.URL{Path: "/"}
	}
	q := u.Query()
	for k, vs := range params {
		q[k] = vs
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}
