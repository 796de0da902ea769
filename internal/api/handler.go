// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/adlink/internal/auth"
	"github.com/tomtom215/adlink/internal/config"
	"github.com/tomtom215/adlink/internal/logging"
	"github.com/tomtom215/adlink/internal/models"
	"github.com/tomtom215/adlink/internal/oauth"
	"github.com/tomtom215/adlink/internal/scheduler"
)

// ConnectionService is the orchestrator surface the handlers use.
// *oauth.Service implements it.
type ConnectionService interface {
	Initiate(ctx context.Context, userID string, p models.Platform) (*oauth.InitiateResult, error)
	Callback(ctx context.Context, req oauth.CallbackRequest) (*oauth.CallbackResult, error)
	GetPending(ctx context.Context, userID string, p models.Platform, pendingID string) (*oauth.PendingView, error)
	SelectAccount(ctx context.Context, userID string, p models.Platform, pendingID, accountID string) (string, error)
	GetConnection(ctx context.Context, userID string, p models.Platform, connectionID string) (*models.ConnectionSummary, error)
	Refresh(ctx context.Context, userID, connectionID string) (*oauth.RefreshResult, error)
	Disconnect(ctx context.Context, userID, connectionID string) error
	ListConnections(ctx context.Context, userID string) ([]models.ConnectionSummary, error)
}

// Sweeper runs a refresh sweep. *scheduler.Sweeper implements it.
type Sweeper interface {
	Sweep(ctx context.Context, p models.Platform) (*scheduler.Report, error)
}

// Pinger reports backend readiness. store.Store implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators of a Handler.
type Dependencies struct {
	Service  ConnectionService
	Sweeper  Sweeper
	Store    Pinger
	Sessions *auth.SessionManager
	Config   *config.Config
	Security *logging.SecurityLogger
}

// Handler serves the connection lifecycle API.
type Handler struct {
	svc       ConnectionService
	sweeper   Sweeper
	store     Pinger
	sessions  *auth.SessionManager
	cfg       *config.Config
	security  *logging.SecurityLogger
	startTime time.Time
}

// NewHandler validates d and creates a Handler.
func NewHandler(d Dependencies) (*Handler, error) {
	switch {
	case d.Service == nil:
		return nil, fmt.Errorf("api: connection service is required")
	case d.Sweeper == nil:
		return nil, fmt.Errorf("api: sweeper is required")
	case d.Store == nil:
		return nil, fmt.Errorf("api: store is required")
	case d.Sessions == nil:
		return nil, fmt.Errorf("api: session manager is required")
	case d.Config == nil:
		return nil, fmt.Errorf("api: config is required")
	}
	if d.Security == nil {
		d.Security = logging.NewSecurityLogger()
	}
	return &Handler{
		svc:       d.Service,
		sweeper:   d.Sweeper,
		store:     d.Store,
		sessions:  d.Sessions,
		cfg:       d.Config,
		security:  d.Security,
		startTime: time.Now(),
	}, nil
}

// platform resolves the {platform} URL parameter. Unknown platforms are
// answered with 404.
func (h *Handler) platform(w http.ResponseWriter, r *http.Request) (models.Platform, bool) {
	p, err := models.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		respondError(w, r, http.StatusNotFound, "not_found", "unknown platform")
		return "", false
	}
	return p, true
}

// userID returns the authenticated user set by requireSession.
func userID(r *http.Request) string {
	id, _ := auth.UserFromContext(r.Context())
	return id
}

// requireSession rejects requests without a valid session token.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := h.sessions.Authenticate(r)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("Session rejected")
			respondError(w, r, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithUser(r.Context(), id)))
	})
}
