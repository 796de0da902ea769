// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package oauth

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/adlink/internal/events"
	"github.com/tomtom215/adlink/internal/logging"
	"github.com/tomtom215/adlink/internal/metrics"
	"github.com/tomtom215/adlink/internal/models"
	"github.com/tomtom215/adlink/internal/providers"
	"github.com/tomtom215/adlink/internal/store"
)

// refreshTimeout bounds one shared refresh, provider call and store write
// included.
const refreshTimeout = 30 * time.Second

// RefreshResult is the state of a connection after a successful refresh.
type RefreshResult struct {
	ConnectionID string
	Platform     models.Platform
	// ExpiresAt is nil when the provider reported no expiry and the
	// platform has no default lifetime.
	ExpiresAt *time.Time
}

// Refresh renews the connection's access token. Unrecoverable failures flip
// the connection to needs_reauth and return ErrReauthRequired.
//
// Concurrent calls for one connection in this process share a single
// provider round trip. Across processes, a caller whose grant was already
// consumed by a concurrent refresh reports the stored, fresher token.
//
// The shared round trip ignores caller cancellation and is bounded by
// refreshTimeout, so a rotated refresh token always reaches the store. A
// cancelled caller stops waiting and gets ctx.Err().
func (s *Service) Refresh(ctx context.Context, userID, connectionID string) (*RefreshResult, error) {
	ch := s.refreshes.DoChan(userID+"\x00"+connectionID, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return s.refresh(flightCtx, userID, connectionID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		res := *r.Val.(*RefreshResult)
		return &res, nil
	}
}

func (s *Service) refresh(ctx context.Context, userID, connectionID string) (res *RefreshResult, err error) {
	conn, err := s.store.GetConnection(ctx, userID, connectionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("", "connection")
		}
		return nil, internalError("", "load connection", err)
	}
	p := conn.Platform
	start := time.Now()
	defer func() {
		metrics.RecordOAuthFlow(string(p), "refresh", outcome(err))
		logger := logging.Ctx(ctx).With().
			Str("platform", string(p)).
			Str("connection_id", conn.ID).
			Dur("duration", time.Since(start)).
			Logger()
		if err != nil {
			logger.Warn().Str("code", CodeOf(err)).Msg("Token refresh failed")
		} else {
			logger.Debug().Msg("Token refreshed")
		}
	}()

	client, err := s.client(p)
	if err != nil {
		return nil, err
	}
	if conn.Status == models.StatusNeedsReauth {
		return nil, reauthRequired(p, nil)
	}

	lifecycle := client.Lifecycle()
	now := s.Now()
	var grant providers.Grant
	switch lifecycle.Refresh {
	case providers.ExtendToken:
		if conn.IsExpired(now) {
			return nil, s.markReauth(ctx, conn, "access token expired", nil)
		}
		access, err := s.codec.DecryptString(conn.AccessTokenCiphertext)
		if err != nil {
			return nil, internalError(p, "decrypt access token", err)
		}
		grant.AccessToken = access
	default:
		if !conn.HasRefreshToken() {
			return nil, s.markReauth(ctx, conn, "no refresh token", nil)
		}
		refresh, err := s.codec.DecryptString(*conn.RefreshTokenCiphertext)
		if err != nil {
			return nil, internalError(p, "decrypt refresh token", err)
		}
		grant.RefreshToken = refresh
	}

	tokens, err := client.RefreshToken(ctx, grant)
	if err != nil {
		switch {
		case errors.Is(err, providers.ErrInvalidGrant):
			if current, ok := s.refreshedElsewhere(ctx, conn); ok {
				return current, nil
			}
			return nil, s.markReauth(ctx, conn, "grant rejected by provider", err)
		case errors.Is(err, providers.ErrTransient):
			s.security.LogTokenRefresh(userID, string(p), conn.ID, false, "provider unavailable")
			return nil, transient(p, err)
		default:
			s.security.LogTokenRefresh(userID, string(p), conn.ID, false, "unexpected provider response")
			return nil, newError(ErrProviderResponse, p, "unexpected response from "+p.DisplayName(), err)
		}
	}

	creds, err := s.encryptTokens(p, tokens, s.Now())
	if err != nil {
		return nil, err
	}
	if creds.refresh != nil && !lifecycle.RotatesRefreshToken && conn.HasRefreshToken() {
		// Non-rotating platforms keep the stored refresh token.
		creds.refresh = nil
	}
	update := store.TokenUpdate{
		AccessTokenCiphertext:  creds.access,
		RefreshTokenCiphertext: creds.refresh,
		TokenExpiresAt:         creds.expiresAt,
		Status:                 models.StatusActive,
		UpdatedAt:              s.Now(),
	}
	if err := s.store.UpdateTokens(ctx, userID, conn.ID, update); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound(p, "connection")
		}
		return nil, internalError(p, "store refreshed tokens", err)
	}

	s.security.LogTokenRefresh(userID, string(p), conn.ID, true, "")
	conn.TokenExpiresAt = creds.expiresAt
	conn.Status = models.StatusActive
	s.publish(ctx, events.New(events.TypeRefreshed, conn, s.Now()))

	return &RefreshResult{ConnectionID: conn.ID, Platform: p, ExpiresAt: creds.expiresAt}, nil
}

// refreshedElsewhere reports whether another writer stored new tokens after
// conn was read, which is why the grant in hand was rejected.
func (s *Service) refreshedElsewhere(ctx context.Context, conn *models.Connection) (*RefreshResult, bool) {
	current, err := s.store.GetConnection(ctx, conn.UserID, conn.ID)
	if err != nil || current.Status != models.StatusActive {
		return nil, false
	}
	if current.AccessTokenCiphertext == conn.AccessTokenCiphertext &&
		ptrEqual(current.RefreshTokenCiphertext, conn.RefreshTokenCiphertext) {
		return nil, false
	}
	if current.IsExpired(s.Now()) {
		return nil, false
	}
	logging.Ctx(ctx).Info().
		Str("platform", string(conn.Platform)).
		Str("connection_id", conn.ID).
		Msg("Grant already refreshed by a concurrent writer")
	return &RefreshResult{ConnectionID: current.ID, Platform: current.Platform, ExpiresAt: current.TokenExpiresAt}, true
}

func ptrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func reauthRequired(p models.Platform, cause error) *Error {
	return newError(ErrReauthRequired, p, p.DisplayName()+" access expired; please reconnect the account", cause)
}

// markReauth flips conn to needs_reauth and returns the matching error.
func (s *Service) markReauth(ctx context.Context, conn *models.Connection, reason string, cause error) error {
	p := conn.Platform
	if err := s.store.SetStatus(ctx, conn.UserID, conn.ID, models.StatusNeedsReauth, s.Now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(p, "connection")
		}
		return internalError(p, "mark connection needs_reauth", err)
	}
	s.security.LogTokenRefresh(conn.UserID, string(p), conn.ID, false, reason)
	s.security.LogReauthRequired(conn.UserID, string(p), conn.ID, reason)

	conn.Status = models.StatusNeedsReauth
	e := events.New(events.TypeNeedsReauth, conn, s.Now())
	e.Reason = reason
	s.publish(ctx, e)
	return reauthRequired(p, cause)
}
