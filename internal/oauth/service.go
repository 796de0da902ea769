// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/adlink/internal/codec"
	"github.com/tomtom215/adlink/internal/events"
	"github.com/tomtom215/adlink/internal/logging"
	"github.com/tomtom215/adlink/internal/models"
	"github.com/tomtom215/adlink/internal/providers"
	"github.com/tomtom215/adlink/internal/store"
)

// DefaultStateTTL is the lifetime of the client-held OAuth state.
const DefaultStateTTL = models.StateTTL

// eventTimeout bounds a best-effort event publish.
const eventTimeout = 2 * time.Second

// ProviderSource resolves the client for a platform. *providers.Registry
// implements it.
type ProviderSource interface {
	Get(p models.Platform) (providers.Client, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Codec     *codec.Codec
	Providers ProviderSource
	Store     store.Store
	// Policies overrides DefaultPolicies per platform.
	Policies map[models.Platform]Policy
	// Publisher receives lifecycle events. Nil disables them.
	Publisher events.Publisher
	// Security receives security-relevant events. Nil uses a default logger.
	Security *logging.SecurityLogger
	// Now is the clock. Nil uses time.Now.
	Now func() time.Time
	// StateTTL is the OAuth state lifetime. Zero uses DefaultStateTTL.
	StateTTL time.Duration
}

// Service runs the OAuth connection lifecycle: initiate, callback, account
// selection, refresh and disconnect. It keeps no per-flow state in memory;
// flow state is client-held and encrypted, everything else is in the store.
type Service struct {
	codec     *codec.Codec
	providers ProviderSource
	store     store.Store
	policies  map[models.Platform]Policy
	publisher events.Publisher
	security  *logging.SecurityLogger
	now       func() time.Time
	stateTTL  time.Duration

	// refreshes coalesces concurrent refreshes of one connection within
	// this process.
	refreshes singleflight.Group
}

// NewService validates d and builds a Service.
func NewService(d Deps) (*Service, error) {
	if d.Codec == nil {
		return nil, errors.New("oauth: codec is required")
	}
	if d.Providers == nil {
		return nil, errors.New("oauth: providers are required")
	}
	if d.Store == nil {
		return nil, errors.New("oauth: store is required")
	}

	s := &Service{
		codec:     d.Codec,
		providers: d.Providers,
		store:     d.Store,
		policies:  make(map[models.Platform]Policy, len(DefaultPolicies)),
		publisher: d.Publisher,
		security:  d.Security,
		now:       d.Now,
		stateTTL:  d.StateTTL,
	}
	for p, pol := range DefaultPolicies {
		s.policies[p] = pol
	}
	for p, pol := range d.Policies {
		s.policies[p] = pol
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	if s.security == nil {
		s.security = logging.NewSecurityLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.stateTTL <= 0 {
		s.stateTTL = DefaultStateTTL
	}
	return s, nil
}

// Policy returns the lifecycle policy of p.
func (s *Service) Policy(p models.Platform) Policy {
	return s.policies[p]
}

// Now returns the service clock's current time in UTC.
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

func (s *Service) client(p models.Platform) (providers.Client, error) {
	c, err := s.providers.Get(p)
	if err != nil {
		return nil, newError(ErrNotFound, p, p.DisplayName()+" is not enabled", err)
	}
	return c, nil
}

// tokenExpiry resolves the absolute expiry of a fresh token set.
func (s *Service) tokenExpiry(p models.Platform, t *models.TokenSet, now time.Time) *time.Time {
	if at := t.ExpiresAt(now); at != nil {
		return at
	}
	if d := s.policies[p].DefaultTokenLifetime; d > 0 {
		at := now.Add(d).UTC()
		return &at
	}
	return nil
}

// publish sends e without failing the caller.
func (s *Service) publish(ctx context.Context, e events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, e); err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("event", string(e.Type)).
			Str("connection_id", e.ConnectionID).
			Msg("Failed to publish lifecycle event")
	}
}

// ListConnections returns the user's connections without token material.
func (s *Service) ListConnections(ctx context.Context, userID string) ([]models.ConnectionSummary, error) {
	list, err := s.store.ListConnections(ctx, userID)
	if err != nil {
		return nil, internalError("", "list connections", err)
	}
	out := make([]models.ConnectionSummary, 0, len(list))
	for _, c := range list {
		out = append(out, c.Summary())
	}
	return out, nil
}

// GetConnection returns one of the user's connections on platform p. A
// connection on another platform is reported as not found.
func (s *Service) GetConnection(ctx context.Context, userID string, p models.Platform, connectionID string) (*models.ConnectionSummary, error) {
	conn, err := s.store.GetConnection(ctx, userID, connectionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound(p, "connection")
		}
		return nil, internalError(p, "load connection", err)
	}
	if conn.Platform != p {
		return nil, notFound(p, "connection")
	}
	summary := conn.Summary()
	return &summary, nil
}

// Disconnect revokes the connection's grant at the provider, best-effort,
// and deletes the connection whatever the revoke outcome.
func (s *Service) Disconnect(ctx context.Context, userID, connectionID string) error {
	conn, err := s.store.GetConnection(ctx, userID, connectionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("", "connection")
		}
		return internalError("", "load connection", err)
	}
	p := conn.Platform
	logger := logging.Ctx(ctx).With().Str("platform", string(p)).Str("connection_id", conn.ID).Logger()

	revoked := s.revoke(ctx, conn)

	if err := s.store.DeleteConnection(ctx, userID, connectionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(p, "connection")
		}
		return internalError(p, "delete connection", err)
	}

	logger.Info().Bool("revoked", revoked).Msg("Connection disconnected")
	s.security.LogDisconnected(userID, string(p), conn.ID, revoked)
	s.publish(ctx, events.New(events.TypeDisconnected, conn, s.Now()))
	return nil
}

// revoke attempts provider revocation and reports whether it succeeded.
// Failures are logged and never returned.
func (s *Service) revoke(ctx context.Context, conn *models.Connection) bool {
	logger := logging.Ctx(ctx).With().Str("platform", string(conn.Platform)).Str("connection_id", conn.ID).Logger()

	client, err := s.providers.Get(conn.Platform)
	if err != nil {
		logger.Warn().Err(err).Msg("Skipping token revoke: platform not enabled")
		return false
	}
	access, err := s.codec.DecryptString(conn.AccessTokenCiphertext)
	if err != nil {
		logger.Warn().Err(err).Msg("Skipping token revoke: stored token unreadable")
		return false
	}
	if err := client.RevokeToken(ctx, access); err != nil {
		logger.Warn().Err(err).Msg("Token revoke failed; deleting connection anyway")
		return false
	}
	return true
}

// credentials are encrypted tokens on their way into a connection.
type credentials struct {
	access    string
	refresh   *string
	expiresAt *time.Time
}

// encryptTokens seals a provider token set.
func (s *Service) encryptTokens(p models.Platform, t *models.TokenSet, now time.Time) (credentials, error) {
	access, err := s.codec.EncryptString(t.AccessToken)
	if err != nil {
		return credentials{}, internalError(p, "encrypt access token", err)
	}
	creds := credentials{access: access, expiresAt: s.tokenExpiry(p, t, now)}
	if t.RefreshToken != "" {
		refresh, err := s.codec.EncryptString(t.RefreshToken)
		if err != nil {
			return credentials{}, internalError(p, "encrypt refresh token", err)
		}
		creds.refresh = &refresh
	}
	return creds, nil
}

// connect stores creds for account, creating a connection or, when one
// exists for the same account, applying the platform's conflict policy.
// A needs_reauth connection is always updated in place, since connecting
// again is the only way out of that state. It reports whether an existing
// connection was updated.
func (s *Service) connect(ctx context.Context, userID string, p models.Platform, account models.CandidateAccount, creds credentials) (*models.Connection, bool, error) {
	now := s.Now()
	name := models.StringPtr(account.DisplayName)

	// A second pass covers losing a create race to a concurrent callback.
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := s.store.FindConnection(ctx, userID, p, account.ExternalAccountID)
		switch {
		case err == nil:
			if existing.Status == models.StatusActive && s.policies[p].RejectsConflicts() {
				return nil, false, newError(ErrDuplicateConnection, p,
					fmt.Sprintf("%s account %s is already connected", p.DisplayName(), account.ExternalAccountID), nil)
			}
			err := s.store.UpdateTokens(ctx, userID, existing.ID, store.TokenUpdate{
				AccessTokenCiphertext:  creds.access,
				RefreshTokenCiphertext: creds.refresh,
				TokenExpiresAt:         creds.expiresAt,
				AccountDisplayName:     name,
				Status:                 models.StatusActive,
				UpdatedAt:              now,
			})
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, false, internalError(p, "update connection", err)
			}
			updated, err := s.store.GetConnection(ctx, userID, existing.ID)
			if err != nil {
				return nil, false, internalError(p, "reload connection", err)
			}
			return updated, true, nil

		case errors.Is(err, store.ErrNotFound):
			conn := &models.Connection{
				ID:                     newID(),
				UserID:                 userID,
				Platform:               p,
				ExternalAccountID:      account.ExternalAccountID,
				AccountDisplayName:     name,
				AccessTokenCiphertext:  creds.access,
				RefreshTokenCiphertext: creds.refresh,
				TokenExpiresAt:         creds.expiresAt,
				Status:                 models.StatusActive,
				CreatedAt:              now,
				UpdatedAt:              now,
			}
			err := s.store.CreateConnection(ctx, conn)
			if errors.Is(err, store.ErrDuplicate) {
				continue
			}
			if err != nil {
				return nil, false, internalError(p, "create connection", err)
			}
			return conn, false, nil

		default:
			return nil, false, internalError(p, "find connection", err)
		}
	}
	return nil, false, newError(ErrDuplicateConnection, p,
		fmt.Sprintf("%s account %s is already connected", p.DisplayName(), account.ExternalAccountID), nil)
}

// connected records a successful connect.
func (s *Service) connected(ctx context.Context, conn *models.Connection, reconnect bool) {
	logging.Ctx(ctx).Info().
		Str("platform", string(conn.Platform)).
		Str("connection_id", conn.ID).
		Bool("reconnect", reconnect).
		Msg("Ad account connected")
	s.security.LogConnected(conn.UserID, string(conn.Platform), conn.ID, reconnect)

	e := events.New(events.TypeConnected, conn, s.Now())
	e.Reconnect = reconnect
	s.publish(ctx, e)
}
