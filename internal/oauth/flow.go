// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package oauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/adlink/internal/codec"
	"github.com/tomtom215/adlink/internal/logging"
	"github.com/tomtom215/adlink/internal/metrics"
	"github.com/tomtom215/adlink/internal/models"
	"github.com/tomtom215/adlink/internal/store"
)

func newID() string {
	return uuid.New().String()
}

// outcome is the metrics label for a step result.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return CodeOf(err)
}

// InitiateResult is what the caller needs to start the consent redirect.
type InitiateResult struct {
	// RedirectURL is the provider consent screen.
	RedirectURL string
	// StateToken is the encrypted OAuthState. It belongs in the
	// {platform}_oauth_state cookie and must come back on the callback.
	StateToken string
	ExpiresAt  time.Time
}

// Initiate starts a connect flow for userID. Nothing is written server-side.
func (s *Service) Initiate(ctx context.Context, userID string, p models.Platform) (res *InitiateResult, err error) {
	defer func() { metrics.RecordOAuthFlow(string(p), "initiate", outcome(err)) }()

	client, err := s.client(p)
	if err != nil {
		return nil, err
	}
	nonce, err := codec.GenerateStateToken()
	if err != nil {
		return nil, internalError(p, "generate state", err)
	}
	state := models.OAuthState{
		Nonce:     nonce,
		UserID:    userID,
		Platform:  p,
		ExpiresAt: s.Now().Add(s.stateTTL),
	}
	token, err := s.codec.EncryptJSON(state)
	if err != nil {
		return nil, internalError(p, "encrypt state", err)
	}

	logging.Ctx(ctx).Debug().Str("platform", string(p)).Msg("OAuth flow initiated")
	return &InitiateResult{
		RedirectURL: client.BuildAuthURL(nonce),
		StateToken:  token,
		ExpiresAt:   state.ExpiresAt,
	}, nil
}

// CallbackRequest carries everything the provider redirect and the client
// sent back.
type CallbackRequest struct {
	UserID   string
	Platform models.Platform
	// Code is the authorization code (TikTok may name it auth_code).
	Code string
	// ReturnedState is the state query parameter.
	ReturnedState string
	// StateToken is the encrypted state the client held.
	StateToken string
	// ProviderError is set when the user denied consent.
	ProviderError            string
	ProviderErrorDescription string
	// ClientIP is recorded on security events.
	ClientIP string
}

// CallbackKind is the shape of a successful callback.
type CallbackKind int

const (
	// CallbackConnected means a single account was connected.
	CallbackConnected CallbackKind = iota
	// CallbackPendingSelection means the user must pick an account.
	CallbackPendingSelection
)

// CallbackResult is the outcome of a successful callback.
type CallbackResult struct {
	Kind         CallbackKind
	ConnectionID string
	PendingID    string
	// Reconnect is set when an existing connection received new tokens.
	Reconnect bool
}

// Callback validates the returned state, exchanges the code and either
// connects the single accessible account or parks the tokens for selection.
func (s *Service) Callback(ctx context.Context, req CallbackRequest) (res *CallbackResult, err error) {
	p := req.Platform
	defer func() { metrics.RecordOAuthFlow(string(p), "callback", outcome(err)) }()

	if req.ProviderError != "" {
		msg := "authorization was denied"
		if req.ProviderErrorDescription != "" {
			msg += ": " + req.ProviderErrorDescription
		}
		return nil, newError(ErrAuthorizationDenied, p, msg, nil)
	}

	client, err := s.client(p)
	if err != nil {
		return nil, err
	}
	if err := s.verifyState(req); err != nil {
		return nil, err
	}
	if req.Code == "" {
		return nil, newError(ErrTokenExchange, p, "authorization code missing from callback", nil)
	}

	tokens, err := client.ExchangeCode(ctx, req.Code)
	if err != nil {
		return nil, exchangeError(p, err)
	}
	accounts, err := client.ListAccounts(ctx, tokens.AccessToken)
	if err != nil {
		return nil, listError(p, err)
	}
	if len(accounts) == 0 {
		return nil, newError(ErrNoAccounts, p, "no ad accounts found; create an ad account first", nil)
	}

	now := s.Now()
	creds, err := s.encryptTokens(p, tokens, now)
	if err != nil {
		return nil, err
	}

	if len(accounts) == 1 {
		conn, reconnect, err := s.connect(ctx, req.UserID, p, accounts[0], creds)
		if err != nil {
			return nil, err
		}
		s.connected(ctx, conn, reconnect)
		return &CallbackResult{Kind: CallbackConnected, ConnectionID: conn.ID, Reconnect: reconnect}, nil
	}

	pending := &models.PendingConnection{
		ID:                     newID(),
		UserID:                 req.UserID,
		Platform:               p,
		AccessTokenCiphertext:  creds.access,
		RefreshTokenCiphertext: creds.refresh,
		TokenExpiresAt:         creds.expiresAt,
		CandidateAccounts:      accounts,
		CreatedAt:              now,
		ExpiresAt:              now.Add(s.policies[p].pendingTTL()),
	}
	if err := s.store.CreatePending(ctx, pending); err != nil {
		return nil, internalError(p, "store pending selection", err)
	}
	logging.Ctx(ctx).Info().
		Str("platform", string(p)).
		Str("pending_id", pending.ID).
		Int("accounts", len(accounts)).
		Msg("Account selection pending")
	return &CallbackResult{Kind: CallbackPendingSelection, PendingID: pending.ID}, nil
}

// verifyState checks the returned state against the client-held token.
func (s *Service) verifyState(req CallbackRequest) error {
	p := req.Platform
	reject := func(reason string) error {
		s.security.LogStateRejected(req.UserID, string(p), reason, req.ClientIP)
		return newError(ErrInvalidState, p, "the connect request could not be verified; please try again", errors.New(reason))
	}

	if req.StateToken == "" || req.ReturnedState == "" {
		return reject("missing state")
	}
	state, err := codec.DecryptJSON[models.OAuthState](s.codec, req.StateToken)
	if err != nil {
		return reject("undecryptable state")
	}
	if subtle.ConstantTimeCompare([]byte(state.Nonce), []byte(req.ReturnedState)) != 1 {
		return reject("state mismatch")
	}
	if state.IsExpired(s.Now()) {
		return reject("state expired")
	}
	if state.UserID != req.UserID {
		return reject("state issued to another user")
	}
	if state.Platform != p {
		return reject("state issued for another platform")
	}
	return nil
}

// PendingView is the client view of a pending selection.
type PendingView struct {
	Accounts  []models.CandidateAccount
	ExpiresAt time.Time
}

// GetPending returns the candidate accounts of a pending selection.
// An expired row is removed and reported as ErrExpiredPendingToken.
func (s *Service) GetPending(ctx context.Context, userID string, p models.Platform, pendingID string) (*PendingView, error) {
	pc, err := s.store.GetPending(ctx, userID, p, pendingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound(p, "pending selection")
		}
		return nil, internalError(p, "load pending selection", err)
	}
	if pc.IsExpired(s.Now()) {
		if err := s.store.DeletePending(ctx, userID, p, pendingID); err != nil && !errors.Is(err, store.ErrNotFound) {
			logging.Ctx(ctx).Warn().Err(err).Str("pending_id", pendingID).Msg("Failed to delete expired pending selection")
		}
		return nil, expiredPending(p)
	}
	return &PendingView{Accounts: pc.CandidateAccounts, ExpiresAt: pc.ExpiresAt}, nil
}

func invalidSelection(p models.Platform) *Error {
	return newError(ErrInvalidSelection, p, "the selected account is not one of the offered accounts", nil)
}

func expiredPending(p models.Platform) *Error {
	return newError(ErrExpiredPendingToken, p, "account selection expired; please connect again", nil)
}

// SelectAccount completes a pending selection with one of its candidate
// accounts. An account that was not offered is rejected with
// ErrInvalidSelection and leaves the selection in place. Otherwise the
// pending row is claimed atomically, so a second select for the same id
// reports ErrNotFound.
func (s *Service) SelectAccount(ctx context.Context, userID string, p models.Platform, pendingID, accountID string) (connID string, err error) {
	defer func() { metrics.RecordOAuthFlow(string(p), "select_account", outcome(err)) }()

	if _, err := s.client(p); err != nil {
		return "", err
	}
	peek, err := s.store.GetPending(ctx, userID, p, pendingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", notFound(p, "pending selection")
		}
		return "", internalError(p, "load pending selection", err)
	}
	if _, ok := peek.Candidate(accountID); !ok && !peek.IsExpired(s.Now()) {
		return "", invalidSelection(p)
	}

	pc, err := s.store.ClaimPending(ctx, userID, p, pendingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", notFound(p, "pending selection")
		}
		return "", internalError(p, "claim pending selection", err)
	}
	if pc.IsExpired(s.Now()) {
		return "", expiredPending(p)
	}
	account, ok := pc.Candidate(accountID)
	if !ok {
		return "", invalidSelection(p)
	}

	conn, reconnect, err := s.connect(ctx, userID, p, account, credentials{
		access:    pc.AccessTokenCiphertext,
		refresh:   pc.RefreshTokenCiphertext,
		expiresAt: pc.TokenExpiresAt,
	})
	if err != nil {
		return "", err
	}
	s.connected(ctx, conn, reconnect)
	return conn.ID, nil
}
